// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store holds the memory engine's persistence layer: the lexical
// BM25 index, the causal edge store, the relational memory index, and the
// vector store adapters (C2-C4).
package store

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// BM25 tuning constants, the standard values recommended by Robertson et al.
// and already used by the routing pre-filter's tool index.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases text and extracts alphanumeric runs as terms.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

type bm25Doc struct {
	id  int64
	tf  map[string]int
	len int
}

// BM25Index is a from-scratch Okapi BM25 inverted index over memory content,
// generalized from the routing pre-filter's tool-description index to full
// prose documents with true term frequency rather than binary presence.
type BM25Index struct {
	mu     sync.RWMutex
	docs   map[int64]bm25Doc
	df     map[string]int
	idf    map[string]float64
	avgLen float64
	total  int
}

// NewBM25Index returns an empty, ready-to-use index.
func NewBM25Index() *BM25Index {
	return &BM25Index{
		docs: make(map[int64]bm25Doc),
		df:   make(map[string]int),
		idf:  make(map[string]float64),
	}
}

// Upsert (re)indexes a document, replacing any prior content for id.
func (idx *BM25Index) Upsert(id int64, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.docs[id]; ok {
		for term := range old.tf {
			idx.df[term]--
			if idx.df[term] <= 0 {
				delete(idx.df, term)
			}
		}
		idx.total -= old.len
	}

	tf := make(map[string]int)
	terms := Tokenize(content)
	for _, t := range terms {
		tf[t]++
	}
	for term := range tf {
		idx.df[term]++
	}

	idx.docs[id] = bm25Doc{id: id, tf: tf, len: len(terms)}
	idx.total += len(terms)
	idx.rebuildIDF()
}

// Delete removes a document from the index.
func (idx *BM25Index) Delete(id int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	old, ok := idx.docs[id]
	if !ok {
		return
	}
	for term := range old.tf {
		idx.df[term]--
		if idx.df[term] <= 0 {
			delete(idx.df, term)
		}
	}
	idx.total -= old.len
	delete(idx.docs, id)
	idx.rebuildIDF()
}

// rebuildIDF recomputes IDF for every term using Lucene-style smoothing:
// log((N+1)/(df+1)) + 1. Caller must hold idx.mu.
func (idx *BM25Index) rebuildIDF() {
	n := len(idx.docs)
	idx.idf = make(map[string]float64, len(idx.df))
	if n == 0 {
		idx.avgLen = 0
		return
	}
	for term, df := range idx.df {
		idx.idf[term] = math.Log(float64(n+1)/float64(df+1)) + 1.0
	}
	idx.avgLen = float64(idx.total) / float64(n)
}

// LexicalHit is one scored document from a BM25 query.
type LexicalHit struct {
	ID    int64
	Score float64
}

// Search scores every indexed document against query and returns the top k
// hits ordered by descending score. Ordering is deterministic for a fixed
// corpus and tokenization: ties break by ascending id.
func (idx *BM25Index) Search(query string, k int) []LexicalHit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := Tokenize(query)
	if len(terms) == 0 || len(idx.docs) == 0 {
		return nil
	}

	queryTF := make(map[string]int)
	for _, t := range terms {
		queryTF[t]++
	}

	hits := make([]LexicalHit, 0, len(idx.docs))
	for id, doc := range idx.docs {
		score := idx.scoreDoc(queryTF, doc)
		if score > 0 {
			hits = append(hits, LexicalHit{ID: id, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (idx *BM25Index) scoreDoc(queryTF map[string]int, doc bm25Doc) float64 {
	dl := float64(doc.len)
	var score float64
	for term := range queryTF {
		tf, ok := doc.tf[term]
		if !ok {
			continue
		}
		termIDF, ok := idx.idf[term]
		if !ok {
			continue
		}
		tfFloat := float64(tf)
		numerator := tfFloat * (bm25K1 + 1)
		lengthNorm := bm25K1 * (1.0 - bm25B + bm25B*dl/idx.avgLen)
		denominator := tfFloat + lengthNorm
		score += termIDF * numerator / denominator
	}
	return score
}

// Size returns the number of indexed documents.
func (idx *BM25Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}
