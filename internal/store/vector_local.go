// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

const (
	localVectorKeyPrefix  = "vec:"
	localProfileKeyPrefix = "prof:"
)

// LocalVectorStore is the on-device fallback vector store: a brute-force
// cosine search over vectors persisted in BadgerDB, the same embedded
// key-value store the graph snapshot manager uses for durability. It
// trades ANN recall/speed for zero external dependencies, matching the
// on-device local providers of the embedding chain.
type LocalVectorStore struct {
	db  *badger.DB
	dim int
}

// OpenLocalVectorStore opens (creating if absent) a BadgerDB-backed vector
// store at dir with the given vector dimension.
func OpenLocalVectorStore(dir string, dim int) (*LocalVectorStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening local vector store at %s: %w", dir, err)
	}
	return &LocalVectorStore{db: db, dim: dim}, nil
}

func vectorKey(memoryID int64) []byte {
	return []byte(localVectorKeyPrefix + strconv.FormatInt(memoryID, 10))
}

func profileKey(memoryID int64) []byte {
	return []byte(localProfileKeyPrefix + strconv.FormatInt(memoryID, 10))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4 : i*4+4]))
	}
	return v
}

// Upsert stores vector and its producing profile under memoryID.
func (s *LocalVectorStore) Upsert(ctx context.Context, memoryID int64, vector []float32, profile model.ProviderProfile) error {
	if len(vector) != s.dim {
		return fmt.Errorf("local vector store: expected dimension %d, got %d", s.dim, len(vector))
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshaling provider profile: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(vectorKey(memoryID), encodeVector(vector)); err != nil {
			return fmt.Errorf("storing vector for memory %d: %w", memoryID, err)
		}
		if err := txn.Set(profileKey(memoryID), profileJSON); err != nil {
			return fmt.Errorf("storing profile for memory %d: %w", memoryID, err)
		}
		return nil
	})
}

// Get returns the stored vector for memoryID, or (false) if none exists.
func (s *LocalVectorStore) Get(ctx context.Context, memoryID int64) ([]float32, bool, error) {
	var vec []float32
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(vectorKey(memoryID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading vector for memory %d: %w", memoryID, err)
	}
	return vec, true, nil
}

// Delete removes memoryID's vector and profile. Deleting a missing id is a no-op.
func (s *LocalVectorStore) Delete(ctx context.Context, memoryID int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(vectorKey(memoryID)); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("deleting vector for memory %d: %w", memoryID, err)
		}
		if err := txn.Delete(profileKey(memoryID)); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("deleting profile for memory %d: %w", memoryID, err)
		}
		return nil
	})
}

// Search performs a brute-force cosine nearest-neighbor scan over every
// stored vector, returning the topK highest-scoring memories.
func (s *LocalVectorStore) Search(ctx context.Context, query []float32, topK int) ([]VectorHit, error) {
	if topK <= 0 {
		topK = 10
	}
	var hits []VectorHit
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(localVectorKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			idStr := key[len(localVectorKeyPrefix):]
			memoryID, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				continue
			}
			var score float32
			if err := item.Value(func(val []byte) error {
				vec := decodeVector(val)
				s, err := cosine(query, vec)
				if err != nil {
					return nil // skip dimension-mismatched stragglers
				}
				score = s
				return nil
			}); err != nil {
				return fmt.Errorf("scanning vector %s: %w", key, err)
			}
			hits = append(hits, VectorHit{MemoryID: memoryID, Score: score})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching local vector store: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch %d != %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

// Stats reports the current vector count by scanning key prefixes.
func (s *LocalVectorStore) Stats(ctx context.Context) (VectorStats, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(localVectorKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return VectorStats{}, fmt.Errorf("counting local vectors: %w", err)
	}
	return VectorStats{Count: count, Dimension: s.dim, Backend: "local"}, nil
}

// Available always reports true: the local store has no network dependency.
func (s *LocalVectorStore) Available(ctx context.Context) bool { return true }

// Dimension returns the vector width this store was opened with.
func (s *LocalVectorStore) Dimension() int { return s.dim }

// Close releases the underlying BadgerDB handle.
func (s *LocalVectorStore) Close() error { return s.db.Close() }

// Backup streams every key-value pair since the given version to w, the
// BadgerDB-native snapshot format checkpoint.Manager restores from.
func (s *LocalVectorStore) Backup(w io.Writer, since uint64) (uint64, error) {
	return s.db.Backup(w, since)
}

var _ VectorStore = (*LocalVectorStore)(nil)
