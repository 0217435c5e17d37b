// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitNormalize_ScalesToUnitNorm(t *testing.T) {
	v := unitNormalize([]float32{3, 4})
	got := l2Norm(v)
	assert.InDelta(t, 1.0, got, 1e-6)
}

func TestUnitNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := unitNormalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestCosineSimilarity_IdenticalVectorsIsOne(t *testing.T) {
	a := unitNormalize([]float32{1, 2, 3})
	sim, err := CosineSimilarity(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-6)
}

func TestCosineSimilarity_OrthogonalVectorsIsZero(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-6)
}

func TestCosineSimilarity_DimensionMismatchErrors(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.Error(t, err)
}
