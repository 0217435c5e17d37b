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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKey_NonValidatorProviderIsAlwaysValid(t *testing.T) {
	result, err := ValidateAPIKey(context.Background(), NewSentinelProvider())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "lexical-only", result.Provider)
}

func TestValidateAPIKey_MissingCredentialIsInvalid(t *testing.T) {
	p := NewVoyageProvider("", "voyage-3", 1024)
	result, err := ValidateAPIKey(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "E050", result.ErrorCode)
}
