// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"http 401 is permanent", &HTTPStatusError{Status: 401, Err: errors.New("unauthorized")}, Permanent},
		{"http 503 is transient", &HTTPStatusError{Status: 503, Err: errors.New("unavailable")}, Transient},
		{"ETIMEDOUT is transient", errors.New("dial tcp: ETIMEDOUT"), Transient},
		{"rate limit message is transient", errors.New("rate limit exceeded"), Transient},
		{"api key message is permanent", errors.New("invalid api key"), Permanent},
		{"unrecognized error is unknown", errors.New("something odd"), Unknown},
		{"nil is unknown", nil, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Classify(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateBackoff_DefaultSequence(t *testing.T) {
	base := time.Second
	max := 30 * time.Second
	assert.Equal(t, time.Second, CalculateBackoff(0, base, 2, max))
	assert.Equal(t, 2*time.Second, CalculateBackoff(1, base, 2, max))
	assert.Equal(t, 4*time.Second, CalculateBackoff(2, base, 2, max))
}

func TestCalculateBackoff_ClampsToMax(t *testing.T) {
	got := CalculateBackoff(10, time.Second, 2, 5*time.Second)
	assert.Equal(t, 5*time.Second, got)
}

func TestWithBackoff_ExactlyNPlusOneCalls(t *testing.T) {
	calls := 0
	_, err := WithBackoff(context.Background(), Options{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("rate limit")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.True(t, exhausted.RetriesExhausted)
	assert.Len(t, exhausted.AttemptLog, 4)
}

func TestWithBackoff_PermanentFailsFast(t *testing.T) {
	calls := 0
	_, err := WithBackoff(context.Background(), Options{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var permErr *PermanentError
	require.True(t, errors.As(err, &permErr))
	assert.True(t, permErr.IsPermanent)
	assert.Len(t, permErr.AttemptLog, 1)
}

func TestWithBackoff_SucceedsAfterTransientRetries(t *testing.T) {
	calls := 0
	result, err := WithBackoff(context.Background(), Options{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("timeout")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_OnRetryInvokedBeforeSleep(t *testing.T) {
	var attempts []int
	_, _ = WithBackoff(context.Background(), Options{
		MaxRetries: 2, BaseDelay: time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		},
	}, func(ctx context.Context) (int, error) {
		return 0, errors.New("rate limit")
	})
	assert.Equal(t, []int{1, 2, 3}, attempts)
}
