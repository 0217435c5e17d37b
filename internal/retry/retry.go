// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry implements the exponential-backoff retry engine (spec C12).
// It wraps github.com/cenkalti/backoff/v5 with the transient/permanent
// error classification and attempt log the spec requires.
package retry

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Classification is the outcome of classifying an error for retry purposes.
type Classification string

const (
	Transient Classification = "transient"
	Permanent Classification = "permanent"
	Unknown   Classification = "unknown"
)

// transientHTTP and permanentHTTP are the closed HTTP status sets from spec §4.12.
var transientHTTP = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true,
	520: true, 521: true, 522: true, 523: true, 524: true,
}

var permanentHTTP = map[int]bool{400: true, 401: true, 403: true, 404: true}

var transientNetCodes = []string{"ETIMEDOUT", "ECONNRESET", "ECONNREFUSED", "ENOTFOUND", "ENETUNREACH", "EHOSTUNREACH"}

// HTTPStatusError lets callers attach an HTTP status code to an error for classification.
type HTTPStatusError struct {
	Status int
	Err    error
}

func (e *HTTPStatusError) Error() string { return e.Err.Error() }
func (e *HTTPStatusError) Unwrap() error { return e.Err }

// Classify implements the closed transient/permanent/unknown taxonomy of spec §4.12.
func Classify(err error) (Classification, string) {
	if err == nil {
		return Unknown, "no error"
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		if transientHTTP[httpErr.Status] {
			return Transient, "http status " + strconv.Itoa(httpErr.Status)
		}
		if permanentHTTP[httpErr.Status] {
			return Permanent, "http status " + strconv.Itoa(httpErr.Status)
		}
	}

	msg := strings.ToLower(err.Error())
	for _, code := range transientNetCodes {
		if strings.Contains(err.Error(), code) {
			return Transient, "network code " + code
		}
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "busy") || strings.Contains(msg, "locked") {
		return Transient, "message pattern match"
	}
	if strings.Contains(msg, "api key") || strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "forbidden") {
		return Permanent, "message pattern match"
	}

	return Unknown, "unclassified"
}

// AttemptLogEntry records the outcome of a single retry attempt.
type AttemptLogEntry struct {
	Attempt              int
	ErrorType            Classification
	ClassificationReason string
	Delay                time.Duration
}

// ExhaustedError is returned when all retries are spent without success.
type ExhaustedError struct {
	RetriesExhausted bool
	AttemptLog       []AttemptLogEntry
	Cause            error
}

func (e *ExhaustedError) Error() string { return "retries exhausted: " + e.Cause.Error() }
func (e *ExhaustedError) Unwrap() error  { return e.Cause }

// PermanentError is returned immediately when a non-retryable error is classified.
type PermanentError struct {
	IsPermanent bool
	Cause       error
	AttemptLog  []AttemptLogEntry
}

func (e *PermanentError) Error() string { return "permanent error: " + e.Cause.Error() }
func (e *PermanentError) Unwrap() error  { return e.Cause }

// Options configures a retry_with_backoff call.
type Options struct {
	OperationName   string
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	OnRetry         func(attempt int, err error, delay time.Duration)
}

// defaults match spec §4.12: 3 retries, 1000ms base, 2x exponential.
func (o *Options) applyDefaults() {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.BaseDelay == 0 {
		o.BaseDelay = time.Second
	}
	if o.ExponentialBase == 0 {
		o.ExponentialBase = 2
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = 30 * time.Second
	}
}

// CalculateBackoff computes delay(n) = min(base * exp^n, max) per spec §8.
func CalculateBackoff(attempt int, base time.Duration, exponentialBase float64, max time.Duration) time.Duration {
	d := float64(base)
	for i := 0; i < attempt; i++ {
		d *= exponentialBase
	}
	delay := time.Duration(d)
	if delay > max {
		delay = max
	}
	return delay
}

// WithBackoff runs fn, retrying transient failures with exponential backoff.
// Permanent errors fail after exactly one attempt. Exhausting all retries
// returns an *ExhaustedError; a permanent classification returns a
// *PermanentError. Unknown-classified errors are treated as non-retryable.
func WithBackoff[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	opts.applyDefaults()

	var log []AttemptLogEntry
	attempt := 0

	operation := func() (T, error) {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		class, reason := Classify(err)
		attempt++

		if class == Permanent {
			log = append(log, AttemptLogEntry{Attempt: attempt, ErrorType: class, ClassificationReason: reason, Delay: 0})
			var zero T
			return zero, backoff.Permanent(&PermanentError{IsPermanent: true, Cause: err, AttemptLog: log})
		}
		if class == Unknown {
			log = append(log, AttemptLogEntry{Attempt: attempt, ErrorType: class, ClassificationReason: reason, Delay: 0})
			var zero T
			return zero, backoff.Permanent(err)
		}

		delay := CalculateBackoff(attempt-1, opts.BaseDelay, opts.ExponentialBase, opts.MaxDelay)
		log = append(log, AttemptLogEntry{Attempt: attempt, ErrorType: class, ClassificationReason: reason, Delay: delay})
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, delay)
		}
		return result, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.BaseDelay
	b.Multiplier = opts.ExponentialBase
	b.MaxInterval = opts.MaxDelay

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(opts.MaxRetries+1)),
	)
	if err == nil {
		return result, nil
	}

	var permErr *PermanentError
	if errors.As(err, &permErr) {
		return result, permErr
	}

	var zero T
	if len(log) > 0 && log[len(log)-1].ErrorType == Unknown {
		return zero, err
	}
	return zero, &ExhaustedError{RetriesExhausted: true, AttemptLog: log, Cause: err}
}
