// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scan

import (
	"errors"

	"github.com/VT-TyR/drivemind/internal/auth"
	"github.com/VT-TyR/drivemind/internal/models"
)

// ErrJobCancelled signals that the job's persisted status became cancelled
// mid-attempt. The retry loop treats it as immediately terminal, bypassing
// backoff, so a cancelled job is never retried.
var ErrJobCancelled = errors.New("scan job cancelled")

// ErrJobAlreadyClaimed signals that another worker invocation holds the job.
// The losing invocation exits without writing any job state.
var ErrJobAlreadyClaimed = errors.New("scan job already claimed by another worker")

// terminalError marks a classified failure that must not be retried.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// terminal wraps err so isRetryable reports false.
func terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// isRetryable classifies an attempt error for the retry loop. Cancellation,
// validation failures, revoked consent, and claim losses are terminal;
// everything else (transient auth, rate limits, remote 5xx, persistence
// hiccups) is worth another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var termErr *terminalError
	if errors.As(err, &termErr) {
		return false
	}

	switch {
	case errors.Is(err, ErrJobCancelled),
		errors.Is(err, ErrJobAlreadyClaimed),
		errors.Is(err, auth.ErrConsentRevoked),
		errors.Is(err, auth.ErrNoCredentials),
		errors.Is(err, models.ErrScanJobNotFound):
		return false
	}

	return true
}
