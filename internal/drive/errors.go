// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package drive

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response (or transport failure, StatusCode 0) from
// the Drive API.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("drive api error %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("drive api error %d: %s", e.StatusCode, e.Message)
}

// rate-limit reasons returned with HTTP 403.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// IsAuthError reports whether err is an expired, invalid, or insufficient
// credential failure.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		return true
	}
	return apiErr.StatusCode == http.StatusForbidden && !rateLimitReasons[apiErr.Reason]
}

// IsRateLimited reports whether err is a quota or rate-limit rejection.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return apiErr.StatusCode == http.StatusForbidden && rateLimitReasons[apiErr.Reason]
}

// IsTransient reports whether err is worth re-attempting: rate limits,
// server-side failures, and transport errors.
func IsTransient(err error) bool {
	if IsRateLimited(err) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 0 || apiErr.StatusCode >= http.StatusInternalServerError
}
