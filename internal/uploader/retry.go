package uploader

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/aws/smithy-go"

	"github.com/agrc/honeycomb/internal/errs"
)

// DefaultPoolSize is the number of row folders uploaded concurrently
// when a config does not override it.
const DefaultPoolSize = 100

// maxAttempts bounds the retry loop for a single tile upload.
const maxAttempts = 5

// classify turns a raw S3/network error into errs.TransientUploadError
// or errs.PermanentUploadError so callers can decide whether to retry.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "RequestTimeTooSkewed":
			return &errs.TransientUploadError{Cause: err}
		default:
			return &errs.PermanentUploadError{Cause: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &errs.TransientUploadError{Cause: err}
	}

	return &errs.TransientUploadError{Cause: err}
}

// withRetry runs fn, retrying with exponential backoff while it returns
// an errs.TransientUploadError, up to maxAttempts total tries.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var transient *errs.TransientUploadError
		if !errors.As(lastErr, &transient) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return lastErr
}
