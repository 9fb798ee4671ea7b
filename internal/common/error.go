package common

import (
	"errors"
	"fmt"

	"github.com/zeebo/errs"
)

var (
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrInvalidArgument     = fmt.Errorf("invalid argument")
	ErrCacheMiss           = fmt.Errorf("cache miss")
	ErrReleaseNotFound     = fmt.Errorf("release not found")
	ErrBackupNotFound      = fmt.Errorf("backup not found")
	ErrInvalidBackupID     = fmt.Errorf("invalid backup id")
	ErrImageNotFound       = fmt.Errorf("image not found")
	ErrHostNotAllowed      = fmt.Errorf("host is not allowed")
	ErrRefreshInProgress   = fmt.Errorf("catalog refresh has already started")
	ErrBodyTooLarge        = fmt.Errorf("upstream body is too large")

	// ParseError marks malformed upstream JSON, manifests or config.
	ParseError = errs.Class("parse failure")
)

// UpstreamError is returned when GitHub answers with a non-2xx status or cannot be reached.
// Status is 0 for network failures.
type UpstreamError struct {
	Status int
	URL    string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream %s is unreachable: %v", e.URL, e.Err)
	}

	return fmt.Sprintf("upstream %s responded with status %d", e.URL, e.Status)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstreamUnavailable}
	}

	return []error{ErrUpstreamUnavailable, e.Err}
}

// UpstreamStatus returns the upstream status carried by err, or 0.
func UpstreamStatus(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}

	return 0
}
