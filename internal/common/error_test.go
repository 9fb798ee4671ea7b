package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpstreamErrorUnwrap(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		canceled bool
	}{
		{name: "Scenario 1: Client went away", err: &UpstreamError{URL: "x", Err: context.Canceled}, canceled: true},
		{name: "Scenario 2: Wrapped cancel", err: wrap(&UpstreamError{URL: "x", Err: context.Canceled}), canceled: true},
		{name: "Scenario 3: Status only", err: &UpstreamError{Status: http.StatusNotFound, URL: "x"}},
		{name: "Scenario 4: Network failure", err: &UpstreamError{URL: "x", Err: errors.New("connection refused")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.err, ErrUpstreamUnavailable)
			require.Equal(t, tc.canceled, errors.Is(tc.err, context.Canceled))
		})
	}
}

func TestUpstreamStatus(t *testing.T) {
	require.Equal(t, http.StatusForbidden, UpstreamStatus(wrap(&UpstreamError{Status: http.StatusForbidden})))
	require.Equal(t, 0, UpstreamStatus(&UpstreamError{Err: context.DeadlineExceeded}))
	require.Equal(t, 0, UpstreamStatus(ErrInvalidArgument))
}

func wrap(err error) error {
	return fmt.Errorf("cannot load: %w", err)
}
