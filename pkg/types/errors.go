package types

import (
	"context"
	"errors"
)

// Error kinds surfaced to the user. None of them is fatal.
var (
	ErrNoImage             = errors.New("no image available")
	ErrDecode              = errors.New("failed to access raw pixel buffer")
	ErrDetectionInvocation = errors.New("failed to perform detection")
	ErrRender              = errors.New("failed to render overlay")
	ErrEmptyResults        = errors.New("no results")
)

// kinds is ordered by precedence: an adapter failure caused by a cancelled
// context reports the cancellation, not the invocation.
var kinds = []error{
	ErrNoImage,
	ErrDecode,
	ErrRender,
	ErrEmptyResults,
	context.Canceled,
	context.DeadlineExceeded,
	ErrDetectionInvocation,
}

// KindOf returns the error kind err belongs to, or nil when it matches none.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
