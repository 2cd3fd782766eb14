package numpipe

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAllocation is returned by New when the requested storage exceeds
	// the allowed maximum. The channel is not created.
	ErrAllocation = fmt.Errorf("cannot allocate channel storage")
	// ErrResourceBusy is returned by Destroy while handles are still open.
	ErrResourceBusy = fmt.Errorf("channel busy")
	// ErrInvalidArgument reports a malformed request; no state was changed.
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	// ErrPermissionDenied reports a read on a write-only handle or a write
	// on a read-only handle.
	ErrPermissionDenied = fmt.Errorf("permission denied")
	// ErrInterrupted is returned when the caller's context ends while the
	// operation is suspended. No credit is consumed and no element moves.
	ErrInterrupted = fmt.Errorf("interrupted")
	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = fmt.Errorf("channel destroyed")
	// ErrBadHandle is returned for operations on a closed handle or on a
	// handle that belongs to another channel.
	ErrBadHandle = fmt.Errorf("bad handle")
)

// interrupted converts a failed wait into the error the caller sees.
func interrupted(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrDestroyed) {
		return ErrDestroyed
	}
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}
