// Package admin provides destructive maintenance operations on the grades store.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JonMunkholm/grades/internal/core"
)

// ResetTimeout is the maximum duration for a reset.
const ResetTimeout = 30 * time.Second

var (
	// ErrNotConfirmed is returned when a reset is requested without confirmation.
	ErrNotConfirmed = errors.New("reset deletes every student and grade; confirmation required")

	// ErrResetUnsupported is returned for stores that cannot be reset.
	ErrResetUnsupported = errors.New("storage backend does not support reset")
)

// Resetter is implemented by stores that can delete all students and grades.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ResetAll deletes every student and grade held by store.
// This is a destructive operation and requires confirmed to be true.
func ResetAll(ctx context.Context, store core.Store, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	r, ok := store.(Resetter)
	if !ok {
		return ErrResetUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	start := time.Now()
	if err := r.Reset(ctx); err != nil {
		return &core.StorageError{Op: "reset", Err: err}
	}
	slog.Warn("all students and grades deleted", "duration", time.Since(start))
	return nil
}
