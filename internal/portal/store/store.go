// Package store defines the persisted session store: how the portal keeps a
// signed-in session across process restarts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/pkg/idx"
)

// ErrNotFound is returned when no session is persisted.
var ErrNotFound = errors.New("store: not found")

// Record is one persisted session. Drivers seal the token fields at rest;
// a loaded Record always carries them in the clear.
type Record struct {
	ID        idx.ID
	Session   domain.Session
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store holds at most one current session.
type Store interface {
	// Current returns the persisted session, or ErrNotFound.
	Current(ctx context.Context) (*Record, error)

	// Put makes rec the current session, replacing any previous one.
	Put(ctx context.Context, rec *Record) error

	// Clear removes the current session. Clearing an empty store is not an
	// error; sign-out must be idempotent.
	Clear(ctx context.Context) error

	// Ping verifies the store is usable.
	Ping(ctx context.Context) error

	Close() error
}
