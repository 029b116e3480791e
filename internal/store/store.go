// Package store persists interview sessions.
package store

import (
	"context"
	"time"

	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

// Store keeps at most one session per identifier. Implementations must be
// safe for concurrent use; callers serialise read-modify-write cycles on a
// single session themselves.
type Store interface {
	// Create inserts a new session, failing with ErrDuplicateSession when
	// the id is taken.
	Create(ctx context.Context, session interview.Session) error
	// Get returns a copy of the session or ErrSessionNotFound.
	Get(ctx context.Context, id string) (interview.Session, error)
	// Put replaces an existing session. Unknown ids yield ErrSessionNotFound.
	Put(ctx context.Context, session interview.Session) error
	Delete(ctx context.Context, id string) error
	// ListByCase returns the sessions of a case, oldest first.
	ListByCase(ctx context.Context, caseID string) ([]interview.Session, error)
	// DeleteExpired removes sessions last updated before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}
