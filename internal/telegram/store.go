package telegram

import (
	"context"
	"time"
)

// SessionStatus is the lifecycle state of a deep-link login.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusCompleted SessionStatus = "completed"
)

// PendingSession is a deep-link login waiting for the bot to confirm it.
type PendingSession struct {
	Token     string        `json:"token"`
	Status    SessionStatus `json:"status"`
	User      *Identity     `json:"user,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Completed reports whether the bot has attached an identity.
func (s *PendingSession) Completed() bool {
	return s.Status == StatusCompleted
}

// CompletionResult is the outcome of a compare-and-swap on a session.
type CompletionResult int

const (
	ResultNotFound CompletionResult = iota
	ResultCompleted
	ResultAlreadyCompleted
)

func (r CompletionResult) String() string {
	switch r {
	case ResultCompleted:
		return "completed"
	case ResultAlreadyCompleted:
		return "already_completed"
	default:
		return "not_found"
	}
}

// SessionStore persists pending sessions. Sessions created at or before
// cutoff are treated as absent by Get and Complete.
type SessionStore interface {
	Put(ctx context.Context, session PendingSession) error
	Get(ctx context.Context, token string, cutoff time.Time) (*PendingSession, error)
	// Complete moves a pending session to completed. A completed session is
	// never rewritten.
	Complete(ctx context.Context, token string, identity Identity, cutoff time.Time) (CompletionResult, error)
	// Consume removes a completed session and returns it in one step, so
	// only one caller ever receives it. A pending session is returned as a
	// snapshot and left in place.
	Consume(ctx context.Context, token string, cutoff time.Time) (*PendingSession, error)
	Delete(ctx context.Context, token string) error
	// Sweep removes every session created before cutoff and returns how
	// many were dropped.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

func expired(createdAt, cutoff time.Time) bool {
	return createdAt.Before(cutoff)
}
