// Package points provides the points ledger: the single write path for
// gamification awards and the read path the radius-unlock gate depends on.
package points

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Award reasons. Every award carries one so totals stay auditable; the ad-hoc
// in-handler point bumps of earlier iterations all route through here now.
const (
	ReasonOrderPlaced    = "order_placed"
	ReasonReviewWritten  = "review_written"
	ReasonPlaceSubmitted = "place_submitted"
)

// Fixed award amounts per reason.
var awardAmounts = map[string]int64{
	ReasonOrderPlaced:    10,
	ReasonReviewWritten:  5,
	ReasonPlaceSubmitted: 20,
}

// AmountFor returns the fixed award amount for a reason, or 0 and false for
// an unknown reason.
func AmountFor(reason string) (int64, bool) {
	amt, ok := awardAmounts[reason]
	return amt, ok
}

// Common errors for ledger operations.
var (
	// ErrEmptyUserID is returned when an operation is attempted without a user.
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrInvalidAmount is returned for zero or negative award amounts.
	ErrInvalidAmount = errors.New("award amount must be positive")

	// ErrUnavailable signals that the ledger's storage backend is unreachable.
	ErrUnavailable = errors.New("points store unavailable")
)

// Entry is a single append-only award record.
type Entry struct {
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger accumulates points from external actions and exposes per-user
// totals. The query path only ever reads totals; writes come from the
// order, review, and submission collaborators.
type Ledger interface {
	// Award appends a points entry for the user.
	Award(ctx context.Context, userID string, amount int64, reason string) error

	// Total returns the user's accumulated points. Unknown users have zero.
	Total(ctx context.Context, userID string) (int64, error)
}

// InMemoryLedger is an in-memory Ledger for tests and development.
// Thread-safe via RWMutex.
type InMemoryLedger struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewInMemoryLedger creates a new in-memory ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{entries: make(map[string][]Entry)}
}

// Award appends a points entry for the user.
func (l *InMemoryLedger) Award(ctx context.Context, userID string, amount int64, reason string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[userID] = append(l.entries[userID], Entry{
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Total returns the user's accumulated points.
func (l *InMemoryLedger) Total(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for _, e := range l.entries[userID] {
		total += e.Amount
	}
	return total, nil
}
