package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// AllocatorStore is the subset of the VA ledger the allocator needs.
type AllocatorStore interface {
	FirstPendingCustomerNo(clientID string) (string, error)
	MaxCustomerNo(clientID string) (int64, error)
}

// SequenceCursor remembers the last handed-out number per client.
type SequenceCursor interface {
	Get(ctx context.Context, clientID string) (int64, error)
	Set(ctx context.Context, clientID string, last int64) error
	Invalidate(ctx context.Context, clientID string) error
}

// customerNoDigits is the fixed width of a BRIVA customer number.
const customerNoDigits = 13

// Allocator hands out customer numbers for new virtual accounts. A
// number from an abandoned PENDING attempt is reused before a new one
// is minted; fresh numbers come from a cached cursor, falling back to a
// ledger scan when the cursor is cold.
type Allocator struct {
	store  AllocatorStore
	cursor SequenceCursor

	mu sync.Mutex
}

// NewAllocator creates an Allocator. cursor may be nil, in which case
// every fresh number costs a ledger scan.
func NewAllocator(store AllocatorStore, cursor SequenceCursor) *Allocator {
	return &Allocator{store: store, cursor: cursor}
}

// Next returns the customer number for the next create attempt and
// whether it was reused from an abandoned PENDING row.
func (a *Allocator) Next(ctx context.Context, clientID string) (customerNo string, reused bool, err error) {
	pending, err := a.store.FirstPendingCustomerNo(clientID)
	switch {
	case err == nil:
		return pending, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	last, err := a.lastAllocated(ctx, clientID)
	if err != nil {
		return "", false, err
	}

	next := last + 1
	if a.cursor != nil {
		if err := a.cursor.Set(ctx, clientID, next); err != nil {
			log.Warn().Err(err).Str("client_id", clientID).Msg("Failed to advance sequence cursor")
		}
	}
	return fmt.Sprintf("%0*d", customerNoDigits, next), false, nil
}

// InvalidateCursor drops the cached cursor so the next allocation
// rebuilds it from the ledger. Called when the bank reports a duplicate
// the ledger did not predict.
func (a *Allocator) InvalidateCursor(ctx context.Context, clientID string) {
	if a.cursor == nil {
		return
	}
	if err := a.cursor.Invalidate(ctx, clientID); err != nil {
		log.Warn().Err(err).Str("client_id", clientID).Msg("Failed to invalidate sequence cursor")
	}
}

func (a *Allocator) lastAllocated(ctx context.Context, clientID string) (int64, error) {
	if a.cursor != nil {
		if last, err := a.cursor.Get(ctx, clientID); err == nil {
			return last, nil
		}
	}
	return a.store.MaxCustomerNo(clientID)
}
