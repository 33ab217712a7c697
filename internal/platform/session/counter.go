package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arnforge/modkit/internal/platform/errs"
	"github.com/arnforge/modkit/internal/platform/store"
)

const counterKind = "attempt_counter"

type counterRecord struct {
	Count    int       `json:"count"`
	WindowAt time.Time `json:"windowAt"`
}

// StoreCounter implements Counter against an injected store.Store, so
// attempt counts survive a restart when the backing Store is itself
// persistent (§4.9) — unlike Tracker's own in-memory per-process state,
// which NewTracker/NewTrackerWithClock fall back to when no Counter is
// supplied.
type StoreCounter struct {
	backing store.Store
	now     func() time.Time
}

// NewStoreCounter builds a StoreCounter against backing, using the real
// wall clock to evaluate window expiry.
func NewStoreCounter(backing store.Store) *StoreCounter {
	return &StoreCounter{backing: backing, now: time.Now}
}

func counterID(key string, purpose Purpose) string {
	return fmt.Sprintf("%s:%s", purpose, key)
}

// Increment bumps key's count for purpose, resetting it first if window has
// elapsed since the current window's first failure, and returns the new count.
func (c *StoreCounter) Increment(key string, purpose Purpose, window time.Duration) (int, error) {
	ctx := context.Background()
	id := counterID(key, purpose)

	var rec counterRecord

	doc, err := c.backing.Get(ctx, counterKind, id)

	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(doc.Data, &rec); jsonErr != nil {
			return 0, fmt.Errorf("decode attempt counter %s: %w", id, jsonErr)
		}
	case errors.Is(err, errs.ErrNotFound):
		// no prior record; rec stays zero-valued.
	default:
		return 0, err
	}

	now := c.now()
	if rec.WindowAt.IsZero() || now.Sub(rec.WindowAt) > window {
		rec.Count = 0
		rec.WindowAt = now
	}

	rec.Count++

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode attempt counter %s: %w", id, err)
	}

	if err := c.backing.Put(ctx, store.Document{Kind: counterKind, ID: id, Data: data}); err != nil {
		return 0, err
	}

	return rec.Count, nil
}

// Reset clears key's count for purpose.
func (c *StoreCounter) Reset(key string, purpose Purpose) error {
	err := c.backing.Delete(context.Background(), counterKind, counterID(key, purpose))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	return nil
}
