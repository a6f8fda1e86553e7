package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrContention is returned when the key kept changing state between create and fetch.
var ErrContention = errors.New("idempotency key contention")

const maxGuardAttempts = 3

// Gate decides, per key, whether a request runs, replays or is rejected.
type Gate struct {
	store *Store
}

func NewGate(store *Store) *Gate {
	return &Gate{store: store}
}

// Guard claims key for this request or reports what already holds it.
//
// The first request to see a key creates a Pending record and gets Proceed. Later requests get
// Replay once the owner completed, and Conflict while it is still Pending. A Failed or expired
// record is reclaimed by exactly one later request through the same conditional write.
func (g *Gate) Guard(ctx context.Context, key, method, path string, body []byte) (Decision, error) {
	for attempt := 0; attempt < maxGuardAttempts; attempt++ {
		rec := g.store.NewPending(key, method, path, body)
		created, err := g.store.CreateIfNotExists(ctx, rec)
		if err != nil {
			return Decision{}, fmt.Errorf("guard create: %w", err)
		}
		if created {
			return Decision{Outcome: Proceed, Record: &rec}, nil
		}

		existing, err := g.store.Get(ctx, key)
		if err != nil {
			return Decision{}, fmt.Errorf("guard fetch: %w", err)
		}
		if existing == nil {
			// expired between the write and the read
			continue
		}
		if existing.RequestHash != "" && existing.RequestHash != rec.RequestHash {
			log.Printf("[gate] key=%s reused with a different body (method=%s path=%s)", key, method, path)
		}

		switch existing.Status {
		case StatusCompleted:
			return Decision{Outcome: Replay, Record: existing}, nil
		case StatusPending:
			return Decision{Outcome: Conflict, Record: existing}, nil
		case StatusFailed:
			// failed after our create was rejected; try to reclaim it
			continue
		default:
			return Decision{}, fmt.Errorf("guard: unknown status %q for key %s", existing.Status, key)
		}
	}
	return Decision{}, ErrContention
}

// Complete records the response of a Proceed request.
func (g *Gate) Complete(ctx context.Context, key string, body []byte, status int) error {
	return g.store.MarkCompleted(ctx, key, body, status)
}

// Fail releases a Proceed request's key so a retry can run.
func (g *Gate) Fail(ctx context.Context, key, note string) error {
	return g.store.MarkFailed(ctx, key, note)
}
