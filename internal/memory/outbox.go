package memory

import (
	"context"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
)

type OutboxStore struct{ s *Store }

// LockBatch claims pending events. Leases are not tracked: a single process
// owns the store, so an in-progress event cannot be orphaned by another relay.
func (o *OutboxStore) LockBatch(_ context.Context, relayID string, batchSize int, _ time.Duration) ([]outbox.Event, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	var out []outbox.Event
	for i := range o.s.outbox {
		if len(out) == batchSize {
			break
		}
		ev := &o.s.outbox[i]
		if ev.Status != outbox.StatusPending {
			continue
		}
		ev.Status = outbox.StatusInProgress
		ev.RelayID = relayID
		out = append(out, *ev)
	}
	return out, nil
}

// MarkSent drops the delivered events; only undelivered ones stay queued.
func (o *OutboxStore) MarkSent(_ context.Context, ids []int64) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	kept := o.s.outbox[:0]
	for _, ev := range o.s.outbox {
		if _, ok := set[ev.ID]; !ok {
			kept = append(kept, ev)
		}
	}
	clear(o.s.outbox[len(kept):])
	o.s.outbox = kept
	return nil
}

func (o *OutboxStore) ExtendLease(_ context.Context, _ string, _ []int64, _ time.Duration) error {
	return nil
}

func (o *OutboxStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for i := range o.s.outbox {
		ev := &o.s.outbox[i]
		if ev.ID != id {
			continue
		}
		ev.RetryCount++
		msg := errMsg
		ev.LastError = &msg
		if ev.RetryCount >= outbox.MaxAttempts {
			ev.Status = outbox.StatusFailed
		} else {
			ev.Status = outbox.StatusPending
		}
	}
	return nil
}

// Events returns a snapshot of the events not yet delivered.
func (o *OutboxStore) Events() []outbox.Event {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return append([]outbox.Event(nil), o.s.outbox...)
}
