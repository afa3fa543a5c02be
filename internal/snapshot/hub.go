// Package snapshot keeps the latest full view of the ledger in memory and
// reloads it whenever something changes.
//
// Reloads are coalesced with singleflight and installed last-write-wins by a
// sequence number taken when the load started, so a slow load that began
// before a newer one can never overwrite it.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

// Snapshot is an immutable full view of cards, transactions and budgets.
// Callers must not modify the slices.
type Snapshot struct {
	Version      uint64
	LoadedAt     time.Time
	Cards        []core.Card
	Transactions []core.Transaction
	Budgets      []core.Budget
}

// Card returns the card with the given id.
func (s *Snapshot) Card(id string) (core.Card, bool) {
	for _, c := range s.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return core.Card{}, false
}

// Transaction returns the transaction with the given id.
func (s *Snapshot) Transaction(id string) (core.Transaction, bool) {
	for _, t := range s.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// Source loads a complete snapshot. Version and LoadedAt are set by the Hub.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Entities and operations carried by a Change.
const (
	EntityCard        = "card"
	EntityTransaction = "transaction"
	EntityBudget      = "budget"

	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change describes a write that invalidates the current snapshot.
type Change struct {
	Entity string
	ID     string
	Op     string
}

// Hub holds the latest snapshot and refreshes it on change.
type Hub struct {
	source Source
	logger *log.Logger
	now    func() time.Time

	group   singleflight.Group
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64
	trigger chan struct{}

	mu   sync.Mutex
	subs map[chan *Snapshot]struct{}
}

// NewHub creates a hub over source. Nothing is loaded until the first
// Refresh or Current call.
func NewHub(source Source, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		source:  source,
		logger:  logger.WithComponent(log.ComponentSnapshot),
		now:     time.Now,
		trigger: make(chan struct{}, 1),
		subs:    make(map[chan *Snapshot]struct{}),
	}
}

const refreshKey = "refresh"

// Refresh loads a new snapshot and installs it unless a load that started
// later has already been installed. Concurrent calls share one load.
func (h *Hub) Refresh(ctx context.Context) (*Snapshot, error) {
	ch := h.group.DoChan(refreshKey, func() (any, error) {
		return h.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (h *Hub) load(ctx context.Context) (*Snapshot, error) {
	seq := h.seq.Add(1)
	snap, err := h.source.Snapshot(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "Snapshot load failed", log.FieldVersion, seq, log.FieldError, err)
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap.Version = seq
	snap.LoadedAt = h.now()
	return h.install(&snap), nil
}

// install stores snap unless a newer version is already current and returns
// whichever snapshot is current afterwards.
func (h *Hub) install(snap *Snapshot) *Snapshot {
	for {
		cur := h.current.Load()
		if cur != nil && cur.Version >= snap.Version {
			h.logger.Debug("Discarding stale snapshot", log.FieldVersion, snap.Version, "current_version", cur.Version)
			return cur
		}
		if h.current.CompareAndSwap(cur, snap) {
			h.logger.Debug("Snapshot installed",
				log.FieldVersion, snap.Version,
				"cards", len(snap.Cards),
				"transactions", len(snap.Transactions),
				"budgets", len(snap.Budgets))
			h.broadcast(snap)
			return snap
		}
	}
}

// Current returns the installed snapshot, loading one first if needed.
func (h *Hub) Current(ctx context.Context) (*Snapshot, error) {
	if snap := h.current.Load(); snap != nil {
		return snap, nil
	}
	return h.Refresh(ctx)
}

// Loaded returns the installed snapshot without loading. It is nil before the first load.
func (h *Hub) Loaded() *Snapshot {
	return h.current.Load()
}

// Notify marks the current snapshot as outdated. The next Refresh starts a
// fresh load instead of joining one that may have read the old data, and
// Run picks the change up asynchronously.
func (h *Hub) Notify(change Change) {
	h.group.Forget(refreshKey)
	h.logger.Debug("Change received", log.FieldEntity, change.Entity, log.FieldID, change.ID, log.FieldOperation, change.Op)
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes the snapshot for every change read from changes and for
// every Notify call, until ctx is done or changes is closed. A nil changes
// channel means only Notify drives refreshes.
func (h *Hub) Run(ctx context.Context, changes <-chan Change) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			h.Notify(c)
		case <-h.trigger:
			if _, err := h.Refresh(ctx); err != nil && ctx.Err() == nil {
				h.logger.ErrorContext(ctx, "Snapshot refresh failed", log.FieldError, err)
			}
		}
	}
}

// Subscribe returns a channel that receives every installed snapshot. Slow
// subscribers only ever see the latest one. Call cancel to unsubscribe.
func (h *Hub) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (h *Hub) broadcast(*Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Installs may broadcast out of order; always deliver the newest.
	snap := h.current.Load()
	for ch := range h.subs {
		for {
			select {
			case ch <- snap:
			default:
				// Drop the stale value and retry with the new one.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}
