// Package syncer drives end-to-end synchronization passes against the health
// store and exposes live connection state.
package syncer

import (
	"sync"
	"time"

	"example.com/mealplan/internal/health"
)

// ConnectionState is the observable sync status surfaced to the API layer.
type ConnectionState struct {
	Availability   health.SDKStatus `json:"availability"`
	HasPermissions bool             `json:"has_permissions"`
	IsSyncing      bool             `json:"is_syncing"`
	LastSyncedAt   *time.Time       `json:"last_synced_at,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
	PendingOutbox  int              `json:"pending_outbox"`
}

// StateHolder owns the connection state and pushes snapshots to subscribers.
// It is injected explicitly; there is no package-level instance.
type StateHolder struct {
	mu    sync.RWMutex
	state ConnectionState
	subs  map[int]chan ConnectionState
	next  int
}

// NewStateHolder builds a holder starting in the unavailable state.
func NewStateHolder() *StateHolder {
	return &StateHolder{
		state: ConnectionState{Availability: health.SDKStatusUnavailable},
		subs:  make(map[int]chan ConnectionState),
	}
}

// Snapshot returns the current state.
func (h *StateHolder) Snapshot() ConnectionState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Subscribe returns a channel receiving state snapshots and a cancel func.
// Slow subscribers miss intermediate snapshots rather than blocking updates.
func (h *StateHolder) Subscribe() (<-chan ConnectionState, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan ConnectionState, 8)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Update applies the mutation under lock and notifies subscribers.
func (h *StateHolder) Update(mutate func(*ConnectionState)) {
	h.mu.Lock()
	mutate(&h.state)
	snapshot := h.state
	subs := make([]chan ConnectionState, 0, len(h.subs))
	for _, ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// SetPendingOutbox records the live outbox count on the state.
func (h *StateHolder) SetPendingOutbox(count int) {
	h.Update(func(s *ConnectionState) {
		s.PendingOutbox = count
	})
}
