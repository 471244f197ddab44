package registry

import (
	"sync"
	"time"

	"github.com/callthedoctor/call-relay/pkg/logging"
)

// Channel is a live outbound notification link to one doctor client.
// The WebSocket transport implements it; tests use in-memory fakes.
type Channel interface {
	Send(v any) error
}

// Registry tracks which doctor endpoints are currently reachable. It is the
// single source of truth for "who can receive calls now" and holds no state
// beyond the live channel table.
type Registry interface {
	Register(doctorID string, ch Channel)
	Unregister(ch Channel)
	Lookup(doctorID string) (Channel, bool)
	BroadcastToAll(v any) int
	Count() int
}

type endpoint struct {
	ch           Channel
	registeredAt time.Time
}

// MemoryRegistry is a mutex-guarded implementation of Registry.
type MemoryRegistry struct {
	mu        sync.RWMutex
	endpoints map[string]endpoint
	logger    *logging.Logger
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(logger *logging.Logger) *MemoryRegistry {
	if logger == nil {
		logger = logging.Default()
	}
	return &MemoryRegistry{
		endpoints: make(map[string]endpoint),
		logger:    logger,
	}
}

// Register binds a doctor identity to a channel. Re-registration replaces
// the prior channel for that identity (last writer wins).
func (r *MemoryRegistry) Register(doctorID string, ch Channel) {
	if doctorID == "" || ch == nil {
		return
	}
	r.mu.Lock()
	r.endpoints[doctorID] = endpoint{ch: ch, registeredAt: time.Now().UTC()}
	r.mu.Unlock()
	r.logger.Info("doctor endpoint registered", "doctor_id", doctorID)
}

// Unregister removes every identity bound to the given channel. Disconnects
// are observed at the transport level, where only the channel is known.
func (r *MemoryRegistry) Unregister(ch Channel) {
	if ch == nil {
		return
	}
	r.mu.Lock()
	var removed []string
	for id, ep := range r.endpoints {
		if ep.ch == ch {
			delete(r.endpoints, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()
	for _, id := range removed {
		r.logger.Info("doctor endpoint unregistered", "doctor_id", id)
	}
}

// Lookup returns the live channel for a doctor identity, if any.
func (r *MemoryRegistry) Lookup(doctorID string) (Channel, bool) {
	r.mu.RLock()
	ep, ok := r.endpoints[doctorID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ep.ch, true
}

// BroadcastToAll attempts delivery to every registered channel and returns
// the number of successful sends. A dead channel never blocks the others.
func (r *MemoryRegistry) BroadcastToAll(v any) int {
	r.mu.RLock()
	channels := make(map[string]Channel, len(r.endpoints))
	for id, ep := range r.endpoints {
		channels[id] = ep.ch
	}
	r.mu.RUnlock()

	sent := 0
	for id, ch := range channels {
		if err := ch.Send(v); err != nil {
			r.logger.Warn("broadcast delivery failed", "doctor_id", id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// Count returns the number of currently reachable doctor endpoints.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

var _ Registry = (*MemoryRegistry)(nil)
