package sse

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/khabar/app/metrics"
)

// Registry holds the open event streams of this process and fans events out
// to them. Delivery is best-effort: a client whose write fails is dropped.
type Registry struct {
	mu           sync.RWMutex
	clients      map[*Client]struct{}
	pingInterval time.Duration
	writeTimeout time.Duration
	closed       bool
	done         chan struct{}
	now          func() time.Time
}

func NewRegistry(pingInterval time.Duration) *Registry {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Registry{
		clients:      make(map[*Client]struct{}),
		pingInterval: pingInterval,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
		now:          time.Now,
	}
}

// Register adds c. A closed registry closes c instead.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.Close()
		return
	}
	r.clients[c] = struct{}{}
	count := len(r.clients)
	metrics.SSEClients.Set(float64(count))
	r.mu.Unlock()

	slog.Debug("SSE client registered", "client_id", c.ID(), "clients", count)
}

// Unregister removes and closes c. Removing an absent client is a no-op.
func (r *Registry) Unregister(c *Client) {
	r.detach(c)
	c.Close()
}

// detach removes c from the registry without waiting on its writes.
func (r *Registry) detach(c *Client) {
	r.mu.Lock()
	_, ok := r.clients[c]
	delete(r.clients, c)
	count := len(r.clients)
	if ok {
		metrics.SSEClients.Set(float64(count))
	}
	r.mu.Unlock()

	if ok {
		slog.Debug("SSE client unregistered", "client_id", c.ID(), "clients", count)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast writes event to every client registered at call time and returns
// the number of successful deliveries. Each write is independent of the
// others; failed clients are unregistered. Clients that have not accepted the
// event within the write timeout are dropped and do not hold up the caller.
func (r *Registry) Broadcast(event Event) int {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}

	r.mu.RLock()
	snapshot := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	if len(snapshot) == 0 {
		return 0
	}

	type result struct {
		c  *Client
		ok bool
	}
	results := make(chan result, len(snapshot))
	for _, c := range snapshot {
		go func(c *Client) {
			if err := c.Send(event); err != nil {
				if !errors.Is(err, ErrClientClosed) {
					metrics.SSEWriteFailures.Inc()
					slog.Debug("SSE write failed", "client_id", c.ID(), "error", err)
				}
				r.Unregister(c)
				results <- result{c: c}
				return
			}
			results <- result{c: c, ok: true}
		}(c)
	}

	timer := time.NewTimer(r.writeTimeout)
	defer timer.Stop()

	pending := make(map[*Client]struct{}, len(snapshot))
	for _, c := range snapshot {
		pending[c] = struct{}{}
	}

	delivered := 0
	for len(pending) > 0 {
		select {
		case res := <-results:
			delete(pending, res.c)
			if res.ok {
				delivered++
			}
		case <-timer.C:
			for c := range pending {
				metrics.SSEWriteFailures.Inc()
				slog.Debug("SSE write timed out", "client_id", c.ID(), "timeout", r.writeTimeout)
				r.detach(c)
				c.cancel()
			}
			return delivered
		}
	}

	return delivered
}

// Notify broadcasts an event of the given type stamped with the current time.
func (r *Registry) Notify(eventType string, data any) int {
	return r.Broadcast(Event{Type: eventType, Data: data, Timestamp: r.now()})
}

// Close unregisters every client and makes Serve calls return.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.done)
	clients := r.clients
	r.clients = make(map[*Client]struct{})
	metrics.SSEClients.Set(0)
	r.mu.Unlock()

	for c := range clients {
		c.cancel()
	}
}

// Serve streams events to w until ctx is done, a ping fails, or the registry
// is closed. The client is always unregistered on return.
func (r *Registry) Serve(ctx context.Context, w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	c := NewClient(w)
	c.writeTimeout = r.writeTimeout
	r.Register(c)
	defer r.Unregister(c)

	if err := c.Send(Event{Type: EventConnected, Data: map[string]string{"client_id": c.ID()}, Timestamp: r.now()}); err != nil {
		return err
	}

	ticker := time.NewTicker(r.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return nil
		case <-r.done:
			return nil
		case <-ticker.C:
			if err := c.Send(Event{Type: EventPing, Timestamp: r.now()}); err != nil {
				metrics.SSEWriteFailures.Inc()
				return err
			}
		}
	}
}
