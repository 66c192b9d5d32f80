package sse

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	ginsse "github.com/gin-contrib/sse"
	"github.com/google/uuid"
)

const defaultWriteTimeout = 10 * time.Second

// Client is one open event stream. Writes are serialized; once closed the
// underlying writer is never touched again.
type Client struct {
	id           string
	w            io.Writer
	rc           *http.ResponseController
	writeTimeout time.Duration
	mu           sync.Mutex
	closed       bool
	done         chan struct{}
	doneOnce     sync.Once
}

func NewClient(w io.Writer) *Client {
	c := &Client{
		id:           uuid.NewString(),
		w:            w,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	if rw, ok := w.(http.ResponseWriter); ok {
		c.rc = http.NewResponseController(rw)
	}
	return c
}

func (c *Client) ID() string {
	return c.id
}

// Done is closed when the client is cancelled or closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send writes one event. The write is bounded by the write timeout when the
// underlying connection supports deadlines.
func (c *Client) Send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.cancelled() {
		return ErrClientClosed
	}

	if c.rc != nil && c.writeTimeout > 0 {
		if err := c.rc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err == nil {
			defer c.rc.SetWriteDeadline(time.Time{})
		} else if !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("failed to set sse write deadline: %w", err)
		}
	}

	if err := ginsse.Encode(c.w, ginsse.Event{Data: event}); err != nil {
		return fmt.Errorf("failed to write sse event: %w", err)
	}

	if c.rc != nil {
		if err := c.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("failed to flush sse event: %w", err)
		}
	} else if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}

	return nil
}

// cancel marks the client done without waiting for an in-flight Send.
func (c *Client) cancel() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Client) cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close is idempotent and waits for an in-flight Send to finish.
func (c *Client) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
