package sse

import (
	"errors"
	"time"
)

const (
	EventConnected        = "connected"
	EventPing             = "ping"
	EventNewBlog          = "new_blog"
	EventBlogUpdated      = "blog_updated"
	EventBlogDeleted      = "blog_deleted"
	EventRSSPassCompleted = "rss_pass_completed"
)

var ErrClientClosed = errors.New("sse client closed")

// Event is written to clients as a single data frame holding its JSON.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
