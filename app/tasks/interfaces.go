package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/publish"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to manage background work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerRSS() bool
	RSSRunning() bool
	Running() []JobInfo
	CancelOlderThan(d time.Duration) []JobInfo
}

type WebsitePublisher interface {
	Publish(ctx context.Context, post publish.Post, categoryID *int64) (*database.Blog, error)
}

type TelegramPublisher interface {
	Publish(ctx context.Context, post publish.Post) (int64, error)
}

type PriceScraper interface {
	Run(ctx context.Context, source database.CarSource) ([]database.CarPrice, error)
}

type Notifier interface {
	Notify(eventType string, data any) int
}

// JobInfo describes a task that is currently executing.
type JobInfo struct {
	ID        string        `json:"id"`
	Type      TaskType      `json:"type"`
	Target    string        `json:"target,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}
