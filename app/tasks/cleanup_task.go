package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/khabar/app/database"
)

// DefaultRSSItemRetention is how long processed RSS items are kept for
// duplicate detection.
const DefaultRSSItemRetention = 30 * 24 * time.Hour

type attemptCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// CleanupResult counts the rows removed by a cleanup run.
type CleanupResult struct {
	LoginAttempts int64 `json:"login_attempts"`
	OTPCodes      int64 `json:"otp_codes"`
	RSSItems      int64 `json:"rss_items"`
}

type CleanupTask struct {
	Task
	guard        attemptCleaner
	otpRepo      database.OTPRepository
	rssRepo      database.RSSRepository
	rssRetention time.Duration
	now          func() time.Time

	Result CleanupResult
}

func NewCleanupTask(guard attemptCleaner, otpRepo database.OTPRepository, rssRepo database.RSSRepository, rssRetention time.Duration) *CleanupTask {
	return &CleanupTask{
		Task:         NewTask(TaskTypeCleanup, ""),
		guard:        guard,
		otpRepo:      otpRepo,
		rssRepo:      rssRepo,
		rssRetention: rssRetention,
		now:          time.Now,
	}
}

func (t *CleanupTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var errs []error
	now := t.now()

	if n, err := t.guard.Cleanup(ctx); err != nil {
		errs = append(errs, err)
	} else {
		t.Result.LoginAttempts = n
	}

	if n, err := t.otpRepo.DeleteExpired(ctx, now); err != nil {
		errs = append(errs, err)
	} else {
		t.Result.OTPCodes = n
	}

	if t.rssRetention > 0 {
		if n, err := t.rssRepo.DeleteItemsOlderThan(ctx, now.Add(-t.rssRetention)); err != nil {
			errs = append(errs, err)
		} else {
			t.Result.RSSItems = n
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"login_attempts", t.Result.LoginAttempts,
		"otp_codes", t.Result.OTPCodes,
		"rss_items", t.Result.RSSItems)

	return nil
}
