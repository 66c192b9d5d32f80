package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/khabar/app/api"
	"github.com/lysyi3m/khabar/app/auth"
	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
	"github.com/lysyi3m/khabar/app/tasks"
)

// bootstrapAdmin creates the first admin account when none exists.
func bootstrapAdmin(ctx context.Context, users database.UserRepository, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	count, err := users.CountByRole(ctx, database.RoleAdmin)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &database.User{
		Name:         "مدیر",
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         database.RoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin %s: %w", admin.Email, err)
	}

	slog.Info("Admin account created", "email", admin.Email, "id", admin.ID)
	return nil
}

type taskFactory struct {
	catalog    *feed.SourceCatalog
	rssRepo    database.RSSRepository
	categories database.CategoryRepository
	cars       database.CarRepository
	scraper    tasks.PriceScraper
	guard      *auth.Guard
	otpRepo    database.OTPRepository
}

var _ api.TaskFactory = (*taskFactory)(nil)

func (f *taskFactory) ScrapeCarPrices(source database.CarSource) tasks.TaskInterface {
	return tasks.NewScrapeCarPricesTask(source, f.scraper, f.cars)
}

func (f *taskFactory) Cleanup() tasks.TaskInterface {
	return tasks.NewCleanupTask(f.guard, f.otpRepo, f.rssRepo, tasks.DefaultRSSItemRetention)
}

func (f *taskFactory) SyncSources() tasks.TaskInterface {
	return tasks.NewSyncSourcesTask(f.catalog, f.rssRepo, f.categories)
}
