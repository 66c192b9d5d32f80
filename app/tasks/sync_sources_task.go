package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
)

// SyncSourcesTask writes the YAML source definitions into rss_sources.
type SyncSourcesTask struct {
	Task
	catalog      *feed.SourceCatalog
	rssRepo      database.RSSRepository
	categoryRepo database.CategoryRepository
}

func NewSyncSourcesTask(catalog *feed.SourceCatalog, rssRepo database.RSSRepository, categoryRepo database.CategoryRepository) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:         NewTask(TaskTypeSyncSources, ""),
		catalog:      catalog,
		rssRepo:      rssRepo,
		categoryRepo: categoryRepo,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.catalog.Run(); err != nil {
		return fmt.Errorf("failed to load source definitions: %w", err)
	}

	synced := 0
	for _, def := range t.catalog.All() {
		src := &database.RSSSource{
			Name:           def.Name,
			URL:            def.URL,
			Active:         def.Settings.Enabled,
			ExtractContent: def.Settings.ExtractContent,
			Timeout:        def.Settings.Timeout,
			Filters:        def.Filters,
		}

		if def.Category != "" {
			category, err := t.categoryRepo.GetBySlug(ctx, def.Category)
			if err != nil {
				return fmt.Errorf("failed to look up category %s: %w", def.Category, err)
			}
			if category == nil {
				slog.Warn("Unknown category in source definition", "source", def.Name, "category", def.Category)
			} else {
				src.CategoryID = &category.ID
			}
		}

		if err := t.rssRepo.UpsertSourceByName(ctx, src); err != nil {
			slog.Error("Task failed", "type", t.GetType(), "source", def.Name, "error", err)
			return fmt.Errorf("failed to sync source definition to database: %w", err)
		}
		synced++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"sources", synced)

	return nil
}
