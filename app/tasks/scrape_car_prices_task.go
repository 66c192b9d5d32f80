package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/metrics"
)

type ScrapeCarPricesTask struct {
	Task
	Source  database.CarSource
	scraper PriceScraper
	carRepo database.CarRepository
	now     func() time.Time
}

func NewScrapeCarPricesTask(source database.CarSource, scraper PriceScraper, carRepo database.CarRepository) *ScrapeCarPricesTask {
	return &ScrapeCarPricesTask{
		Task:    NewTask(TaskTypeScrapeCarPrices, source.Name),
		Source:  source,
		scraper: scraper,
		carRepo: carRepo,
		now:     time.Now,
	}
}

func (t *ScrapeCarPricesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	prices, err := t.scraper.Run(ctx, t.Source)
	if err == nil {
		err = t.carRepo.ReplacePrices(ctx, t.Source.ID, prices)
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		metrics.CarScrapes.WithLabelValues("error").Inc()
	} else {
		metrics.CarScrapes.WithLabelValues("success").Inc()
	}

	if markErr := t.carRepo.MarkScraped(context.WithoutCancel(ctx), t.Source.ID, t.now(), errMsg); markErr != nil {
		slog.Error("Failed to update car source status", "source", t.Source.Name, "error", markErr)
	}

	if err != nil {
		return fmt.Errorf("failed to scrape car prices: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.Source.Name,
		"duration", t.GetDuration(),
		"rows", len(prices))

	return nil
}
