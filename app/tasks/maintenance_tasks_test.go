package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
)

type mockScraper struct {
	prices []database.CarPrice
	err    error
}

func (m *mockScraper) Run(_ context.Context, _ database.CarSource) ([]database.CarPrice, error) {
	return m.prices, m.err
}

func newCarSource(t *testing.T, repo *database.CarRepo) database.CarSource {
	t.Helper()
	src := &database.CarSource{
		Name:          "bama",
		URL:           "https://cars.example/prices",
		RowSelector:   "tr",
		NameSelector:  ".name",
		PriceSelector: ".price",
		Active:        true,
	}
	if err := repo.CreateSource(context.Background(), src); err != nil {
		t.Fatalf("Failed to create car source: %v", err)
	}
	return *src
}

func TestScrapeCarPricesTask_ReplacesPrices(t *testing.T) {
	ctx := context.Background()
	repo := database.NewCarRepository(newTestDB(t))
	source := newCarSource(t, repo)

	scraper := &mockScraper{prices: []database.CarPrice{
		{Name: "پژو 206", Price: 1250000000, PriceText: "۱٬۲۵۰٬۰۰۰٬۰۰۰"},
		{Name: "سمند", Price: 980000000, PriceText: "980,000,000"},
	}}

	task := NewScrapeCarPricesTask(source, scraper, repo)
	if err := task.Execute(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	prices, err := repo.ListPrices(ctx, source.ID)
	if err != nil {
		t.Fatalf("Failed to list prices: %v", err)
	}
	if len(prices) != 2 {
		t.Errorf("Expected 2 prices, got %d", len(prices))
	}

	updated, _ := repo.GetSource(ctx, source.ID)
	if updated.LastScrapedAt == nil || updated.LastError != "" {
		t.Errorf("Expected source marked scraped without error, got %+v", updated)
	}
}

func TestScrapeCarPricesTask_FailureKeepsOldPrices(t *testing.T) {
	ctx := context.Background()
	repo := database.NewCarRepository(newTestDB(t))
	source := newCarSource(t, repo)

	if err := repo.ReplacePrices(ctx, source.ID, []database.CarPrice{{Name: "old", Price: 1}}); err != nil {
		t.Fatalf("Failed to seed prices: %v", err)
	}

	task := NewScrapeCarPricesTask(source, &mockScraper{err: errBoom}, repo)
	if err := task.Execute(ctx); err == nil {
		t.Fatal("Expected error from failing scraper")
	}

	prices, _ := repo.ListPrices(ctx, source.ID)
	if len(prices) != 1 || prices[0].Name != "old" {
		t.Errorf("Expected old prices to remain, got %+v", prices)
	}

	updated, _ := repo.GetSource(ctx, source.ID)
	if updated.LastError == "" {
		t.Error("Expected scrape error to be recorded")
	}
}

type mockCleaner struct {
	calls int
}

func (m *mockCleaner) Cleanup(_ context.Context) (int64, error) {
	m.calls++
	return 4, nil
}

func TestCleanupTask(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	otpRepo := database.NewOTPRepository(db)
	rssRepo := database.NewRSSRepository(db)

	now := time.Now()
	expired := &database.OTPCode{Phone: "09120000000", Purpose: "login", CodeHash: "x", ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)}
	valid := &database.OTPCode{Phone: "09120000000", Purpose: "login", CodeHash: "y", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	for _, code := range []*database.OTPCode{expired, valid} {
		if err := otpRepo.Create(ctx, code); err != nil {
			t.Fatalf("Failed to create otp: %v", err)
		}
	}

	source := &database.RSSSource{Name: "s", URL: "https://s.example/rss", Active: true, Timeout: 30}
	if err := rssRepo.CreateSource(ctx, source); err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	oldItem := &database.RSSItem{SourceID: source.ID, GUID: "old", ContentHash: "h1", Status: database.RSSItemPublished, CreatedAt: now.Add(-60 * 24 * time.Hour)}
	newItem := &database.RSSItem{SourceID: source.ID, GUID: "new", ContentHash: "h2", Status: database.RSSItemPublished, CreatedAt: now}
	for _, item := range []*database.RSSItem{oldItem, newItem} {
		if err := rssRepo.RecordItem(ctx, item); err != nil {
			t.Fatalf("Failed to record item: %v", err)
		}
	}

	cleaner := &mockCleaner{}
	task := NewCleanupTask(cleaner, otpRepo, rssRepo, DefaultRSSItemRetention)
	if err := task.Execute(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cleaner.calls != 1 || task.Result.LoginAttempts != 4 {
		t.Errorf("Expected login attempt cleanup to run, got %+v", task.Result)
	}
	if task.Result.OTPCodes != 1 {
		t.Errorf("Expected 1 expired otp deleted, got %d", task.Result.OTPCodes)
	}
	if task.Result.RSSItems != 1 {
		t.Errorf("Expected 1 old rss item deleted, got %d", task.Result.RSSItems)
	}
}

func TestSyncSourcesTask(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rssRepo := database.NewRSSRepository(db)
	categoryRepo := database.NewCategoryRepository(db)

	category := &database.Category{Name: "سیاسی", Slug: "politics"}
	if err := categoryRepo.Create(ctx, category); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}

	dir := t.TempDir()
	files := map[string]string{
		"isna.yml": `
url: "https://www.isna.ir/rss"
category: "politics"
settings:
  enabled: true
  extract_content: true
`,
		"other.yml": `
url: "https://other.example/rss"
category: "missing"
settings:
  enabled: false
`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	task := NewSyncSourcesTask(feed.NewSourceCatalog(dir), rssRepo, categoryRepo)
	if err := task.Execute(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	sources, err := rssRepo.ListSources(ctx)
	if err != nil {
		t.Fatalf("Failed to list sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}

	byName := map[string]database.RSSSource{}
	for _, s := range sources {
		byName[s.Name] = s
	}
	if byName["isna"].CategoryID == nil || *byName["isna"].CategoryID != category.ID {
		t.Errorf("Expected isna to reference the politics category, got %v", byName["isna"].CategoryID)
	}
	if !byName["isna"].ExtractContent || !byName["isna"].Active {
		t.Errorf("Expected isna settings to be synced, got %+v", byName["isna"])
	}
	if byName["other"].CategoryID != nil || byName["other"].Active {
		t.Errorf("Expected other to be inactive without category, got %+v", byName["other"])
	}

	// syncing again updates in place
	if err := NewSyncSourcesTask(feed.NewSourceCatalog(dir), rssRepo, categoryRepo).Execute(ctx); err != nil {
		t.Fatalf("Expected no error on resync, got %v", err)
	}
	if sources, _ := rssRepo.ListSources(ctx); len(sources) != 2 {
		t.Errorf("Expected resync to keep 2 sources, got %d", len(sources))
	}
}
