package tasks

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
	"github.com/lysyi3m/khabar/app/publish"
	"github.com/lysyi3m/khabar/app/sse"
)

const testFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>منبع</title>
    <link>https://source.example</link>
    <item>
      <title>افزایش قیمت خودرو</title>
      <link>https://source.example/news/1</link>
      <guid>1</guid>
      <description>قیمت خودرو در بازار افزایش یافت.</description>
    </item>
    <item>
      <title>آگهی ویژه</title>
      <link>https://source.example/news/2</link>
      <guid>2</guid>
      <description>تبلیغ</description>
    </item>
    <item>
      <title>نرخ ارز</title>
      <link>https://source.example/news/3</link>
      <guid>3</guid>
      <description>نرخ ارز ثابت ماند.</description>
    </item>
  </channel>
</rss>`

type rssFixture struct {
	db       *database.DB
	repo     *database.RSSRepo
	blogs    *database.BlogRepo
	notifier *mockNotifier
	telegram *mockTelegram
	rewriter *mockRewriter
	pipeline *RSSPipeline
	source   *database.RSSSource
}

func newRSSFixture(t *testing.T, feedURL string) *rssFixture {
	t.Helper()
	ctx := context.Background()

	db := newTestDB(t)
	repo := database.NewRSSRepository(db)
	blogs := database.NewBlogRepository(db)
	notifier := &mockNotifier{}
	telegram := &mockTelegram{}
	rewriter := &mockRewriter{}

	source := &database.RSSSource{
		Name:    "source",
		URL:     feedURL,
		Active:  true,
		Timeout: 5,
		Filters: []database.RSSFilter{{Field: "title", Excludes: []string{"آگهی"}}},
	}
	if err := repo.CreateSource(ctx, source); err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	settings := &database.RSSSettings{
		Active:            true,
		IntervalMinutes:   30,
		RewriteEnabled:    true,
		PublishWebsite:    true,
		PublishTelegram:   true,
		MaxItemsPerSource: 10,
	}
	if err := repo.UpdateSettings(ctx, settings); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}

	pipeline := &RSSPipeline{
		Repo:       repo,
		HTTPClient: http.DefaultClient,
		Parser:     feed.NewParser(),
		Filterer:   feed.NewFilterer(),
		Extractor:  feed.NewContentExtractor(),
		Rewriter:   rewriter,
		Website:    publish.NewWebsite(content.NewService(blogs, notifier)),
		Telegram:   telegram,
		Notifier:   notifier,
		SiteURL:    "https://khabar.example",
		UserAgent:  "Khabar/test",
	}

	return &rssFixture{
		db:       db,
		repo:     repo,
		blogs:    blogs,
		notifier: notifier,
		telegram: telegram,
		rewriter: rewriter,
		pipeline: pipeline,
		source:   source,
	}
}

func TestRSSPassTask_PublishesNewItems(t *testing.T) {
	server := newStaticServer(t, "application/rss+xml", testFeed)
	f := newRSSFixture(t, server.URL)
	ctx := context.Background()

	task := NewRSSPassTask(f.pipeline)
	task.Start()
	if err := task.Execute(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	items, total, err := f.repo.ListItems(ctx, f.source.ID, 0, 0)
	if err != nil {
		t.Fatalf("Failed to list items: %v", err)
	}
	if total != 3 {
		t.Fatalf("Expected 3 recorded items, got %d", total)
	}

	statuses := map[string]database.RSSItem{}
	for _, item := range items {
		statuses[item.GUID] = item
	}
	if statuses["2"].Status != database.RSSItemFiltered {
		t.Errorf("Expected item 2 to be filtered, got %s", statuses["2"].Status)
	}
	if statuses["1"].Status != database.RSSItemPublished || statuses["1"].BlogID == nil || statuses["1"].TelegramMessageID == nil {
		t.Errorf("Expected item 1 to be published to both targets, got %+v", statuses["1"])
	}

	blogs, blogTotal, err := f.blogs.List(ctx, database.BlogFilter{Status: database.BlogStatusPublished})
	if err != nil {
		t.Fatalf("Failed to list blogs: %v", err)
	}
	if blogTotal != 2 {
		t.Fatalf("Expected 2 published blogs, got %d", blogTotal)
	}
	for _, blog := range blogs {
		if !strings.HasPrefix(blog.Title, "بازنویسی: ") {
			t.Errorf("Expected rewritten title, got %s", blog.Title)
		}
		if blog.SourceURL == "" {
			t.Error("Expected blog source URL to be set")
		}
	}

	if len(f.telegram.posts) != 2 {
		t.Fatalf("Expected 2 telegram posts, got %d", len(f.telegram.posts))
	}
	if !strings.HasPrefix(f.telegram.posts[0].SourceURL, "https://khabar.example/news/") {
		t.Errorf("Expected telegram post to link to the site, got %s", f.telegram.posts[0].SourceURL)
	}

	if f.notifier.count(sse.EventNewBlog) != 2 {
		t.Errorf("Expected 2 new_blog events, got %d", f.notifier.count(sse.EventNewBlog))
	}
	if f.notifier.count(sse.EventRSSPassCompleted) != 1 {
		t.Errorf("Expected 1 rss_pass_completed event, got %d", f.notifier.count(sse.EventRSSPassCompleted))
	}

	settings, _ := f.repo.GetSettings(ctx)
	if settings.LastCheckAt == nil {
		t.Error("Expected last_check_at to be persisted")
	}

	source, _ := f.repo.GetSource(ctx, f.source.ID)
	if source.LastFetchedAt == nil || source.LastError != "" {
		t.Errorf("Expected source to be marked fetched without error, got %+v", source)
	}

	// a second pass sees only known items
	second := NewRSSPassTask(f.pipeline)
	if err := second.Execute(ctx); err != nil {
		t.Fatalf("Expected no error on second pass, got %v", err)
	}
	if _, total, _ := f.repo.ListItems(ctx, f.source.ID, 0, 0); total != 3 {
		t.Errorf("Expected no new items on second pass, got %d", total)
	}
	if f.rewriter.calls != 2 {
		t.Errorf("Expected 2 rewrite calls in total, got %d", f.rewriter.calls)
	}
}

func TestRSSPassTask_FeedErrorStillMarksChecked(t *testing.T) {
	server := newStaticServer(t, "text/plain", "not a feed")
	f := newRSSFixture(t, server.URL)
	ctx := context.Background()

	if err := NewRSSPassTask(f.pipeline).Execute(ctx); err != nil {
		t.Fatalf("Expected source errors to be swallowed, got %v", err)
	}

	source, _ := f.repo.GetSource(ctx, f.source.ID)
	if source.LastError == "" {
		t.Error("Expected source error to be recorded")
	}

	settings, _ := f.repo.GetSettings(ctx)
	if settings.LastCheckAt == nil {
		t.Error("Expected last_check_at to be persisted after a failed source")
	}

	if f.notifier.count(sse.EventRSSPassCompleted) != 1 {
		t.Error("Expected rss_pass_completed event")
	}
}

func TestRSSPassTask_RewriteFailureRecordsFailedItem(t *testing.T) {
	server := newStaticServer(t, "application/rss+xml", testFeed)
	f := newRSSFixture(t, server.URL)
	f.rewriter.err = errBoom
	ctx := context.Background()

	if err := NewRSSPassTask(f.pipeline).Execute(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	items, _, _ := f.repo.ListItems(ctx, f.source.ID, 0, 0)
	failed := 0
	for _, item := range items {
		if item.Status == database.RSSItemFailed {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("Expected 2 failed items, got %d", failed)
	}
	if len(f.telegram.posts) != 0 {
		t.Errorf("Expected nothing published, got %d telegram posts", len(f.telegram.posts))
	}
}

func TestRSSPassTask_TelegramOnlyPartialFailure(t *testing.T) {
	server := newStaticServer(t, "application/rss+xml", testFeed)
	f := newRSSFixture(t, server.URL)
	f.telegram.err = errBoom
	ctx := context.Background()

	if err := NewRSSPassTask(f.pipeline).Execute(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	items, _, _ := f.repo.ListItems(ctx, f.source.ID, 0, 0)
	for _, item := range items {
		if item.GUID == "1" {
			if item.Status != database.RSSItemPublished {
				t.Errorf("Expected website publish to count as published, got %s", item.Status)
			}
			if !strings.Contains(item.Reason, "telegram") {
				t.Errorf("Expected telegram failure in reason, got %q", item.Reason)
			}
		}
	}
}

func TestRSSPassTask_NoTargetsSkips(t *testing.T) {
	server := newStaticServer(t, "application/rss+xml", testFeed)
	f := newRSSFixture(t, server.URL)
	ctx := context.Background()

	settings, _ := f.repo.GetSettings(ctx)
	settings.PublishWebsite = false
	settings.PublishTelegram = false
	f.repo.UpdateSettings(ctx, settings)

	before := time.Now().Add(-time.Second)
	if err := NewRSSPassTask(f.pipeline).Execute(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, total, _ := f.repo.ListItems(ctx, f.source.ID, 0, 0); total != 0 {
		t.Errorf("Expected no items processed, got %d", total)
	}

	settings, _ = f.repo.GetSettings(ctx)
	if settings.LastCheckAt == nil || settings.LastCheckAt.Before(before.Truncate(time.Second)) {
		t.Error("Expected last_check_at to be persisted")
	}
}
