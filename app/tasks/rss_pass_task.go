package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
	"github.com/lysyi3m/khabar/app/metrics"
	"github.com/lysyi3m/khabar/app/publish"
	"github.com/lysyi3m/khabar/app/rewrite"
	"github.com/lysyi3m/khabar/app/sse"
)

// RSSPipeline holds the collaborators shared by every RSS pass.
type RSSPipeline struct {
	Repo       database.RSSRepository
	HTTPClient *http.Client
	Parser     *feed.Parser
	Filterer   *feed.Filterer
	Extractor  *feed.ContentExtractor
	Rewriter   rewrite.Rewriter
	Website    WebsitePublisher
	Telegram   TelegramPublisher // nil when Telegram is not configured
	Notifier   Notifier
	SiteURL    string
	UserAgent  string
}

// RSSPassSummary is broadcast when a pass completes.
type RSSPassSummary struct {
	Sources   int    `json:"sources"`
	Fetched   int    `json:"fetched"`
	Skipped   int    `json:"skipped"`
	Filtered  int    `json:"filtered"`
	Published int    `json:"published"`
	Failed    int    `json:"failed"`
	Errors    int    `json:"errors"`
	Duration  string `json:"duration"`
}

type RSSPassTask struct {
	Task
	p   *RSSPipeline
	now func() time.Time
}

func NewRSSPassTask(p *RSSPipeline) *RSSPassTask {
	task := &RSSPassTask{
		Task: NewTask(TaskTypeRSSPass, ""),
		p:    p,
		now:  time.Now,
	}
	// a failed pass waits for the next due tick
	task.MaxRetries = 0
	return task
}

func (t *RSSPassTask) Execute(ctx context.Context) (err error) {
	summary := RSSPassSummary{}

	defer func() {
		// last_check_at is persisted even when the pass fails
		if markErr := t.p.Repo.MarkChecked(context.WithoutCancel(ctx), t.now()); markErr != nil {
			slog.Error("Failed to persist RSS check time", "error", markErr)
			err = errors.Join(err, markErr)
		}

		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.RSSPasses.WithLabelValues(result).Inc()

		summary.Duration = t.GetDuration().String()
		if t.p.Notifier != nil {
			t.p.Notifier.Notify(sse.EventRSSPassCompleted, summary)
		}
	}()

	settings, err := t.p.Repo.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to get rss settings: %w", err)
	}
	if settings == nil {
		return fmt.Errorf("rss settings not found")
	}

	if !settings.PublishWebsite && !(settings.PublishTelegram && t.p.Telegram != nil) {
		slog.Warn("RSS pass has no publish target, skipping")
		return nil
	}

	sources, err := t.p.Repo.ActiveSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to get active sources: %w", err)
	}
	summary.Sources = len(sources)

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		srcErr := t.processSource(ctx, settings, source, &summary)

		errMsg := ""
		if srcErr != nil {
			summary.Errors++
			errMsg = srcErr.Error()
			slog.Error("Failed to process RSS source", "source", source.Name, "error", srcErr)
		}
		if err := t.p.Repo.MarkFetched(context.WithoutCancel(ctx), source.ID, t.now(), errMsg); err != nil {
			slog.Error("Failed to update RSS source status", "source", source.Name, "error", err)
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"sources", summary.Sources,
		"fetched", summary.Fetched,
		"skipped", summary.Skipped,
		"filtered", summary.Filtered,
		"published", summary.Published,
		"failed", summary.Failed,
		"errors", summary.Errors)

	return nil
}

func (t *RSSPassTask) processSource(ctx context.Context, settings *database.RSSSettings, source database.RSSSource, summary *RSSPassSummary) error {
	timeout := time.Duration(cmp.Or(source.Timeout, 30)) * time.Second

	data, _, err := fetchURL(ctx, t.p.HTTPClient, source.URL, t.p.UserAgent, timeout)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	_, items, err := t.p.Parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}
	summary.Fetched += len(items)

	var fresh []feed.Item
	for _, item := range items {
		exists, err := t.p.Repo.ItemExists(ctx, source.ID, item.GUID, item.ContentHash)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if exists {
			summary.Skipped++
			continue
		}
		fresh = append(fresh, item)
	}

	if settings.MaxItemsPerSource > 0 && len(fresh) > settings.MaxItemsPerSource {
		summary.Skipped += len(fresh) - settings.MaxItemsPerSource
		fresh = fresh[:settings.MaxItemsPerSource]
	}

	for _, item := range t.p.Filterer.Run(fresh, source.Filters) {
		if err := ctx.Err(); err != nil {
			return err
		}

		record := &database.RSSItem{
			SourceID:    source.ID,
			GUID:        item.GUID,
			ContentHash: item.ContentHash,
			Title:       item.Title,
			Link:        item.Link,
		}

		if item.IsFiltered {
			record.Status = database.RSSItemFiltered
			record.Reason = item.FilterReason
			summary.Filtered++
		} else if err := t.publishItem(ctx, settings, source, item, record); err != nil {
			record.Status = database.RSSItemFailed
			record.Reason = err.Error()
			summary.Failed++
			slog.Error("Failed to publish RSS item", "source", source.Name, "link", item.Link, "error", err)
		} else {
			record.Status = database.RSSItemPublished
			summary.Published++
		}

		if err := t.p.Repo.RecordItem(context.WithoutCancel(ctx), record); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				continue
			}
			return fmt.Errorf("failed to record item: %w", err)
		}
	}

	return nil
}

func (t *RSSPassTask) publishItem(ctx context.Context, settings *database.RSSSettings, source database.RSSSource, item feed.Item, record *database.RSSItem) error {
	article := rewrite.Article{
		Title:   item.Title,
		Summary: content.Excerpt(content.PlainText(item.Description), 300),
		Content: cmp.Or(item.Content, item.Description),
	}

	if source.ExtractContent && item.Link != "" {
		timeout := time.Duration(cmp.Or(source.Timeout, 30)) * time.Second
		if extracted, err := t.extract(ctx, item.Link, timeout); err != nil {
			slog.Warn("Failed to extract article content, using feed content", "link", item.Link, "error", err)
		} else {
			article.Content = extracted
		}
	}

	if strings.TrimSpace(article.Content) == "" {
		article.Content = article.Summary
	}

	if settings.RewriteEnabled {
		rewritten, err := t.p.Rewriter.Rewrite(ctx, article)
		if err != nil {
			return fmt.Errorf("failed to rewrite article: %w", err)
		}
		article = rewritten
	}

	post := publish.Post{
		Title:     article.Title,
		Summary:   article.Summary,
		Content:   article.Content,
		ImageURL:  item.ImageURL,
		SourceURL: item.Link,
	}

	var errs []error
	published := false

	if settings.PublishWebsite {
		blog, err := t.p.Website.Publish(ctx, post, source.CategoryID)
		if err != nil {
			errs = append(errs, fmt.Errorf("website: %w", err))
		} else {
			record.BlogID = &blog.ID
			// Telegram links to our copy of the story
			post.SourceURL = content.CanonicalURL(t.p.SiteURL, blog.Slug)
			published = true
			metrics.RSSItemsPublished.WithLabelValues("website").Inc()
		}
	}

	if settings.PublishTelegram && t.p.Telegram != nil {
		messageID, err := t.p.Telegram.Publish(ctx, post)
		if err != nil {
			errs = append(errs, fmt.Errorf("telegram: %w", err))
		} else {
			record.TelegramMessageID = &messageID
			published = true
			metrics.RSSItemsPublished.WithLabelValues("telegram").Inc()
		}
	}

	if !published {
		return errors.Join(errs...)
	}
	if len(errs) > 0 {
		record.Reason = errors.Join(errs...).Error()
	}
	return nil
}

func (t *RSSPassTask) extract(ctx context.Context, link string, timeout time.Duration) (string, error) {
	data, contentType, err := fetchURL(ctx, t.p.HTTPClient, link, t.p.UserAgent, timeout)
	if err != nil {
		return "", err
	}
	if !strings.Contains(contentType, "text/html") {
		return "", fmt.Errorf("content type is not HTML: %s", contentType)
	}
	return t.p.Extractor.Run(data, link)
}
