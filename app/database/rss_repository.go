package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type RSSRepo struct {
	db *DB
}

func NewRSSRepository(db *DB) *RSSRepo {
	return &RSSRepo{db: db}
}

func (r *RSSRepo) GetSettings(ctx context.Context) (*RSSSettings, error) {
	var s RSSSettings
	var lastCheckAt sql.NullInt64
	var updatedAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT active, interval_minutes, last_check_at, rewrite_enabled, publish_website,
		       publish_telegram, max_items_per_source, updated_at
		FROM rss_settings WHERE id = 1
	`).Scan(&s.Active, &s.IntervalMinutes, &lastCheckAt, &s.RewriteEnabled, &s.PublishWebsite,
		&s.PublishTelegram, &s.MaxItemsPerSource, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get rss settings: %w", err)
	}
	s.LastCheckAt = fromNullUnix(lastCheckAt)
	s.UpdatedAt = fromUnix(updatedAt)
	return &s, nil
}

// UpdateSettings stores everything except last_check_at, which only MarkChecked writes.
func (r *RSSRepo) UpdateSettings(ctx context.Context, s *RSSSettings) error {
	now := fromUnix(toUnix(time.Now()))
	_, err := r.db.ExecContext(ctx, `
		UPDATE rss_settings
		SET active = ?, interval_minutes = ?, rewrite_enabled = ?, publish_website = ?,
		    publish_telegram = ?, max_items_per_source = ?, updated_at = ?
		WHERE id = 1
	`, s.Active, s.IntervalMinutes, s.RewriteEnabled, s.PublishWebsite, s.PublishTelegram,
		s.MaxItemsPerSource, toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to update rss settings: %w", err)
	}
	s.UpdatedAt = now
	return nil
}

func (r *RSSRepo) MarkChecked(ctx context.Context, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rss_settings SET last_check_at = ? WHERE id = 1`, toUnix(at))
	if err != nil {
		return fmt.Errorf("failed to mark rss check: %w", err)
	}
	return nil
}

const rssSourceColumns = `id, name, url, category_id, active, extract_content, timeout, filters,
	last_fetched_at, last_error, created_at, updated_at`

func scanRSSSource(s scanner) (*RSSSource, error) {
	var src RSSSource
	var categoryID, lastFetchedAt sql.NullInt64
	var filters string
	var createdAt, updatedAt int64
	err := s.Scan(&src.ID, &src.Name, &src.URL, &categoryID, &src.Active, &src.ExtractContent,
		&src.Timeout, &filters, &lastFetchedAt, &src.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filters), &src.Filters); err != nil {
		return nil, fmt.Errorf("failed to decode filters for source %s: %w", src.Name, err)
	}
	src.CategoryID = fromNullInt64(categoryID)
	src.LastFetchedAt = fromNullUnix(lastFetchedAt)
	src.CreatedAt = fromUnix(createdAt)
	src.UpdatedAt = fromUnix(updatedAt)
	return &src, nil
}

func encodeFilters(filters []RSSFilter) (string, error) {
	if filters == nil {
		filters = []RSSFilter{}
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("failed to encode filters: %w", err)
	}
	return string(data), nil
}

func (r *RSSRepo) CreateSource(ctx context.Context, src *RSSSource) error {
	filters, err := encodeFilters(src.Filters)
	if err != nil {
		return err
	}

	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO rss_sources (name, url, category_id, active, extract_content, timeout, filters, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, src.Name, src.URL, nullInt64(src.CategoryID), src.Active, src.ExtractContent, src.Timeout,
		filters, toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create rss source: %w", mapError(err))
	}

	src.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rss source id: %w", err)
	}
	src.CreatedAt = now
	src.UpdatedAt = now

	return nil
}

func (r *RSSRepo) UpdateSource(ctx context.Context, src *RSSSource) error {
	filters, err := encodeFilters(src.Filters)
	if err != nil {
		return err
	}

	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		UPDATE rss_sources
		SET name = ?, url = ?, category_id = ?, active = ?, extract_content = ?, timeout = ?, filters = ?, updated_at = ?
		WHERE id = ?
	`, src.Name, src.URL, nullInt64(src.CategoryID), src.Active, src.ExtractContent, src.Timeout,
		filters, toUnix(now), src.ID)
	if err != nil {
		return fmt.Errorf("failed to update rss source: %w", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	src.UpdatedAt = now

	return nil
}

// UpsertSourceByName creates the source or updates the existing row with the
// same name. Fetch state is left untouched.
func (r *RSSRepo) UpsertSourceByName(ctx context.Context, src *RSSSource) error {
	filters, err := encodeFilters(src.Filters)
	if err != nil {
		return err
	}

	now := toUnix(time.Now())
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO rss_sources (name, url, category_id, active, extract_content, timeout, filters, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			category_id = excluded.category_id,
			active = excluded.active,
			extract_content = excluded.extract_content,
			timeout = excluded.timeout,
			filters = excluded.filters,
			updated_at = excluded.updated_at
		RETURNING id
	`, src.Name, src.URL, nullInt64(src.CategoryID), src.Active, src.ExtractContent, src.Timeout,
		filters, now, now).Scan(&src.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert rss source: %w", mapError(err))
	}

	return nil
}

func (r *RSSRepo) DeleteSource(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rss_sources WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete rss source: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *RSSRepo) GetSource(ctx context.Context, id int64) (*RSSSource, error) {
	src, err := scanRSSSource(r.db.QueryRowContext(ctx, `SELECT `+rssSourceColumns+` FROM rss_sources WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rss source: %w", err)
	}
	return src, nil
}

func (r *RSSRepo) ListSources(ctx context.Context) ([]RSSSource, error) {
	return r.querySources(ctx, `SELECT `+rssSourceColumns+` FROM rss_sources ORDER BY name`)
}

func (r *RSSRepo) ActiveSources(ctx context.Context) ([]RSSSource, error) {
	return r.querySources(ctx, `SELECT `+rssSourceColumns+` FROM rss_sources WHERE active = 1 ORDER BY id`)
}

// MarkFetched records the outcome of a source fetch. An empty errMsg clears
// the previous error.
func (r *RSSRepo) MarkFetched(ctx context.Context, id int64, at time.Time, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rss_sources SET last_fetched_at = ?, last_error = ? WHERE id = ?`,
		toUnix(at), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark rss source fetched: %w", err)
	}
	return nil
}

func (r *RSSRepo) querySources(ctx context.Context, query string) ([]RSSSource, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rss sources: %w", err)
	}
	defer rows.Close()

	sources := []RSSSource{}
	for rows.Next() {
		src, err := scanRSSSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rss source row: %w", err)
		}
		sources = append(sources, *src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rss source rows: %w", err)
	}

	return sources, nil
}

// ItemExists reports whether an item with the same guid from the source, or
// the same content hash from any source, was already processed.
func (r *RSSRepo) ItemExists(ctx context.Context, sourceID int64, guid, contentHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rss_items
			WHERE (source_id = ? AND guid = ?) OR content_hash = ?
		)
	`, sourceID, guid, contentHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rss item: %w", err)
	}
	return exists, nil
}

func (r *RSSRepo) RecordItem(ctx context.Context, item *RSSItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.CreatedAt = fromUnix(toUnix(item.CreatedAt))

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO rss_items (source_id, guid, content_hash, title, link, status, reason, blog_id, telegram_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.SourceID, item.GUID, item.ContentHash, item.Title, item.Link, item.Status, item.Reason,
		nullInt64(item.BlogID), nullInt64(item.TelegramMessageID), toUnix(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record rss item: %w", mapError(err))
	}

	item.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rss item id: %w", err)
	}

	return nil
}

// ListItems returns processed items newest first. sourceID 0 lists all sources.
func (r *RSSRepo) ListItems(ctx context.Context, sourceID int64, limit, offset int) ([]RSSItem, int, error) {
	where := ""
	args := []any{}
	if sourceID > 0 {
		where = " WHERE source_id = ?"
		args = append(args, sourceID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rss_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rss items: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, guid, content_hash, title, link, status, reason, blog_id, telegram_message_id, created_at
		FROM rss_items`+where+`
		ORDER BY id DESC LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rss items: %w", err)
	}
	defer rows.Close()

	items := []RSSItem{}
	for rows.Next() {
		var item RSSItem
		var blogID, messageID sql.NullInt64
		var createdAt int64
		err := rows.Scan(&item.ID, &item.SourceID, &item.GUID, &item.ContentHash, &item.Title, &item.Link,
			&item.Status, &item.Reason, &blogID, &messageID, &createdAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan rss item row: %w", err)
		}
		item.BlogID = fromNullInt64(blogID)
		item.TelegramMessageID = fromNullInt64(messageID)
		item.CreatedAt = fromUnix(createdAt)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rss item rows: %w", err)
	}

	return items, total, nil
}

func (r *RSSRepo) DeleteItemsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rss_items WHERE created_at < ?`, toUnix(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old rss items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}
