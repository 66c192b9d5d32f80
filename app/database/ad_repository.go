package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type AdRepo struct {
	db *DB
}

func NewAdRepository(db *DB) *AdRepo {
	return &AdRepo{db: db}
}

const adColumns = `id, title, image_url, link_url, position, active, starts_at, ends_at, impressions, clicks, created_at, updated_at`

func scanAd(s scanner) (*Ad, error) {
	var a Ad
	var startsAt, endsAt sql.NullInt64
	var createdAt, updatedAt int64
	err := s.Scan(&a.ID, &a.Title, &a.ImageURL, &a.LinkURL, &a.Position, &a.Active, &startsAt, &endsAt,
		&a.Impressions, &a.Clicks, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.StartsAt = fromNullUnix(startsAt)
	a.EndsAt = fromNullUnix(endsAt)
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updatedAt)
	return &a, nil
}

func (r *AdRepo) Create(ctx context.Context, ad *Ad) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ads (title, image_url, link_url, position, active, starts_at, ends_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ad.Title, ad.ImageURL, ad.LinkURL, ad.Position, ad.Active, nullUnix(ad.StartsAt), nullUnix(ad.EndsAt),
		toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create ad: %w", mapError(err))
	}

	ad.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get ad id: %w", err)
	}
	ad.CreatedAt = now
	ad.UpdatedAt = now

	return nil
}

func (r *AdRepo) Update(ctx context.Context, ad *Ad) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		UPDATE ads
		SET title = ?, image_url = ?, link_url = ?, position = ?, active = ?, starts_at = ?, ends_at = ?, updated_at = ?
		WHERE id = ?
	`, ad.Title, ad.ImageURL, ad.LinkURL, ad.Position, ad.Active, nullUnix(ad.StartsAt), nullUnix(ad.EndsAt),
		toUnix(now), ad.ID)
	if err != nil {
		return fmt.Errorf("failed to update ad: %w", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	ad.UpdatedAt = now

	return nil
}

func (r *AdRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ads WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ad: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *AdRepo) GetByID(ctx context.Context, id int64) (*Ad, error) {
	ad, err := scanAd(r.db.QueryRowContext(ctx, `SELECT `+adColumns+` FROM ads WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad: %w", err)
	}
	return ad, nil
}

func (r *AdRepo) List(ctx context.Context) ([]Ad, error) {
	return r.query(ctx, `SELECT `+adColumns+` FROM ads ORDER BY id DESC`)
}

// ListActive returns active ads whose schedule window contains now.
// An empty position returns every position.
func (r *AdRepo) ListActive(ctx context.Context, position string, now time.Time) ([]Ad, error) {
	ts := toUnix(now)
	return r.query(ctx, `
		SELECT `+adColumns+` FROM ads
		WHERE active = 1
		  AND (? = '' OR position = ?)
		  AND (starts_at IS NULL OR starts_at <= ?)
		  AND (ends_at IS NULL OR ends_at > ?)
		ORDER BY id DESC
	`, position, position, ts, ts)
}

func (r *AdRepo) RecordImpressions(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := r.db.ExecContext(ctx, `UPDATE ads SET impressions = impressions + 1 WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to record ad impressions: %w", err)
	}
	return nil
}

func (r *AdRepo) RecordClick(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE ads SET clicks = clicks + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to record ad click: %w", err)
	}
	return nil
}

func (r *AdRepo) query(ctx context.Context, query string, args ...any) ([]Ad, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ads: %w", err)
	}
	defer rows.Close()

	ads := []Ad{}
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad row: %w", err)
		}
		ads = append(ads, *ad)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ad rows: %w", err)
	}

	return ads, nil
}
