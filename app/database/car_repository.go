package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type CarRepo struct {
	db *DB
}

func NewCarRepository(db *DB) *CarRepo {
	return &CarRepo{db: db}
}

const carSourceColumns = `id, name, url, row_selector, name_selector, model_selector, price_selector,
	active, last_scraped_at, last_error, created_at, updated_at`

func scanCarSource(s scanner) (*CarSource, error) {
	var c CarSource
	var lastScrapedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := s.Scan(&c.ID, &c.Name, &c.URL, &c.RowSelector, &c.NameSelector, &c.ModelSelector, &c.PriceSelector,
		&c.Active, &lastScrapedAt, &c.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.LastScrapedAt = fromNullUnix(lastScrapedAt)
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return &c, nil
}

func (r *CarRepo) CreateSource(ctx context.Context, src *CarSource) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO car_sources (name, url, row_selector, name_selector, model_selector, price_selector, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, src.Name, src.URL, src.RowSelector, src.NameSelector, src.ModelSelector, src.PriceSelector, src.Active,
		toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create car source: %w", mapError(err))
	}

	src.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get car source id: %w", err)
	}
	src.CreatedAt = now
	src.UpdatedAt = now

	return nil
}

func (r *CarRepo) UpdateSource(ctx context.Context, src *CarSource) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		UPDATE car_sources
		SET name = ?, url = ?, row_selector = ?, name_selector = ?, model_selector = ?, price_selector = ?,
		    active = ?, updated_at = ?
		WHERE id = ?
	`, src.Name, src.URL, src.RowSelector, src.NameSelector, src.ModelSelector, src.PriceSelector, src.Active,
		toUnix(now), src.ID)
	if err != nil {
		return fmt.Errorf("failed to update car source: %w", mapError(err))
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

func (r *CarRepo) DeleteSource(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM car_sources WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete car source: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *CarRepo) GetSource(ctx context.Context, id int64) (*CarSource, error) {
	src, err := scanCarSource(r.db.QueryRowContext(ctx, `SELECT `+carSourceColumns+` FROM car_sources WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get car source: %w", err)
	}
	return src, nil
}

func (r *CarRepo) ListSources(ctx context.Context) ([]CarSource, error) {
	return r.querySources(ctx, `SELECT `+carSourceColumns+` FROM car_sources ORDER BY name`)
}

func (r *CarRepo) ActiveSources(ctx context.Context) ([]CarSource, error) {
	return r.querySources(ctx, `SELECT `+carSourceColumns+` FROM car_sources WHERE active = 1 ORDER BY id`)
}

func (r *CarRepo) MarkScraped(ctx context.Context, id int64, at time.Time, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE car_sources SET last_scraped_at = ?, last_error = ? WHERE id = ?`,
		toUnix(at), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark car source scraped: %w", err)
	}
	return nil
}

func (r *CarRepo) querySources(ctx context.Context, query string) ([]CarSource, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list car sources: %w", err)
	}
	defer rows.Close()

	sources := []CarSource{}
	for rows.Next() {
		src, err := scanCarSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car source row: %w", err)
		}
		sources = append(sources, *src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating car source rows: %w", err)
	}

	return sources, nil
}

// ReplacePrices swaps the price list of a source atomically. If any insert
// fails the previous prices stay in place.
func (r *CarRepo) ReplacePrices(ctx context.Context, sourceID int64, prices []CarPrice) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM car_prices WHERE source_id = ?`, sourceID); err != nil {
			return fmt.Errorf("failed to clear car prices: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO car_prices (source_id, name, model, price, price_text, scraped_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare car price insert: %w", err)
		}
		defer stmt.Close()

		for i := range prices {
			p := &prices[i]
			if p.ScrapedAt.IsZero() {
				p.ScrapedAt = time.Now()
			}
			p.ScrapedAt = fromUnix(toUnix(p.ScrapedAt))
			p.SourceID = sourceID

			res, err := stmt.ExecContext(ctx, sourceID, p.Name, p.Model, p.Price, p.PriceText, toUnix(p.ScrapedAt))
			if err != nil {
				return fmt.Errorf("failed to insert car price %q: %w", p.Name, mapError(err))
			}
			if p.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get car price id: %w", err)
			}
		}

		return nil
	})
}

// ListPrices returns prices ordered by name. sourceID 0 lists all sources.
func (r *CarRepo) ListPrices(ctx context.Context, sourceID int64) ([]CarPrice, error) {
	query := `SELECT id, source_id, name, model, price, price_text, scraped_at FROM car_prices`
	args := []any{}
	if sourceID > 0 {
		query += ` WHERE source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY name, model`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list car prices: %w", err)
	}
	defer rows.Close()

	prices := []CarPrice{}
	for rows.Next() {
		var p CarPrice
		var scrapedAt int64
		if err := rows.Scan(&p.ID, &p.SourceID, &p.Name, &p.Model, &p.Price, &p.PriceText, &scrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan car price row: %w", err)
		}
		p.ScrapedAt = fromUnix(scrapedAt)
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating car prices: %w", err)
	}

	return prices, nil
}
