package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SettingRepo struct {
	db *DB
}

func NewSettingRepository(db *DB) *SettingRepo {
	return &SettingRepo{db: db}
}

func (r *SettingRepo) All(ctx context.Context) ([]Setting, error) {
	return r.query(ctx, `SELECT key, value, is_public, updated_at FROM settings ORDER BY key`)
}

func (r *SettingRepo) Public(ctx context.Context) ([]Setting, error) {
	return r.query(ctx, `SELECT key, value, is_public, updated_at FROM settings WHERE is_public = 1 ORDER BY key`)
}

func (r *SettingRepo) Get(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	var updatedAt int64
	err := r.db.QueryRowContext(ctx, `SELECT key, value, is_public, updated_at FROM settings WHERE key = ?`, key).
		Scan(&s.Key, &s.Value, &s.IsPublic, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	s.UpdatedAt = fromUnix(updatedAt)
	return &s, nil
}

// Upsert writes all settings in one transaction.
func (r *SettingRepo) Upsert(ctx context.Context, settings []Setting) error {
	now := toUnix(time.Now())
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO settings (key, value, is_public, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET
				value = excluded.value,
				is_public = excluded.is_public,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare settings upsert: %w", err)
		}
		defer stmt.Close()

		for _, s := range settings {
			if _, err := stmt.ExecContext(ctx, s.Key, s.Value, s.IsPublic, now); err != nil {
				return fmt.Errorf("failed to upsert setting %s: %w", s.Key, err)
			}
		}
		return nil
	})
}

func (r *SettingRepo) Delete(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete setting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *SettingRepo) query(ctx context.Context, query string) ([]Setting, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := []Setting{}
	for rows.Next() {
		var s Setting
		var updatedAt int64
		if err := rows.Scan(&s.Key, &s.Value, &s.IsPublic, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		s.UpdatedAt = fromUnix(updatedAt)
		settings = append(settings, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating setting rows: %w", err)
	}

	return settings, nil
}
