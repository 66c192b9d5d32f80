package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type MediaRepo struct {
	db *DB
}

func NewMediaRepository(db *DB) *MediaRepo {
	return &MediaRepo{db: db}
}

const mediaColumns = `id, file_name, original_name, mime_type, size, url, uploaded_by, created_at`

func scanMedia(s scanner) (*Media, error) {
	var m Media
	var uploadedBy sql.NullInt64
	var createdAt int64
	if err := s.Scan(&m.ID, &m.FileName, &m.OriginalName, &m.MimeType, &m.Size, &m.URL, &uploadedBy, &createdAt); err != nil {
		return nil, err
	}
	m.UploadedBy = fromNullInt64(uploadedBy)
	m.CreatedAt = fromUnix(createdAt)
	return &m, nil
}

func (r *MediaRepo) Create(ctx context.Context, media *Media) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO media (file_name, original_name, mime_type, size, url, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, media.FileName, media.OriginalName, media.MimeType, media.Size, media.URL,
		nullInt64(media.UploadedBy), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create media: %w", mapError(err))
	}

	media.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get media id: %w", err)
	}
	media.CreatedAt = now

	return nil
}

func (r *MediaRepo) GetByID(ctx context.Context, id int64) (*Media, error) {
	media, err := scanMedia(r.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return media, nil
}

func (r *MediaRepo) List(ctx context.Context, limit, offset int) ([]Media, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count media: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	items := []Media{}
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan media row: %w", err)
		}
		items = append(items, *media)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating media rows: %w", err)
	}

	return items, total, nil
}

func (r *MediaRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete media: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}
