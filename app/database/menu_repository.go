package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type MenuRepo struct {
	db *DB
}

func NewMenuRepository(db *DB) *MenuRepo {
	return &MenuRepo{db: db}
}

const menuColumns = `id, title, url, location, parent_id, sort_order, active, created_at, updated_at`

func scanMenu(s scanner) (*Menu, error) {
	var m Menu
	var parentID sql.NullInt64
	var createdAt, updatedAt int64
	if err := s.Scan(&m.ID, &m.Title, &m.URL, &m.Location, &parentID, &m.SortOrder, &m.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.ParentID = fromNullInt64(parentID)
	m.CreatedAt = fromUnix(createdAt)
	m.UpdatedAt = fromUnix(updatedAt)
	return &m, nil
}

func (r *MenuRepo) Create(ctx context.Context, menu *Menu) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO menus (title, url, location, parent_id, sort_order, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, menu.Title, menu.URL, menu.Location, nullInt64(menu.ParentID), menu.SortOrder, menu.Active,
		toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create menu: %w", mapError(err))
	}

	menu.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get menu id: %w", err)
	}
	menu.CreatedAt = now
	menu.UpdatedAt = now

	return nil
}

func (r *MenuRepo) Update(ctx context.Context, menu *Menu) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		UPDATE menus
		SET title = ?, url = ?, location = ?, parent_id = ?, sort_order = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, menu.Title, menu.URL, menu.Location, nullInt64(menu.ParentID), menu.SortOrder, menu.Active,
		toUnix(now), menu.ID)
	if err != nil {
		return fmt.Errorf("failed to update menu: %w", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	menu.UpdatedAt = now

	return nil
}

func (r *MenuRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM menus WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete menu: %w", mapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *MenuRepo) GetByID(ctx context.Context, id int64) (*Menu, error) {
	menu, err := scanMenu(r.db.QueryRowContext(ctx, `SELECT `+menuColumns+` FROM menus WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}
	return menu, nil
}

// List returns menus ordered for rendering. An empty location returns every location.
func (r *MenuRepo) List(ctx context.Context, location string, activeOnly bool) ([]Menu, error) {
	query := `SELECT ` + menuColumns + ` FROM menus WHERE (? = '' OR location = ?)`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY location, sort_order, id`

	rows, err := r.db.QueryContext(ctx, query, location, location)
	if err != nil {
		return nil, fmt.Errorf("failed to list menus: %w", err)
	}
	defer rows.Close()

	menus := []Menu{}
	for rows.Next() {
		menu, err := scanMenu(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu row: %w", err)
		}
		menus = append(menus, *menu)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menu rows: %w", err)
	}

	return menus, nil
}
