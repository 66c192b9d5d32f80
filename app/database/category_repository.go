package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type CategoryRepo struct {
	db *DB
}

func NewCategoryRepository(db *DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

const categoryColumns = `id, name, slug, description, parent_id, sort_order, created_at, updated_at`

func scanCategory(s scanner) (*Category, error) {
	var c Category
	var parentID sql.NullInt64
	var createdAt, updatedAt int64
	if err := s.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &parentID, &c.SortOrder, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.ParentID = fromNullInt64(parentID)
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return &c, nil
}

func (r *CategoryRepo) Create(ctx context.Context, category *Category) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (name, slug, description, parent_id, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, category.Name, category.Slug, category.Description, nullInt64(category.ParentID),
		category.SortOrder, toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create category: %w", mapError(err))
	}

	category.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get category id: %w", err)
	}
	category.CreatedAt = now
	category.UpdatedAt = now

	return nil
}

func (r *CategoryRepo) Update(ctx context.Context, category *Category) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, slug = ?, description = ?, parent_id = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`, category.Name, category.Slug, category.Description, nullInt64(category.ParentID),
		category.SortOrder, toUnix(now), category.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	category.UpdatedAt = now

	return nil
}

// Delete fails with ErrForeignKey while blogs or child categories reference the category.
func (r *CategoryRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete category: %w", mapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id int64) (*Category, error) {
	category, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

func (r *CategoryRepo) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	category, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE slug = ?`, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category by slug: %w", err)
	}
	return category, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, *category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}
