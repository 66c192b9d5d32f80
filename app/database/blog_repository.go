package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type BlogRepo struct {
	db *DB
}

func NewBlogRepository(db *DB) *BlogRepo {
	return &BlogRepo{db: db}
}

const blogColumns = `b.id, b.title, b.slug, b.short_code, b.summary, b.content, b.cover_image,
	b.category_id, b.author_id, b.status, b.source_url, b.view_count, b.published_at,
	b.created_at, b.updated_at, COALESCE(c.name, ''), COALESCE(c.slug, '')`

const blogFrom = ` FROM blogs b LEFT JOIN categories c ON c.id = b.category_id`

func scanBlog(s scanner) (*Blog, error) {
	var b Blog
	var categoryID, authorID, publishedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := s.Scan(&b.ID, &b.Title, &b.Slug, &b.ShortCode, &b.Summary, &b.Content, &b.CoverImage,
		&categoryID, &authorID, &b.Status, &b.SourceURL, &b.ViewCount, &publishedAt,
		&createdAt, &updatedAt, &b.CategoryName, &b.CategorySlug)
	if err != nil {
		return nil, err
	}
	b.CategoryID = fromNullInt64(categoryID)
	b.AuthorID = fromNullInt64(authorID)
	b.PublishedAt = fromNullUnix(publishedAt)
	b.CreatedAt = fromUnix(createdAt)
	b.UpdatedAt = fromUnix(updatedAt)
	return &b, nil
}

func (r *BlogRepo) Create(ctx context.Context, blog *Blog) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO blogs (title, slug, short_code, summary, content, cover_image, category_id,
		                   author_id, status, source_url, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, blog.Title, blog.Slug, blog.ShortCode, blog.Summary, blog.Content, blog.CoverImage,
		nullInt64(blog.CategoryID), nullInt64(blog.AuthorID), blog.Status, blog.SourceURL,
		nullUnix(blog.PublishedAt), toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create blog: %w", mapError(err))
	}

	blog.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get blog id: %w", err)
	}
	blog.CreatedAt = now
	blog.UpdatedAt = now

	return nil
}

func (r *BlogRepo) Update(ctx context.Context, blog *Blog) error {
	now := fromUnix(toUnix(time.Now()))
	res, err := r.db.ExecContext(ctx, `
		UPDATE blogs
		SET title = ?, slug = ?, summary = ?, content = ?, cover_image = ?, category_id = ?,
		    status = ?, source_url = ?, published_at = ?, updated_at = ?
		WHERE id = ?
	`, blog.Title, blog.Slug, blog.Summary, blog.Content, blog.CoverImage, nullInt64(blog.CategoryID),
		blog.Status, blog.SourceURL, nullUnix(blog.PublishedAt), toUnix(now), blog.ID)
	if err != nil {
		return fmt.Errorf("failed to update blog: %w", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	blog.UpdatedAt = now

	return nil
}

// Delete removes a blog and reports whether it existed.
func (r *BlogRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete blog: %w", mapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *BlogRepo) getOne(ctx context.Context, where string, args ...any) (*Blog, error) {
	blog, err := scanBlog(r.db.QueryRowContext(ctx, `SELECT `+blogColumns+blogFrom+` WHERE `+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blog: %w", err)
	}
	return blog, nil
}

func (r *BlogRepo) GetByID(ctx context.Context, id int64) (*Blog, error) {
	return r.getOne(ctx, "b.id = ?", id)
}

func (r *BlogRepo) GetBySlug(ctx context.Context, slug string) (*Blog, error) {
	return r.getOne(ctx, "b.slug = ?", slug)
}

func (r *BlogRepo) GetByShortCode(ctx context.Context, code string) (*Blog, error) {
	return r.getOne(ctx, "b.short_code = ?", code)
}

func (r *BlogRepo) List(ctx context.Context, filter BlogFilter) ([]Blog, int, error) {
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "b.status = ?")
		args = append(args, filter.Status)
	}
	if filter.CategoryID != nil {
		conditions = append(conditions, "b.category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(b.title LIKE ? OR b.summary LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+blogFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count blogs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + blogColumns + blogFrom + where +
		` ORDER BY COALESCE(b.published_at, b.created_at) DESC, b.id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list blogs: %w", err)
	}
	defer rows.Close()

	blogs := []Blog{}
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan blog row: %w", err)
		}
		blogs = append(blogs, *blog)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating blog rows: %w", err)
	}

	return blogs, total, nil
}

func (r *BlogRepo) IncrementViews(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE blogs SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment blog views: %w", err)
	}
	return nil
}

// SlugExists reports whether slug is taken by a blog other than excludeID.
func (r *BlogRepo) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM blogs WHERE slug = ? AND id != ?)`,
		slug, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check blog slug: %w", err)
	}
	return exists, nil
}

func (r *BlogRepo) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM blogs WHERE short_code = ?)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check blog short code: %w", err)
	}
	return exists, nil
}

func (r *BlogRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blogs WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count blogs: %w", err)
	}
	return count, nil
}
