package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func createTestBlog(t *testing.T, repo *BlogRepo, slug, code, status string) *Blog {
	t.Helper()

	blog := &Blog{
		Title:     "Title " + slug,
		Slug:      slug,
		ShortCode: code,
		Status:    status,
	}
	if status == BlogStatusPublished {
		now := time.Now()
		blog.PublishedAt = &now
	}
	if err := repo.Create(context.Background(), blog); err != nil {
		t.Fatalf("Failed to create blog: %v", err)
	}
	return blog
}

func TestBlogRepo_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	categories := NewCategoryRepository(db)
	repo := NewBlogRepository(db)

	category := &Category{Name: "اقتصاد", Slug: "اقتصاد"}
	if err := categories.Create(ctx, category); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}

	blog := &Blog{
		Title:      "خبر تازه",
		Slug:       "خبر-تازه",
		ShortCode:  "12345678",
		Content:    "<p>متن</p>",
		CategoryID: &category.ID,
		Status:     BlogStatusDraft,
	}
	if err := repo.Create(ctx, blog); err != nil {
		t.Fatalf("Failed to create blog: %v", err)
	}
	if blog.ID == 0 {
		t.Fatal("Expected blog ID to be set")
	}

	got, err := repo.GetBySlug(ctx, "خبر-تازه")
	if err != nil {
		t.Fatalf("Failed to get blog: %v", err)
	}
	if got == nil {
		t.Fatal("Expected blog, got nil")
	}
	if got.CategoryName != "اقتصاد" {
		t.Errorf("Expected category name to be joined, got %q", got.CategoryName)
	}
	if got.PublishedAt != nil {
		t.Errorf("Expected draft to have no published_at, got %v", got.PublishedAt)
	}

	byCode, err := repo.GetByShortCode(ctx, "12345678")
	if err != nil {
		t.Fatalf("Failed to get blog by short code: %v", err)
	}
	if byCode == nil || byCode.ID != blog.ID {
		t.Errorf("Expected blog %d by short code, got %+v", blog.ID, byCode)
	}

	missing, err := repo.GetBySlug(ctx, "missing")
	if err != nil {
		t.Fatalf("Expected no error for missing blog, got %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing blog, got %+v", missing)
	}
}

func TestBlogRepo_DuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	repo := NewBlogRepository(db)

	createTestBlog(t, repo, "same", "11111111", BlogStatusDraft)

	err := repo.Create(context.Background(), &Blog{Title: "x", Slug: "same", ShortCode: "22222222", Status: BlogStatusDraft})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

func TestBlogRepo_UpdateMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewBlogRepository(db)

	err := repo.Update(context.Background(), &Blog{ID: 99, Title: "x", Slug: "x", ShortCode: "33333333", Status: BlogStatusDraft})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBlogRepo_ListFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBlogRepository(db)

	createTestBlog(t, repo, "one", "10000001", BlogStatusPublished)
	createTestBlog(t, repo, "two", "10000002", BlogStatusPublished)
	createTestBlog(t, repo, "three", "10000003", BlogStatusDraft)

	blogs, total, err := repo.List(ctx, BlogFilter{Status: BlogStatusPublished})
	if err != nil {
		t.Fatalf("Failed to list blogs: %v", err)
	}
	if total != 2 {
		t.Errorf("Expected 2 published blogs, got %d", total)
	}
	if len(blogs) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(blogs))
	}

	blogs, total, err = repo.List(ctx, BlogFilter{Search: "three"})
	if err != nil {
		t.Fatalf("Failed to search blogs: %v", err)
	}
	if total != 1 || len(blogs) != 1 || blogs[0].Slug != "three" {
		t.Errorf("Expected search to find 'three', got total=%d blogs=%v", total, blogs)
	}

	blogs, total, err = repo.List(ctx, BlogFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to page blogs: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected total 3, got %d", total)
	}
	if len(blogs) != 1 {
		t.Errorf("Expected page of 1, got %d", len(blogs))
	}
}

func TestBlogRepo_ExistsAndViews(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBlogRepository(db)

	blog := createTestBlog(t, repo, "taken", "20000001", BlogStatusPublished)

	exists, err := repo.SlugExists(ctx, "taken", 0)
	if err != nil {
		t.Fatalf("Failed to check slug: %v", err)
	}
	if !exists {
		t.Error("Expected slug to exist")
	}

	exists, err = repo.SlugExists(ctx, "taken", blog.ID)
	if err != nil {
		t.Fatalf("Failed to check slug: %v", err)
	}
	if exists {
		t.Error("Expected slug to be free when excluding its own blog")
	}

	exists, err = repo.ShortCodeExists(ctx, "20000001")
	if err != nil {
		t.Fatalf("Failed to check short code: %v", err)
	}
	if !exists {
		t.Error("Expected short code to exist")
	}

	for i := 0; i < 3; i++ {
		if err := repo.IncrementViews(ctx, blog.ID); err != nil {
			t.Fatalf("Failed to increment views: %v", err)
		}
	}
	got, _ := repo.GetByID(ctx, blog.ID)
	if got.ViewCount != 3 {
		t.Errorf("Expected 3 views, got %d", got.ViewCount)
	}

	deleted, err := repo.Delete(ctx, blog.ID)
	if err != nil {
		t.Fatalf("Failed to delete blog: %v", err)
	}
	if !deleted {
		t.Error("Expected blog to be deleted")
	}
	deleted, _ = repo.Delete(ctx, blog.ID)
	if deleted {
		t.Error("Expected second delete to report false")
	}
}

func TestCategoryRepo_DeleteReferenced(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	categories := NewCategoryRepository(db)
	blogs := NewBlogRepository(db)

	category := &Category{Name: "ورزش", Slug: "ورزش"}
	if err := categories.Create(ctx, category); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}

	blog := &Blog{Title: "x", Slug: "x", ShortCode: "30000001", Status: BlogStatusDraft, CategoryID: &category.ID}
	if err := blogs.Create(ctx, blog); err != nil {
		t.Fatalf("Failed to create blog: %v", err)
	}

	_, err := categories.Delete(ctx, category.ID)
	if !errors.Is(err, ErrForeignKey) {
		t.Errorf("Expected ErrForeignKey, got %v", err)
	}

	if _, err := blogs.Delete(ctx, blog.ID); err != nil {
		t.Fatalf("Failed to delete blog: %v", err)
	}

	deleted, err := categories.Delete(ctx, category.ID)
	if err != nil {
		t.Fatalf("Expected delete to succeed once unreferenced, got %v", err)
	}
	if !deleted {
		t.Error("Expected category to be deleted")
	}
}
