package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/sse"
)

const (
	maxSlugAttempts      = 50
	maxShortCodeAttempts = 10
	summaryLength        = 200
)

var (
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidStatus = errors.New("invalid blog status")
)

// Notifier delivers real-time events to connected admin clients.
type Notifier interface {
	Notify(eventType string, data any) int
}

type BlogInput struct {
	Title      string
	Slug       string
	Summary    string
	Content    string
	CoverImage string
	CategoryID *int64
	Status     string
	SourceURL  string
}

// BlogEvent is the payload of blog notifications.
type BlogEvent struct {
	ID     int64  `json:"id"`
	Title  string `json:"title,omitempty"`
	Slug   string `json:"slug,omitempty"`
	Status string `json:"status,omitempty"`
}

type Service struct {
	blogs    database.BlogRepository
	notifier Notifier
	now      func() time.Time
}

func NewService(blogs database.BlogRepository, notifier Notifier) *Service {
	return &Service{
		blogs:    blogs,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, in BlogInput, authorID *int64) (*database.Blog, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	code, err := s.uniqueShortCode(ctx)
	if err != nil {
		return nil, err
	}

	base := Slugify(in.Slug)
	if base == "" {
		base = Slugify(in.Title)
	}
	if base == "" {
		base = code
	}

	slug, err := s.uniqueSlug(ctx, base, 0)
	if err != nil {
		return nil, err
	}

	blog := &database.Blog{
		Title:      in.Title,
		Slug:       slug,
		ShortCode:  code,
		Summary:    in.Summary,
		Content:    SanitizeHTML(in.Content),
		CoverImage: in.CoverImage,
		CategoryID: in.CategoryID,
		AuthorID:   authorID,
		Status:     in.Status,
		SourceURL:  in.SourceURL,
	}
	if blog.Summary == "" {
		blog.Summary = Excerpt(PlainText(blog.Content), summaryLength)
	}
	if blog.Status == database.BlogStatusPublished {
		now := s.now()
		blog.PublishedAt = &now
	}

	if err := s.blogs.Create(ctx, blog); err != nil {
		return nil, err
	}

	slog.Info("Blog created", "id", blog.ID, "slug", blog.Slug, "status", blog.Status)
	s.notify(sse.EventNewBlog, blog)

	return blog, nil
}

// Update replaces the editable fields of a blog. An empty slug keeps the
// current one. The first transition to published stamps published_at.
func (s *Service) Update(ctx context.Context, id int64, in BlogInput) (*database.Blog, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	blog, err := s.blogs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if blog == nil {
		return nil, database.ErrNotFound
	}

	if base := Slugify(in.Slug); base != "" && base != blog.Slug {
		slug, err := s.uniqueSlug(ctx, base, blog.ID)
		if err != nil {
			return nil, err
		}
		blog.Slug = slug
	}

	blog.Title = in.Title
	blog.Summary = in.Summary
	blog.Content = SanitizeHTML(in.Content)
	blog.CoverImage = in.CoverImage
	blog.CategoryID = in.CategoryID
	blog.Status = in.Status
	blog.SourceURL = in.SourceURL
	if blog.Summary == "" {
		blog.Summary = Excerpt(PlainText(blog.Content), summaryLength)
	}
	if blog.Status == database.BlogStatusPublished && blog.PublishedAt == nil {
		now := s.now()
		blog.PublishedAt = &now
	}

	if err := s.blogs.Update(ctx, blog); err != nil {
		return nil, err
	}

	slog.Info("Blog updated", "id", blog.ID, "slug", blog.Slug, "status", blog.Status)
	s.notify(sse.EventBlogUpdated, blog)

	return blog, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.blogs.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	if deleted {
		slog.Info("Blog deleted", "id", id)
		s.notify(sse.EventBlogDeleted, &database.Blog{ID: id})
	}

	return deleted, nil
}

func (s *Service) notify(eventType string, blog *database.Blog) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(eventType, BlogEvent{ID: blog.ID, Title: blog.Title, Slug: blog.Slug, Status: blog.Status})
}

func (s *Service) uniqueSlug(ctx context.Context, base string, excludeID int64) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		exists, err := s.blogs.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return "", fmt.Errorf("failed to find a free slug for %q", base)
}

func (s *Service) uniqueShortCode(ctx context.Context) (string, error) {
	for i := 0; i < maxShortCodeAttempts; i++ {
		code, err := NewShortCode()
		if err != nil {
			return "", err
		}
		exists, err := s.blogs.ShortCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to find a free short code")
}

func validate(in *BlogInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return ErrTitleRequired
	}

	switch in.Status {
	case "":
		in.Status = database.BlogStatusDraft
	case database.BlogStatusDraft, database.BlogStatusPublished:
	default:
		return ErrInvalidStatus
	}

	return nil
}
