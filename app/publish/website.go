package publish

import (
	"context"
	"fmt"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
)

type blogCreator interface {
	Create(ctx context.Context, in content.BlogInput, authorID *int64) (*database.Blog, error)
}

// Website publishes posts as blogs on the news site.
type Website struct {
	blogs blogCreator
}

func NewWebsite(blogs blogCreator) *Website {
	return &Website{blogs: blogs}
}

// Publish creates a published blog. The content service broadcasts new_blog.
func (w *Website) Publish(ctx context.Context, post Post, categoryID *int64) (*database.Blog, error) {
	blog, err := w.blogs.Create(ctx, content.BlogInput{
		Title:      post.Title,
		Summary:    post.Summary,
		Content:    post.Content,
		CoverImage: post.ImageURL,
		CategoryID: categoryID,
		Status:     database.BlogStatusPublished,
		SourceURL:  post.SourceURL,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blog: %w", err)
	}

	return blog, nil
}
