package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
)

type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Run extracts the readable article HTML from a page. pageURL resolves
// relative links and may be empty.
func (e *ContentExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	var base *url.URL
	if pageURL != "" {
		parsed, err := url.Parse(pageURL)
		if err != nil {
			return "", fmt.Errorf("invalid page URL: %w", err)
		}
		base = parsed
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	var text strings.Builder
	if err := article.RenderText(&text); err != nil {
		return "", fmt.Errorf("failed to render article text: %w", err)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	var html strings.Builder
	if err := article.RenderHTML(&html); err != nil {
		return "", fmt.Errorf("failed to render article: %w", err)
	}

	extracted := strings.TrimSpace(html.String())
	if extracted == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"url", pageURL,
		"content_length", len(extracted))

	return extracted, nil
}
