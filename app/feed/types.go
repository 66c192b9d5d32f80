package feed

import (
	"time"

	"github.com/lysyi3m/khabar/app/database"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
}

type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	ImageURL    string
	PublishedAt time.Time
	Authors     []string
	Categories  []string

	ContentHash  string
	IsFiltered   bool
	FilterReason string
}

// Source definition files

type SourceDefinition struct {
	Name     string               // Derived from filename (without .yml extension)
	URL      string               `yaml:"url"`
	Category string               `yaml:"category"` // category slug
	Settings SourceSettings       `yaml:"settings"`
	Filters  []database.RSSFilter `yaml:"filters"`
}

type SourceSettings struct {
	Enabled        bool `yaml:"enabled"`
	Timeout        int  `yaml:"timeout"` // seconds
	ExtractContent bool `yaml:"extract_content"`
}

// SiteInfo describes the channel of the generated feed.
type SiteInfo struct {
	Title       string
	Link        string
	Description string
	Language    string
	Version     string
}
