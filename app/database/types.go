package database

import (
	"database/sql"
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleUser   = "user"

	BlogStatusDraft     = "draft"
	BlogStatusPublished = "published"

	RSSItemPublished = "published"
	RSSItemFiltered  = "filtered"
	RSSItemFailed    = "failed"
)

type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type LoginAttempt struct {
	ID           int64
	Identifier   string
	IPAddress    string
	Success      bool
	Blocked      bool
	BlockedUntil *time.Time
	CreatedAt    time.Time
}

type OTPCode struct {
	ID        int64
	Phone     string
	Purpose   string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	ParentID    *int64    `json:"parent_id"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Blog struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	ShortCode    string     `json:"short_code"`
	Summary      string     `json:"summary"`
	Content      string     `json:"content"`
	CoverImage   string     `json:"cover_image"`
	CategoryID   *int64     `json:"category_id"`
	AuthorID     *int64     `json:"author_id"`
	Status       string     `json:"status"`
	SourceURL    string     `json:"source_url,omitempty"`
	ViewCount    int64      `json:"view_count"`
	PublishedAt  *time.Time `json:"published_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CategoryName string     `json:"category_name,omitempty"`
	CategorySlug string     `json:"category_slug,omitempty"`
}

type BlogFilter struct {
	Status     string
	CategoryID *int64
	Search     string
	Limit      int
	Offset     int
}

type Menu struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Location  string    `json:"location"`
	ParentID  *int64    `json:"parent_id"`
	SortOrder int       `json:"sort_order"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Ad struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	ImageURL    string     `json:"image_url"`
	LinkURL     string     `json:"link_url"`
	Position    string     `json:"position"`
	Active      bool       `json:"active"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Impressions int64      `json:"impressions"`
	Clicks      int64      `json:"clicks"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	IsPublic  bool      `json:"is_public"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Media struct {
	ID           int64     `json:"id"`
	FileName     string    `json:"file_name"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	UploadedBy   *int64    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

type RSSSettings struct {
	Active            bool       `json:"active"`
	IntervalMinutes   int        `json:"interval_minutes"`
	LastCheckAt       *time.Time `json:"last_check_at"`
	RewriteEnabled    bool       `json:"rewrite_enabled"`
	PublishWebsite    bool       `json:"publish_website"`
	PublishTelegram   bool       `json:"publish_telegram"`
	MaxItemsPerSource int        `json:"max_items_per_source"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Interval returns the configured polling interval.
func (s RSSSettings) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// IsDue reports whether enough time has elapsed since the last check.
func (s RSSSettings) IsDue(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.LastCheckAt == nil {
		return true
	}
	return !now.Before(s.LastCheckAt.Add(s.Interval()))
}

type RSSFilter struct {
	Field    string   `json:"field" yaml:"field"`
	Includes []string `json:"includes" yaml:"includes"`
	Excludes []string `json:"excludes" yaml:"excludes"`
}

type RSSSource struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	URL            string      `json:"url"`
	CategoryID     *int64      `json:"category_id"`
	Active         bool        `json:"active"`
	ExtractContent bool        `json:"extract_content"`
	Timeout        int         `json:"timeout"`
	Filters        []RSSFilter `json:"filters"`
	LastFetchedAt  *time.Time  `json:"last_fetched_at"`
	LastError      string      `json:"last_error"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type RSSItem struct {
	ID                int64     `json:"id"`
	SourceID          int64     `json:"source_id"`
	GUID              string    `json:"guid"`
	ContentHash       string    `json:"content_hash"`
	Title             string    `json:"title"`
	Link              string    `json:"link"`
	Status            string    `json:"status"`
	Reason            string    `json:"reason"`
	BlogID            *int64    `json:"blog_id"`
	TelegramMessageID *int64    `json:"telegram_message_id"`
	CreatedAt         time.Time `json:"created_at"`
}

type CarSource struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	RowSelector   string     `json:"row_selector"`
	NameSelector  string     `json:"name_selector"`
	ModelSelector string     `json:"model_selector"`
	PriceSelector string     `json:"price_selector"`
	Active        bool       `json:"active"`
	LastScrapedAt *time.Time `json:"last_scraped_at"`
	LastError     string     `json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type CarPrice struct {
	ID        int64     `json:"id"`
	SourceID  int64     `json:"source_id"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Price     int64     `json:"price"`
	PriceText string    `json:"price_text"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Timestamps are stored as unix seconds.

func toUnix(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromUnix(n int64) time.Time {
	return time.Unix(n, 0).UTC()
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
