package database

import (
	"context"
	"time"
)

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	UpdateRole(ctx context.Context, id int64, role string) error
	MarkPhoneVerified(ctx context.Context, id int64) error
	CountByRole(ctx context.Context, role string) (int, error)
}

type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt *LoginAttempt) error
	ActiveBlock(ctx context.Context, identifier string, now time.Time) (*time.Time, error)
	LastResetID(ctx context.Context, identifier string) (int64, error)
	CountFailures(ctx context.Context, identifier string, since time.Time, afterID int64) (int, error)
	Block(ctx context.Context, id int64, until time.Time) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type OTPRepository interface {
	Create(ctx context.Context, code *OTPCode) error
	Latest(ctx context.Context, phone, purpose string) (*OTPCode, error)
	IncrementAttempts(ctx context.Context, id int64) error
	MarkUsed(ctx context.Context, id int64, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type BlogRepository interface {
	Create(ctx context.Context, blog *Blog) error
	Update(ctx context.Context, blog *Blog) error
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*Blog, error)
	GetBySlug(ctx context.Context, slug string) (*Blog, error)
	GetByShortCode(ctx context.Context, code string) (*Blog, error)
	List(ctx context.Context, filter BlogFilter) ([]Blog, int, error)
	IncrementViews(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, category *Category) error
	Update(ctx context.Context, category *Category) error
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*Category, error)
	GetBySlug(ctx context.Context, slug string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
}

type MenuRepository interface {
	Create(ctx context.Context, menu *Menu) error
	Update(ctx context.Context, menu *Menu) error
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*Menu, error)
	List(ctx context.Context, location string, activeOnly bool) ([]Menu, error)
}

type AdRepository interface {
	Create(ctx context.Context, ad *Ad) error
	Update(ctx context.Context, ad *Ad) error
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*Ad, error)
	List(ctx context.Context) ([]Ad, error)
	ListActive(ctx context.Context, position string, now time.Time) ([]Ad, error)
	RecordImpressions(ctx context.Context, ids []int64) error
	RecordClick(ctx context.Context, id int64) error
}

type SettingRepository interface {
	All(ctx context.Context) ([]Setting, error)
	Public(ctx context.Context) ([]Setting, error)
	Get(ctx context.Context, key string) (*Setting, error)
	Upsert(ctx context.Context, settings []Setting) error
	Delete(ctx context.Context, key string) (bool, error)
}

type MediaRepository interface {
	Create(ctx context.Context, media *Media) error
	GetByID(ctx context.Context, id int64) (*Media, error)
	List(ctx context.Context, limit, offset int) ([]Media, int, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type RSSRepository interface {
	GetSettings(ctx context.Context) (*RSSSettings, error)
	UpdateSettings(ctx context.Context, s *RSSSettings) error
	MarkChecked(ctx context.Context, at time.Time) error

	CreateSource(ctx context.Context, src *RSSSource) error
	UpdateSource(ctx context.Context, src *RSSSource) error
	UpsertSourceByName(ctx context.Context, src *RSSSource) error
	DeleteSource(ctx context.Context, id int64) (bool, error)
	GetSource(ctx context.Context, id int64) (*RSSSource, error)
	ListSources(ctx context.Context) ([]RSSSource, error)
	ActiveSources(ctx context.Context) ([]RSSSource, error)
	MarkFetched(ctx context.Context, id int64, at time.Time, errMsg string) error

	ItemExists(ctx context.Context, sourceID int64, guid, contentHash string) (bool, error)
	RecordItem(ctx context.Context, item *RSSItem) error
	ListItems(ctx context.Context, sourceID int64, limit, offset int) ([]RSSItem, int, error)
	DeleteItemsOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type CarRepository interface {
	CreateSource(ctx context.Context, src *CarSource) error
	UpdateSource(ctx context.Context, src *CarSource) error
	DeleteSource(ctx context.Context, id int64) (bool, error)
	GetSource(ctx context.Context, id int64) (*CarSource, error)
	ListSources(ctx context.Context) ([]CarSource, error)
	ActiveSources(ctx context.Context) ([]CarSource, error)
	MarkScraped(ctx context.Context, id int64, at time.Time, errMsg string) error
	ReplacePrices(ctx context.Context, sourceID int64, prices []CarPrice) error
	ListPrices(ctx context.Context, sourceID int64) ([]CarPrice, error)
}

var (
	_ UserRepository         = (*UserRepo)(nil)
	_ LoginAttemptRepository = (*LoginAttemptRepo)(nil)
	_ OTPRepository          = (*OTPRepo)(nil)
	_ BlogRepository         = (*BlogRepo)(nil)
	_ CategoryRepository     = (*CategoryRepo)(nil)
	_ MenuRepository         = (*MenuRepo)(nil)
	_ AdRepository           = (*AdRepo)(nil)
	_ SettingRepository      = (*SettingRepo)(nil)
	_ MediaRepository        = (*MediaRepo)(nil)
	_ RSSRepository          = (*RSSRepo)(nil)
	_ CarRepository          = (*CarRepo)(nil)
)
