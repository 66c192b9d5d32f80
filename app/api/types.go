package api

import (
	"context"
	"time"

	"github.com/lysyi3m/khabar/app/auth"
	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
	"github.com/lysyi3m/khabar/app/sse"
	"github.com/lysyi3m/khabar/app/tasks"
)

type GeneratorInterface interface {
	Run(site feed.SiteInfo, blogs []database.Blog) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type BlogService interface {
	Create(ctx context.Context, in content.BlogInput, authorID *int64) (*database.Blog, error)
	Update(ctx context.Context, id int64, in content.BlogInput) (*database.Blog, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

var _ BlogService = (*content.Service)(nil)

type LoginGuard interface {
	Attempt(ctx context.Context, identifier, ip string, verify func(ctx context.Context) (bool, error)) (auth.Status, bool, error)
	Cleanup(ctx context.Context) (int64, error)
}

var _ LoginGuard = (*auth.Guard)(nil)

type OTPVerifier interface {
	Send(ctx context.Context, phone, purpose string) (time.Time, error)
	Verify(ctx context.Context, phone, purpose, code string) error
}

var _ OTPVerifier = (*auth.OTPService)(nil)

// TaskFactory builds the background tasks started from the API.
type TaskFactory interface {
	ScrapeCarPrices(source database.CarSource) tasks.TaskInterface
	Cleanup() tasks.TaskInterface
	SyncSources() tasks.TaskInterface
}

// Options configures the HTTP layer.
type Options struct {
	SiteURL           string
	SiteTitle         string
	Version           string
	UploadsDir        string
	MaxUploadSize     int64
	CronSecret        string
	CookieSecure      bool
	SlowJobThreshold  time.Duration
	// AllowLocalOrigins also accepts localhost and loopback origins.
	AllowLocalOrigins bool
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Users       database.UserRepository
	Blogs       database.BlogRepository
	Categories  database.CategoryRepository
	Menus       database.MenuRepository
	Ads         database.AdRepository
	Settings    database.SettingRepository
	Media       database.MediaRepository
	RSS         database.RSSRepository
	Cars        database.CarRepository
	BlogService BlogService
	Tokens      *auth.TokenIssuer
	Guard       LoginGuard
	OTP         OTPVerifier
	Registry    *sse.Registry
	Scheduler   tasks.TaskSchedulerInterface
	Tasks       TaskFactory
	Generator   GeneratorInterface
	HealthCheck func(ctx context.Context) error
}

type Handler struct {
	Deps
	opts  Options
	cache *cache
	now   func() time.Time
}

func NewHandler(deps Deps, opts Options) *Handler {
	if deps.Generator == nil {
		deps.Generator = feed.NewGenerator()
	}
	return &Handler{
		Deps:  deps,
		opts:  opts,
		cache: newCache(),
		now:   time.Now,
	}
}
