package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/metrics"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(h *Handler) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(accessLog())
	r.Use(metricsMiddleware())
	r.Use(cors(h.opts.SiteURL, h.opts.AllowLocalOrigins))

	setupRoutes(r, h)

	return r
}

func setupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/health", h.GetHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/feed.xml", h.GetFeed)
	r.GET("/n/:code", h.RedirectShortLink)
	if h.opts.UploadsDir != "" {
		r.Static("/uploads", h.opts.UploadsDir)
	}
	r.NoRoute(h.noRoute)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/blogs", h.ListPublishedBlogs)
		v1.GET("/blogs/:slug", h.GetPublishedBlog)
		v1.GET("/categories", h.ListCategories)
		v1.GET("/categories/:slug/blogs", h.ListCategoryBlogs)
		v1.GET("/menus", h.ListMenus)
		v1.GET("/ads", h.ListActiveAds)
		v1.GET("/ads/:id/click", h.ClickAd)
		v1.GET("/settings", h.GetPublicSettings)
		v1.GET("/car-sources", h.ListPublicCarSources)
		v1.GET("/car-prices", h.ListCarPrices)
	}

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/otp/send", h.SendOTP)
		authGroup.POST("/otp/verify", h.VerifyOTP)
		authGroup.GET("/me", h.authMiddleware(), h.Me)
	}

	staff := v1.Group("/admin", h.authMiddleware(), requireRole(database.RoleAdmin, database.RoleEditor))
	{
		staff.GET("/blogs", h.ListBlogs)
		staff.GET("/blogs/:id", h.GetBlog)
		staff.POST("/blogs", h.CreateBlog)
		staff.PUT("/blogs/:id", h.UpdateBlog)
		staff.DELETE("/blogs/:id", h.DeleteBlog)

		staff.POST("/categories", h.CreateCategory)
		staff.PUT("/categories/:id", h.UpdateCategory)
		staff.DELETE("/categories/:id", h.DeleteCategory)

		staff.GET("/menus", h.ListAllMenus)
		staff.POST("/menus", h.CreateMenu)
		staff.PUT("/menus/:id", h.UpdateMenu)
		staff.DELETE("/menus/:id", h.DeleteMenu)

		staff.GET("/media", h.ListMedia)
		staff.POST("/media", h.UploadMedia)
		staff.DELETE("/media/:id", h.DeleteMedia)
	}

	admin := v1.Group("/admin", h.authMiddleware(), requireRole(database.RoleAdmin))
	{
		admin.GET("/ads", h.ListAds)
		admin.POST("/ads", h.CreateAd)
		admin.PUT("/ads/:id", h.UpdateAd)
		admin.DELETE("/ads/:id", h.DeleteAd)

		admin.GET("/settings", h.ListSettings)
		admin.PUT("/settings", h.UpdateSettings)

		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:id/role", h.UpdateUserRole)

		admin.GET("/rss/settings", h.GetRSSSettings)
		admin.PUT("/rss/settings", h.UpdateRSSSettings)
		admin.GET("/rss/sources", h.ListRSSSources)
		admin.POST("/rss/sources", h.CreateRSSSource)
		admin.PUT("/rss/sources/:id", h.UpdateRSSSource)
		admin.DELETE("/rss/sources/:id", h.DeleteRSSSource)
		admin.POST("/rss/sources/sync", h.SyncRSSSources)
		admin.POST("/rss/run", h.RunRSS)
		admin.GET("/rss/items", h.ListRSSItems)

		admin.GET("/car-sources", h.ListCarSources)
		admin.POST("/car-sources", h.CreateCarSource)
		admin.PUT("/car-sources/:id", h.UpdateCarSource)
		admin.DELETE("/car-sources/:id", h.DeleteCarSource)
		admin.POST("/car-sources/:id/scrape", h.ScrapeCarSource)

		admin.GET("/jobs", h.ListJobs)
	}

	r.GET("/api/sse", h.authMiddleware(), requireRole(database.RoleAdmin, database.RoleEditor), h.StreamEvents)

	cron := v1.Group("/cron", cronAuth(h.opts.CronSecret))
	{
		cron.POST("/cleanup", h.CronCleanup)
		cron.GET("/cleanup", h.CronCleanup)
		cron.POST("/kill-slow-jobs", h.CronKillSlowJobs)
		cron.GET("/kill-slow-jobs", h.CronKillSlowJobs)
	}

	if h.opts.CronSecret == "" {
		slog.Warn("Cron endpoints disabled", "reason", "CRON_SECRET not set")
	}
}

// noRoute serves short links of the form /{8 digits}. Any other unmatched
// path is a 404 without touching the store.
func (h *Handler) noRoute(c *gin.Context) {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		code := strings.Trim(c.Request.URL.Path, "/")
		if content.IsShortCode(code) {
			h.redirectShortCode(c, code)
			return
		}
	}
	notFound(c)
}
