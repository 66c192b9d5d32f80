package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	feedItemCount   = 50
	feedLanguage    = "fa"
)

type page struct {
	Limit  int
	Offset int
	Page   int
}

func pagination(c *gin.Context) page {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	p, _ := strconv.Atoi(c.Query("page"))
	if p <= 0 {
		p = 1
	}
	return page{Limit: limit, Offset: (p - 1) * limit, Page: p}
}

func listResponse(items any, total int, p page) gin.H {
	return gin.H{"items": items, "total": total, "page": p.Page, "limit": p.Limit}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"version":   h.opts.Version,
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
	}
	if h.Registry != nil {
		health["sse_clients"] = h.Registry.Len()
	}
	if h.Scheduler != nil {
		health["rss_running"] = h.Scheduler.RSSRunning()
	}

	if h.HealthCheck != nil {
		if err := h.HealthCheck(c.Request.Context()); err != nil {
			slog.Error("Health check failed", "error", err)
			health["status"] = "unhealthy"
			health["database"] = "disconnected"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["database"] = "connected"
	}

	c.JSON(http.StatusOK, health)
}

// GetFeed renders the latest published blogs as RSS 2.0.
func (h *Handler) GetFeed(c *gin.Context) {
	blogs, _, err := h.Blogs.List(c.Request.Context(), database.BlogFilter{
		Status: database.BlogStatusPublished,
		Limit:  feedItemCount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	site := feed.SiteInfo{
		Title:    h.siteTitle(c),
		Link:     h.opts.SiteURL,
		Language: feedLanguage,
		Version:  h.opts.Version,
	}
	if desc, ok := h.publicSettings(c)["site_description"]; ok {
		site.Description = desc
	}

	rss, err := h.Generator.Run(site, blogs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(blogs)))
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (h *Handler) siteTitle(c *gin.Context) string {
	if title, ok := h.publicSettings(c)["site_title"]; ok && title != "" {
		return title
	}
	return h.opts.SiteTitle
}

// RedirectShortLink serves /n/:code.
func (h *Handler) RedirectShortLink(c *gin.Context) {
	code := content.NormalizeDigits(c.Param("code"))
	if !content.IsShortCode(code) {
		notFound(c)
		return
	}
	h.redirectShortCode(c, code)
}

func (h *Handler) redirectShortCode(c *gin.Context, code string) {
	slug, ok := h.cache.shortLinks.Get(code)
	if !ok {
		blog, err := h.Blogs.GetByShortCode(c.Request.Context(), code)
		if err != nil {
			respondError(c, err)
			return
		}
		if blog == nil || blog.Status != database.BlogStatusPublished {
			notFound(c)
			return
		}
		slug = blog.Slug
		h.cache.shortLinks.Add(code, slug)
	}

	c.Redirect(http.StatusMovedPermanently, content.CanonicalURL(h.opts.SiteURL, slug))
}

func (h *Handler) ListPublishedBlogs(c *gin.Context) {
	p := pagination(c)
	filter := database.BlogFilter{
		Status: database.BlogStatusPublished,
		Search: strings.TrimSpace(c.Query("q")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if raw := c.Query("category"); raw != "" {
		category, err := h.Categories.GetBySlug(c.Request.Context(), raw)
		if err != nil {
			respondError(c, err)
			return
		}
		if category == nil {
			notFound(c)
			return
		}
		filter.CategoryID = &category.ID
	}

	h.respondBlogs(c, filter, p)
}

func (h *Handler) respondBlogs(c *gin.Context, filter database.BlogFilter, p page) {
	blogs, total, err := h.Blogs.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if blogs == nil {
		blogs = []database.Blog{}
	}
	c.JSON(http.StatusOK, listResponse(blogs, total, p))
}

// GetPublishedBlog returns one published blog and counts the view.
func (h *Handler) GetPublishedBlog(c *gin.Context) {
	blog, err := h.Blogs.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	if blog == nil || blog.Status != database.BlogStatusPublished {
		notFound(c)
		return
	}

	if err := h.Blogs.IncrementViews(c.Request.Context(), blog.ID); err != nil {
		slog.Warn("Failed to count blog view", "id", blog.ID, "error", err)
	} else {
		blog.ViewCount++
	}

	c.JSON(http.StatusOK, gin.H{
		"blog":      blog,
		"url":       content.CanonicalURL(h.opts.SiteURL, blog.Slug),
		"short_url": content.ShortURL(h.opts.SiteURL, blog.ShortCode),
	})
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.Categories.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if categories == nil {
		categories = []database.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"items": categories})
}

func (h *Handler) ListCategoryBlogs(c *gin.Context) {
	category, err := h.Categories.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	if category == nil {
		notFound(c)
		return
	}

	p := pagination(c)
	h.respondBlogs(c, database.BlogFilter{
		Status:     database.BlogStatusPublished,
		CategoryID: &category.ID,
		Limit:      p.Limit,
		Offset:     p.Offset,
	}, p)
}

func (h *Handler) ListMenus(c *gin.Context) {
	menus, err := h.Menus.List(c.Request.Context(), c.Query("location"), true)
	if err != nil {
		respondError(c, err)
		return
	}
	if menus == nil {
		menus = []database.Menu{}
	}
	c.JSON(http.StatusOK, gin.H{"items": menus})
}

// ListActiveAds returns ads running now and counts one impression each.
func (h *Handler) ListActiveAds(c *gin.Context) {
	ads, err := h.Ads.ListActive(c.Request.Context(), c.Query("position"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}

	if len(ads) > 0 {
		ids := make([]int64, 0, len(ads))
		for _, ad := range ads {
			ids = append(ids, ad.ID)
		}
		if err := h.Ads.RecordImpressions(c.Request.Context(), ids); err != nil {
			slog.Warn("Failed to record ad impressions", "count", len(ids), "error", err)
		}
	} else {
		ads = []database.Ad{}
	}

	c.JSON(http.StatusOK, gin.H{"items": ads})
}

// ClickAd counts a click and redirects to the ad target.
func (h *Handler) ClickAd(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	ad, err := h.Ads.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if ad == nil || !ad.Active || ad.LinkURL == "" {
		notFound(c)
		return
	}

	if err := h.Ads.RecordClick(c.Request.Context(), id); err != nil {
		slog.Warn("Failed to record ad click", "id", id, "error", err)
	}

	c.Redirect(http.StatusFound, ad.LinkURL)
}

func (h *Handler) GetPublicSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.publicSettings(c))
}

// publicSettings reads through the cache. Errors fall back to an empty map.
func (h *Handler) publicSettings(c *gin.Context) map[string]string {
	if settings, ok := h.cache.settings.Get(publicSettingsKey); ok {
		return settings
	}

	settings, err := h.Settings.Public(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load public settings", "error", err)
		return map[string]string{}
	}

	m := settingsMap(settings)
	h.cache.settings.Add(publicSettingsKey, m)
	return m
}

type publicCarSource struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	LastScrapedAt *time.Time `json:"last_scraped_at"`
}

func (h *Handler) ListPublicCarSources(c *gin.Context) {
	sources, err := h.Cars.ActiveSources(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]publicCarSource, 0, len(sources))
	for _, src := range sources {
		items = append(items, publicCarSource{ID: src.ID, Name: src.Name, LastScrapedAt: src.LastScrapedAt})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListCarPrices returns the latest prices of one active source.
func (h *Handler) ListCarPrices(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("source_id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, err)
		return
	}

	src, err := h.Cars.GetSource(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if src == nil || !src.Active {
		notFound(c)
		return
	}

	prices, err := h.Cars.ListPrices(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if prices == nil {
		prices = []database.CarPrice{}
	}

	c.JSON(http.StatusOK, gin.H{
		"source": publicCarSource{ID: src.ID, Name: src.Name, LastScrapedAt: src.LastScrapedAt},
		"items":  prices,
	})
}
