package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
	"github.com/lysyi3m/khabar/app/tasks"
)

const defaultSourceTimeout = 30

type rssSettingsRequest struct {
	Active            bool `json:"active"`
	IntervalMinutes   int  `json:"interval_minutes" binding:"min=1"`
	RewriteEnabled    bool `json:"rewrite_enabled"`
	PublishWebsite    bool `json:"publish_website"`
	PublishTelegram   bool `json:"publish_telegram"`
	MaxItemsPerSource int  `json:"max_items_per_source" binding:"min=1"`
}

type rssSourceRequest struct {
	Name           string               `json:"name" binding:"required"`
	URL            string               `json:"url" binding:"required,url"`
	CategoryID     *int64               `json:"category_id"`
	Active         *bool                `json:"active"`
	ExtractContent bool                 `json:"extract_content"`
	Timeout        int                  `json:"timeout" binding:"min=0"`
	Filters        []database.RSSFilter `json:"filters"`
}

func (r rssSourceRequest) source() (*database.RSSSource, error) {
	if err := feed.ValidateFilters(r.Filters); err != nil {
		return nil, err
	}
	src := &database.RSSSource{
		Name:           strings.TrimSpace(r.Name),
		URL:            strings.TrimSpace(r.URL),
		CategoryID:     r.CategoryID,
		Active:         true,
		ExtractContent: r.ExtractContent,
		Timeout:        r.Timeout,
		Filters:        r.Filters,
	}
	if r.Active != nil {
		src.Active = *r.Active
	}
	if src.Timeout == 0 {
		src.Timeout = defaultSourceTimeout
	}
	return src, nil
}

type carSourceRequest struct {
	Name          string `json:"name" binding:"required"`
	URL           string `json:"url" binding:"required,url"`
	RowSelector   string `json:"row_selector" binding:"required"`
	NameSelector  string `json:"name_selector" binding:"required"`
	ModelSelector string `json:"model_selector"`
	PriceSelector string `json:"price_selector" binding:"required"`
	Active        *bool  `json:"active"`
}

func (r carSourceRequest) source() *database.CarSource {
	src := &database.CarSource{
		Name:          strings.TrimSpace(r.Name),
		URL:           strings.TrimSpace(r.URL),
		RowSelector:   r.RowSelector,
		NameSelector:  r.NameSelector,
		ModelSelector: r.ModelSelector,
		PriceSelector: r.PriceSelector,
		Active:        true,
	}
	if r.Active != nil {
		src.Active = *r.Active
	}
	return src
}

func (h *Handler) GetRSSSettings(c *gin.Context) {
	settings, err := h.RSS.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if settings == nil {
		notFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings, "running": h.Scheduler.RSSRunning()})
}

func (h *Handler) UpdateRSSSettings(c *gin.Context) {
	var req rssSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	settings, err := h.RSS.GetSettings(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if settings == nil {
		notFound(c)
		return
	}

	settings.Active = req.Active
	settings.IntervalMinutes = req.IntervalMinutes
	settings.RewriteEnabled = req.RewriteEnabled
	settings.PublishWebsite = req.PublishWebsite
	settings.PublishTelegram = req.PublishTelegram
	settings.MaxItemsPerSource = req.MaxItemsPerSource

	if err := h.RSS.UpdateSettings(ctx, settings); err != nil {
		respondError(c, err)
		return
	}

	slog.Info("RSS settings updated", "active", settings.Active, "interval_minutes", settings.IntervalMinutes)
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) ListRSSSources(c *gin.Context) {
	sources, err := h.RSS.ListSources(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if sources == nil {
		sources = []database.RSSSource{}
	}
	c.JSON(http.StatusOK, gin.H{"items": sources})
}

func (h *Handler) CreateRSSSource(c *gin.Context) {
	var req rssSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	src, err := req.source()
	if err != nil {
		respondError(c, newAPIError(http.StatusBadRequest, msgInvalidFilters))
		return
	}
	if err := h.RSS.CreateSource(c.Request.Context(), src); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"source": src})
}

func (h *Handler) UpdateRSSSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req rssSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	src, err := req.source()
	if err != nil {
		respondError(c, newAPIError(http.StatusBadRequest, msgInvalidFilters))
		return
	}
	src.ID = id
	if err := h.RSS.UpdateSource(c.Request.Context(), src); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"source": src})
}

func (h *Handler) DeleteRSSSource(c *gin.Context) {
	h.deleteByID(c, h.RSS.DeleteSource)
}

// SyncRSSSources reloads the YAML source catalog in the background.
func (h *Handler) SyncRSSSources(c *gin.Context) {
	h.enqueue(c, h.Tasks.SyncSources())
}

// RunRSS starts an RSS pass now. A pass already in flight answers 409.
func (h *Handler) RunRSS(c *gin.Context) {
	if !h.Scheduler.TriggerRSS() {
		respondError(c, newAPIError(http.StatusConflict, msgRSSRunning))
		return
	}

	slog.Info("RSS pass triggered", "source", "api")
	c.JSON(http.StatusAccepted, gin.H{"started": true})
}

func (h *Handler) ListRSSItems(c *gin.Context) {
	p := pagination(c)
	sourceID, _ := strconv.ParseInt(c.Query("source_id"), 10, 64)

	items, total, err := h.RSS.ListItems(c.Request.Context(), sourceID, p.Limit, p.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []database.RSSItem{}
	}
	c.JSON(http.StatusOK, listResponse(items, total, p))
}

func (h *Handler) ListCarSources(c *gin.Context) {
	sources, err := h.Cars.ListSources(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if sources == nil {
		sources = []database.CarSource{}
	}
	c.JSON(http.StatusOK, gin.H{"items": sources})
}

func (h *Handler) CreateCarSource(c *gin.Context) {
	var req carSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	src := req.source()
	if err := h.Cars.CreateSource(c.Request.Context(), src); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"source": src})
}

func (h *Handler) UpdateCarSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req carSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	src := req.source()
	src.ID = id
	if err := h.Cars.UpdateSource(c.Request.Context(), src); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"source": src})
}

func (h *Handler) DeleteCarSource(c *gin.Context) {
	h.deleteByID(c, h.Cars.DeleteSource)
}

// ScrapeCarSource queues a scrape of one source.
func (h *Handler) ScrapeCarSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	src, err := h.Cars.GetSource(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if src == nil {
		notFound(c)
		return
	}

	h.enqueue(c, h.Tasks.ScrapeCarPrices(*src))
}

func (h *Handler) enqueue(c *gin.Context, task tasks.TaskInterface) {
	if err := h.Scheduler.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue task", "type", task.GetType(), "target", task.GetTarget(), "error", err)
		respondError(c, newAPIError(http.StatusServiceUnavailable, msgQueueFull))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.GetID(), "type": task.GetType()})
}

func (h *Handler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.Scheduler.Running()})
}

// StreamEvents holds the connection open and streams admin notifications.
func (h *Handler) StreamEvents(c *gin.Context) {
	if err := h.Registry.Serve(c.Request.Context(), c.Writer); err != nil {
		slog.Debug("SSE stream ended", "ip", c.ClientIP(), "error", err)
	}
}

// CronCleanup queues removal of expired login attempts, OTP codes and old
// RSS item records.
func (h *Handler) CronCleanup(c *gin.Context) {
	h.enqueue(c, h.Tasks.Cleanup())
}

// CronKillSlowJobs cancels every task running longer than the slow job
// threshold.
func (h *Handler) CronKillSlowJobs(c *gin.Context) {
	if h.opts.SlowJobThreshold <= 0 {
		respondError(c, errors.New("slow job threshold not configured"))
		return
	}

	cancelled := h.Scheduler.CancelOlderThan(h.opts.SlowJobThreshold)
	if cancelled == nil {
		cancelled = []tasks.JobInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled, "count": len(cancelled)})
}
