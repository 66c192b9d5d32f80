package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/khabar/app/database"
)

type adRequest struct {
	Title    string     `json:"title" binding:"required"`
	ImageURL string     `json:"image_url"`
	LinkURL  string     `json:"link_url"`
	Position string     `json:"position" binding:"required"`
	Active   *bool      `json:"active"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

func (r adRequest) ad() (*database.Ad, error) {
	if r.StartsAt != nil && r.EndsAt != nil && r.EndsAt.Before(*r.StartsAt) {
		return nil, errors.New("ad ends before it starts")
	}
	ad := &database.Ad{
		Title:    strings.TrimSpace(r.Title),
		ImageURL: r.ImageURL,
		LinkURL:  r.LinkURL,
		Position: r.Position,
		Active:   true,
		StartsAt: r.StartsAt,
		EndsAt:   r.EndsAt,
	}
	if r.Active != nil {
		ad.Active = *r.Active
	}
	return ad, nil
}

type settingRequest struct {
	Key      string `json:"key" binding:"required"`
	Value    string `json:"value"`
	IsPublic bool   `json:"is_public"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) ListAds(c *gin.Context) {
	ads, err := h.Ads.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if ads == nil {
		ads = []database.Ad{}
	}
	c.JSON(http.StatusOK, gin.H{"items": ads})
}

func (h *Handler) CreateAd(c *gin.Context) {
	var req adRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ad, err := req.ad()
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Ads.Create(c.Request.Context(), ad); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ad": ad})
}

func (h *Handler) UpdateAd(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req adRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ad, err := req.ad()
	if err != nil {
		badRequest(c, err)
		return
	}
	ad.ID = id
	if err := h.Ads.Update(c.Request.Context(), ad); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ad": ad})
}

func (h *Handler) DeleteAd(c *gin.Context) {
	h.deleteByID(c, h.Ads.Delete)
}

func (h *Handler) ListSettings(c *gin.Context) {
	settings, err := h.Settings.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if settings == nil {
		settings = []database.Setting{}
	}
	c.JSON(http.StatusOK, gin.H{"items": settings})
}

// UpdateSettings upserts a batch of settings and drops the public cache.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req []settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	settings := make([]database.Setting, 0, len(req))
	for _, r := range req {
		key := strings.TrimSpace(r.Key)
		if key == "" {
			badRequest(c, errors.New("empty setting key"))
			return
		}
		settings = append(settings, database.Setting{Key: key, Value: r.Value, IsPublic: r.IsPublic})
	}

	if err := h.Settings.Upsert(c.Request.Context(), settings); err != nil {
		respondError(c, err)
		return
	}
	h.cache.settings.Purge()

	slog.Info("Settings updated", "count", len(settings))
	h.ListSettings(c)
}

func (h *Handler) ListUsers(c *gin.Context) {
	p := pagination(c)
	users, total, err := h.Users.List(c.Request.Context(), p.Limit, p.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if users == nil {
		users = []database.User{}
	}
	c.JSON(http.StatusOK, listResponse(users, total, p))
}

// UpdateUserRole changes the role of a user. Admins cannot demote themselves.
func (h *Handler) UpdateUserRole(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	switch req.Role {
	case database.RoleAdmin, database.RoleEditor, database.RoleUser:
	default:
		badRequest(c, errors.New("unknown role"))
		return
	}

	if self := currentUserID(c); self != nil && *self == id && req.Role != database.RoleAdmin {
		respondError(c, newAPIError(http.StatusForbidden, msgForbidden))
		return
	}

	ctx := c.Request.Context()
	user, err := h.Users.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if user == nil {
		notFound(c)
		return
	}

	if err := h.Users.UpdateRole(ctx, id, req.Role); err != nil {
		respondError(c, err)
		return
	}
	user.Role = req.Role

	slog.Info("User role updated", "user_id", id, "role", req.Role)
	c.JSON(http.StatusOK, gin.H{"user": user})
}
