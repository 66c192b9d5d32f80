package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
)

type blogRequest struct {
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	Summary    string `json:"summary"`
	Content    string `json:"content"`
	CoverImage string `json:"cover_image"`
	CategoryID *int64 `json:"category_id"`
	Status     string `json:"status"`
	SourceURL  string `json:"source_url"`
}

func (r blogRequest) input() content.BlogInput {
	return content.BlogInput{
		Title:      r.Title,
		Slug:       r.Slug,
		Summary:    r.Summary,
		Content:    r.Content,
		CoverImage: r.CoverImage,
		CategoryID: r.CategoryID,
		Status:     r.Status,
		SourceURL:  r.SourceURL,
	}
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
	SortOrder   int    `json:"sort_order"`
}

type menuRequest struct {
	Title     string `json:"title" binding:"required"`
	URL       string `json:"url" binding:"required"`
	Location  string `json:"location"`
	ParentID  *int64 `json:"parent_id"`
	SortOrder int    `json:"sort_order"`
	Active    *bool  `json:"active"`
}

const defaultMenuLocation = "header"

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ListBlogs lists blogs of every status for the back office.
func (h *Handler) ListBlogs(c *gin.Context) {
	p := pagination(c)
	filter := database.BlogFilter{
		Status: c.Query("status"),
		Search: strings.TrimSpace(c.Query("q")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	h.respondBlogs(c, filter, p)
}

func (h *Handler) GetBlog(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	blog, err := h.Blogs.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if blog == nil {
		notFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"blog": blog})
}

func (h *Handler) CreateBlog(c *gin.Context) {
	var req blogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	blog, err := h.BlogService.Create(c.Request.Context(), req.input(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"blog": blog})
}

func (h *Handler) UpdateBlog(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req blogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	blog, err := h.BlogService.Update(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	h.cache.shortLinks.Remove(blog.ShortCode)

	c.JSON(http.StatusOK, gin.H{"blog": blog})
}

func (h *Handler) DeleteBlog(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	blog, err := h.Blogs.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if blog == nil {
		notFound(c)
		return
	}

	deleted, err := h.BlogService.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		notFound(c)
		return
	}
	h.cache.shortLinks.Remove(blog.ShortCode)

	c.Status(http.StatusNoContent)
}

func (r categoryRequest) category() *database.Category {
	slug := content.Slugify(r.Slug)
	if slug == "" {
		slug = content.Slugify(r.Name)
	}
	return &database.Category{
		Name:        strings.TrimSpace(r.Name),
		Slug:        slug,
		Description: r.Description,
		ParentID:    r.ParentID,
		SortOrder:   r.SortOrder,
	}
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category := req.category()
	if category.Slug == "" {
		badRequest(c, errors.New("empty category slug"))
		return
	}
	if err := h.Categories.Create(c.Request.Context(), category); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category := req.category()
	category.ID = id
	if category.ParentID != nil && *category.ParentID == id {
		badRequest(c, errors.New("category cannot be its own parent"))
		return
	}
	if err := h.Categories.Update(c.Request.Context(), category); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	h.deleteByID(c, h.Categories.Delete)
}

// deleteByID answers 204 on success and 404 when nothing was deleted.
func (h *Handler) deleteByID(c *gin.Context, del func(ctx context.Context, id int64) (bool, error)) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	deleted, err := del(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		notFound(c)
		return
	}

	c.Status(http.StatusNoContent)
}

func (r menuRequest) menu() *database.Menu {
	menu := &database.Menu{
		Title:     strings.TrimSpace(r.Title),
		URL:       strings.TrimSpace(r.URL),
		Location:  r.Location,
		ParentID:  r.ParentID,
		SortOrder: r.SortOrder,
		Active:    true,
	}
	if menu.Location == "" {
		menu.Location = defaultMenuLocation
	}
	if r.Active != nil {
		menu.Active = *r.Active
	}
	return menu
}

func (h *Handler) ListAllMenus(c *gin.Context) {
	menus, err := h.Menus.List(c.Request.Context(), c.Query("location"), false)
	if err != nil {
		respondError(c, err)
		return
	}
	if menus == nil {
		menus = []database.Menu{}
	}
	c.JSON(http.StatusOK, gin.H{"items": menus})
}

func (h *Handler) CreateMenu(c *gin.Context) {
	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	menu := req.menu()
	if err := h.Menus.Create(c.Request.Context(), menu); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"menu": menu})
}

func (h *Handler) UpdateMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	menu := req.menu()
	menu.ID = id
	if err := h.Menus.Update(c.Request.Context(), menu); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"menu": menu})
}

func (h *Handler) DeleteMenu(c *gin.Context) {
	h.deleteByID(c, h.Menus.Delete)
}

func (h *Handler) ListMedia(c *gin.Context) {
	p := pagination(c)
	media, total, err := h.Media.List(c.Request.Context(), p.Limit, p.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if media == nil {
		media = []database.Media{}
	}
	c.JSON(http.StatusOK, listResponse(media, total, p))
}

// UploadMedia stores an image under a random name. The type is sniffed from
// the content, never taken from the client.
func (h *Handler) UploadMedia(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadSize+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, newAPIError(http.StatusRequestEntityTooLarge, msgFileTooLarge))
			return
		}
		respondError(c, newAPIError(http.StatusBadRequest, msgFileRequired))
		return
	}
	if header.Size > h.opts.MaxUploadSize {
		respondError(c, newAPIError(http.StatusRequestEntityTooLarge, msgFileTooLarge))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		respondError(c, fmt.Errorf("failed to detect upload type: %w", err))
		return
	}
	if !allowedUploadTypes[mtype.String()] {
		respondError(c, newAPIError(http.StatusUnsupportedMediaType, msgFileType))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respondError(c, fmt.Errorf("failed to rewind upload: %w", err))
		return
	}

	name := uuid.NewString() + mtype.Extension()
	if err := writeUpload(filepath.Join(h.opts.UploadsDir, name), file); err != nil {
		respondError(c, err)
		return
	}

	media := &database.Media{
		FileName:     name,
		OriginalName: filepath.Base(header.Filename),
		MimeType:     mtype.String(),
		Size:         header.Size,
		URL:          "/uploads/" + name,
		UploadedBy:   currentUserID(c),
	}
	if err := h.Media.Create(c.Request.Context(), media); err != nil {
		os.Remove(filepath.Join(h.opts.UploadsDir, name))
		respondError(c, err)
		return
	}

	slog.Info("Media uploaded", "id", media.ID, "file", name, "type", media.MimeType, "size", media.Size)
	c.JSON(http.StatusCreated, gin.H{"media": media})
}

func writeUpload(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create uploads dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write upload file: %w", err)
	}

	return f.Close()
}

// DeleteMedia removes the row and then the file. A missing file is ignored.
func (h *Handler) DeleteMedia(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	media, err := h.Media.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if media == nil {
		notFound(c)
		return
	}

	if _, err := h.Media.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	path := filepath.Join(h.opts.UploadsDir, filepath.Base(media.FileName))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove media file", "file", path, "error", err)
	}

	c.Status(http.StatusNoContent)
}
