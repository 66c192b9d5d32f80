package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/khabar/app/auth"
	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/scraper"
)

// apiError carries an explicit status and message through respondError.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return e.message
}

func newAPIError(status int, message string) error {
	return &apiError{status: status, message: message}
}

func errorResponse(err error) (int, string) {
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.status, apiErr.message
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, database.ErrDuplicate):
		return http.StatusConflict, msgConflict
	case errors.Is(err, database.ErrForeignKey):
		return http.StatusConflict, msgInUse
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, auth.ErrBlocked):
		return http.StatusTooManyRequests, msgTooManyRequests
	case errors.Is(err, auth.ErrInvalidPhone):
		return http.StatusBadRequest, msgInvalidPhone
	case errors.Is(err, auth.ErrOTPTooSoon):
		return http.StatusTooManyRequests, msgOTPTooSoon
	case errors.Is(err, auth.ErrOTPInvalid):
		return http.StatusBadRequest, msgOTPInvalid
	case errors.Is(err, auth.ErrOTPExpired):
		return http.StatusBadRequest, msgOTPExpired
	case errors.Is(err, auth.ErrOTPTooManyAttempts):
		return http.StatusTooManyRequests, msgOTPTooMany
	case errors.Is(err, content.ErrTitleRequired):
		return http.StatusBadRequest, msgTitleRequired
	case errors.Is(err, content.ErrInvalidStatus):
		return http.StatusBadRequest, msgInvalidStatus
	case errors.Is(err, scraper.ErrNoRows):
		return http.StatusBadGateway, msgNoRows
	}
	return http.StatusInternalServerError, msgInternal
}

// respondError maps err to a status and a Persian message and aborts.
func respondError(c *gin.Context, err error) {
	status, message := errorResponse(err)

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	} else {
		slog.Debug("Request rejected", "method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func badRequest(c *gin.Context, err error) {
	slog.Debug("Invalid request", "path", c.Request.URL.Path, "error", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgBadRequest})
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": msgNotFound})
}

func tooManyRequests(c *gin.Context, status auth.Status, now func() time.Time) {
	if retry := status.RetryAfter(now()); retry > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msgTooManyRequests})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		notFound(c)
		return 0, false
	}
	return id, true
}
