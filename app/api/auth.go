package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/khabar/app/auth"
	"github.com/lysyi3m/khabar/app/database"
)

const minPasswordLength = 8

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}

type otpSendRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Purpose string `json:"purpose"`
}

type otpVerifyRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Purpose string `json:"purpose"`
	Code    string `json:"code" binding:"required"`
}

func otpPurpose(purpose string) (string, bool) {
	switch purpose {
	case "", auth.PurposeLogin:
		return auth.PurposeLogin, true
	case auth.PurposeVerifyPhone:
		return auth.PurposeVerifyPhone, true
	}
	return "", false
}

// Login checks credentials under the anti-abuse throttle and sets the
// session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	identifier := auth.NormalizeIdentifier(req.Identifier)

	var user *database.User
	status, success, err := h.Guard.Attempt(c.Request.Context(), identifier, c.ClientIP(), func(ctx context.Context) (bool, error) {
		var err error
		user, err = h.Users.GetByIdentifier(ctx, identifier)
		if err != nil {
			return false, err
		}
		return user != nil && user.PasswordHash != "" && auth.CheckPassword(user.PasswordHash, req.Password), nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if !success {
		if status.Blocked {
			tooManyRequests(c, status, h.now)
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     msgInvalidLogin,
			"remaining": status.Remaining,
		})
		return
	}

	h.startSession(c, user)
}

func (h *Handler) startSession(c *gin.Context, user *database.User) {
	token, expiresAt, err := h.Tokens.Issue(user)
	if err != nil {
		respondError(c, err)
		return
	}

	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, token, maxAge, "/", "", h.opts.CookieSecure, true)

	slog.Info("User logged in", "user_id", user.ID, "role", user.Role)

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, "", -1, "/", "", h.opts.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": msgLoggedOut})
}

// Register creates a regular user with an email, a phone, or both.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user := &database.User{
		Name: strings.TrimSpace(req.Name),
		Role: database.RoleUser,
	}
	if req.Email != "" {
		user.Email = auth.NormalizeIdentifier(req.Email)
		if !strings.Contains(user.Email, "@") {
			badRequest(c, errors.New("invalid email"))
			return
		}
	}
	if req.Phone != "" {
		user.Phone = auth.NormalizePhone(req.Phone)
		if !auth.IsMobile(user.Phone) {
			respondError(c, auth.ErrInvalidPhone)
			return
		}
	}
	if user.Name == "" || (user.Email == "" && user.Phone == "") {
		badRequest(c, errors.New("name and email or phone are required"))
		return
	}
	if len([]rune(req.Password)) < minPasswordLength {
		respondError(c, newAPIError(http.StatusBadRequest, msgPasswordTooShort))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user.PasswordHash = hash

	if err := h.Users.Create(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}

	slog.Info("User registered", "user_id", user.ID)
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *Handler) SendOTP(c *gin.Context) {
	var req otpSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	purpose, ok := otpPurpose(req.Purpose)
	if !ok {
		badRequest(c, errors.New("unknown otp purpose"))
		return
	}

	expiresAt, err := h.OTP.Send(c.Request.Context(), req.Phone, purpose)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msgOTPSent, "expires_at": expiresAt})
}

// VerifyOTP consumes a code. A login code starts a session for the user
// owning the phone; a verify_phone code marks the phone verified.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	purpose, ok := otpPurpose(req.Purpose)
	if !ok {
		badRequest(c, errors.New("unknown otp purpose"))
		return
	}

	ctx := c.Request.Context()
	phone := auth.NormalizePhone(req.Phone)

	if err := h.OTP.Verify(ctx, phone, purpose, req.Code); err != nil {
		respondError(c, err)
		return
	}

	user, err := h.Users.GetByPhone(ctx, phone)
	if err != nil {
		respondError(c, err)
		return
	}
	if user == nil {
		notFound(c)
		return
	}

	if !user.PhoneVerified {
		if err := h.Users.MarkPhoneVerified(ctx, user.ID); err != nil {
			respondError(c, err)
			return
		}
		user.PhoneVerified = true
	}

	if purpose == auth.PurposeVerifyPhone {
		c.JSON(http.StatusOK, gin.H{"user": user})
		return
	}

	h.startSession(c, user)
}

func (h *Handler) Me(c *gin.Context) {
	id := currentUserID(c)
	if id == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	user, err := h.Users.GetByID(c.Request.Context(), *id)
	if err != nil {
		respondError(c, err)
		return
	}
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
