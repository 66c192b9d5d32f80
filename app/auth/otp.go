package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
)

const (
	otpDigits = 6

	PurposeLogin       = "login"
	PurposeVerifyPhone = "verify_phone"
)

type OTPConfig struct {
	TTL            time.Duration
	ResendInterval time.Duration
	MaxAttempts    int
	Secret         string
}

// OTPService issues and verifies SMS one-time codes. Only an HMAC of each
// code is stored.
type OTPService struct {
	codes  database.OTPRepository
	sender SMSSender
	cfg    OTPConfig
	now    func() time.Time
}

func NewOTPService(codes database.OTPRepository, sender SMSSender, cfg OTPConfig) *OTPService {
	return &OTPService{
		codes:  codes,
		sender: sender,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Send issues a new code for phone and returns its expiry.
func (s *OTPService) Send(ctx context.Context, phone, purpose string) (time.Time, error) {
	phone = NormalizePhone(phone)
	if !IsMobile(phone) {
		return time.Time{}, ErrInvalidPhone
	}

	now := s.now()

	latest, err := s.codes.Latest(ctx, phone, purpose)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil && now.Before(latest.CreatedAt.Add(s.cfg.ResendInterval)) {
		return time.Time{}, ErrOTPTooSoon
	}

	code, err := generateCode()
	if err != nil {
		return time.Time{}, err
	}

	record := &database.OTPCode{
		Phone:     phone,
		Purpose:   purpose,
		CodeHash:  s.hash(phone, purpose, code),
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}
	if err := s.codes.Create(ctx, record); err != nil {
		return time.Time{}, err
	}

	if err := s.sender.Send(ctx, phone, code); err != nil {
		return time.Time{}, fmt.Errorf("failed to send otp: %w", err)
	}

	slog.Info("OTP sent", "phone", phone, "purpose", purpose, "expires_at", record.ExpiresAt)

	return record.ExpiresAt, nil
}

// Verify checks code against the latest code issued for phone. A code is
// accepted once.
func (s *OTPService) Verify(ctx context.Context, phone, purpose, code string) error {
	phone = NormalizePhone(phone)
	code = strings.TrimSpace(content.NormalizeDigits(code))
	now := s.now()

	latest, err := s.codes.Latest(ctx, phone, purpose)
	if err != nil {
		return err
	}
	if latest == nil || latest.UsedAt != nil {
		return ErrOTPInvalid
	}
	if !now.Before(latest.ExpiresAt) {
		return ErrOTPExpired
	}
	if latest.Attempts >= s.cfg.MaxAttempts {
		return ErrOTPTooManyAttempts
	}

	expected, err := hex.DecodeString(latest.CodeHash)
	if err != nil {
		return fmt.Errorf("failed to decode otp hash: %w", err)
	}
	actual, _ := hex.DecodeString(s.hash(phone, purpose, code))

	if !hmac.Equal(expected, actual) {
		if err := s.codes.IncrementAttempts(ctx, latest.ID); err != nil {
			return err
		}
		return ErrOTPInvalid
	}

	return s.codes.MarkUsed(ctx, latest.ID, now)
}

func (s *OTPService) hash(phone, purpose, code string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.Secret))
	mac.Write([]byte(phone + ":" + purpose + ":" + code))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
