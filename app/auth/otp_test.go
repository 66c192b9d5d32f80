package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lysyi3m/khabar/app/database"
)

type mockSender struct {
	codes map[string]string
	err   error
}

func (m *mockSender) Send(ctx context.Context, phone, code string) error {
	if m.err != nil {
		return m.err
	}
	m.codes[phone] = code
	return nil
}

func newTestOTP(t *testing.T) (*OTPService, *mockSender, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	sender := &mockSender{codes: map[string]string{}}
	svc := NewOTPService(database.NewOTPRepository(newTestDB(t)), sender, OTPConfig{
		TTL:            2 * time.Minute,
		ResendInterval: time.Minute,
		MaxAttempts:    3,
		Secret:         "otp-test-secret",
	})
	svc.now = clock.Now

	return svc, sender, clock
}

func TestOTPService_SendAndVerify(t *testing.T) {
	svc, sender, clock := newTestOTP(t)
	ctx := context.Background()

	expires, err := svc.Send(ctx, "+98 912 123 4567", PurposeLogin)
	if err != nil {
		t.Fatalf("Failed to send otp: %v", err)
	}
	if !expires.Equal(clock.now.Add(2 * time.Minute)) {
		t.Errorf("Expected expiry in 2m, got %v", expires)
	}

	code := sender.codes["09121234567"]
	if len(code) != otpDigits {
		t.Fatalf("Expected %d digit code, got %q", otpDigits, code)
	}

	if _, err := svc.Send(ctx, "09121234567", PurposeLogin); !errors.Is(err, ErrOTPTooSoon) {
		t.Errorf("Expected ErrOTPTooSoon, got %v", err)
	}

	clock.Advance(10 * time.Second)
	if err := svc.Verify(ctx, "09121234567", PurposeVerifyPhone, code); !errors.Is(err, ErrOTPInvalid) {
		t.Errorf("Expected ErrOTPInvalid for other purpose, got %v", err)
	}
	if err := svc.Verify(ctx, "09121234567", PurposeLogin, code); err != nil {
		t.Fatalf("Expected code to verify, got %v", err)
	}
	if err := svc.Verify(ctx, "09121234567", PurposeLogin, code); !errors.Is(err, ErrOTPInvalid) {
		t.Errorf("Expected used code to be rejected, got %v", err)
	}
}

func TestOTPService_Expired(t *testing.T) {
	svc, sender, clock := newTestOTP(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "09121234567", PurposeLogin); err != nil {
		t.Fatalf("Failed to send otp: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if err := svc.Verify(ctx, "09121234567", PurposeLogin, sender.codes["09121234567"]); !errors.Is(err, ErrOTPExpired) {
		t.Errorf("Expected ErrOTPExpired, got %v", err)
	}
}

func TestOTPService_MaxAttempts(t *testing.T) {
	svc, sender, _ := newTestOTP(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "09121234567", PurposeLogin); err != nil {
		t.Fatalf("Failed to send otp: %v", err)
	}
	code := sender.codes["09121234567"]
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < 3; i++ {
		if err := svc.Verify(ctx, "09121234567", PurposeLogin, wrong); !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("Expected ErrOTPInvalid on attempt %d, got %v", i+1, err)
		}
	}

	if err := svc.Verify(ctx, "09121234567", PurposeLogin, code); !errors.Is(err, ErrOTPTooManyAttempts) {
		t.Errorf("Expected ErrOTPTooManyAttempts, got %v", err)
	}
}

func TestOTPService_InvalidPhone(t *testing.T) {
	svc, _, _ := newTestOTP(t)

	if _, err := svc.Send(context.Background(), "12345", PurposeLogin); !errors.Is(err, ErrInvalidPhone) {
		t.Errorf("Expected ErrInvalidPhone, got %v", err)
	}
}

func TestKavenegarSender(t *testing.T) {
	var gotPath, gotReceptor string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotReceptor = r.URL.Query().Get("receptor")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"return":{"status":200,"message":"تایید شد"},"entries":[]}`))
	}))
	defer server.Close()

	sender := NewKavenegarSender("KEY", "verify")
	sender.baseURL = server.URL

	if err := sender.Send(context.Background(), "09121234567", "123456"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gotPath != "/KEY/verify/lookup.json" {
		t.Errorf("Expected lookup path, got %q", gotPath)
	}
	if gotReceptor != "09121234567" {
		t.Errorf("Expected receptor 09121234567, got %q", gotReceptor)
	}
}

func TestKavenegarSender_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"return":{"status":418,"message":"اعتبار کافی نیست"}}`))
	}))
	defer server.Close()

	sender := NewKavenegarSender("KEY", "verify")
	sender.baseURL = server.URL

	if err := sender.Send(context.Background(), "09121234567", "123456"); err == nil {
		t.Error("Expected provider error, got nil")
	}
}
