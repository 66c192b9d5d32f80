package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// SMSSender delivers a verification code to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, code string) error
}

const kavenegarBaseURL = "https://api.kavenegar.com/v1"

// KavenegarSender uses the Kavenegar verify lookup API.
type KavenegarSender struct {
	apiKey   string
	template string
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewKavenegarSender(apiKey, template string) *KavenegarSender {
	return &KavenegarSender{
		apiKey:   apiKey,
		template: template,
		baseURL:  kavenegarBaseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

type kavenegarResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

func (k *KavenegarSender) Send(ctx context.Context, phone, code string) error {
	if err := k.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("receptor", phone)
	params.Set("token", code)
	params.Set("template", k.template)

	endpoint := fmt.Sprintf("%s/%s/verify/lookup.json?%s", k.baseURL, url.PathEscape(k.apiKey), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call sms provider: %w", err)
	}
	defer resp.Body.Close()

	var body kavenegarResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode sms response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || body.Return.Status != http.StatusOK {
		return fmt.Errorf("sms provider returned %d: %s", body.Return.Status, body.Return.Message)
	}

	return nil
}

// LogSender writes codes to the log instead of sending them. Used when no
// SMS provider is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, phone, code string) error {
	slog.Warn("SMS provider not configured, logging OTP", "phone", phone, "code", code)
	return nil
}
