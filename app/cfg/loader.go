package cfg

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath        string `long:"db-path" env:"DB_PATH" default:"./data/khabar.db" description:"SQLite database file (use :memory: for an ephemeral database)"`
	UploadsDir    string `long:"uploads-dir" env:"UPLOADS_DIR" default:"./uploads" description:"Directory for uploaded media"`
	MaxUploadSize int64  `long:"max-upload-size" env:"MAX_UPLOAD_SIZE" default:"10" description:"Maximum upload size in megabytes"`
	SourcesDir    string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing RSS source YAML files"`

	// HTTP
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	SiteURL      string `long:"site-url" env:"SITE_URL" default:"http://localhost:8080" description:"Public base URL of the news site"`
	CookieSecure bool   `long:"cookie-secure" env:"COOKIE_SECURE" description:"Mark session cookies as Secure"`

	// Secrets
	JWTSecret  string `long:"jwt-secret" env:"JWT_SECRET" description:"Secret used to sign session tokens (required)" required:"true"`
	JWTTTL     int    `long:"jwt-ttl" env:"JWT_TTL" default:"168" description:"Session token lifetime in hours"`
	CronSecret string `long:"cron-secret" env:"CRON_SECRET" description:"Bearer secret for cron webhooks (empty disables them)"`

	// Bootstrap admin
	AdminEmail    string `long:"admin-email" env:"ADMIN_EMAIL" description:"Email of the admin account created on first start"`
	AdminPassword string `long:"admin-password" env:"ADMIN_PASSWORD" description:"Password of the admin account created on first start"`

	// Background processing
	WorkerCount       int `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers"`
	SchedulerInterval int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler tick interval in seconds"`
	SSEPingInterval   int `long:"sse-ping-interval" env:"SSE_PING_INTERVAL" default:"30" description:"SSE keep-alive ping interval in seconds"`
	SlowJobThreshold  int `long:"slow-job-threshold" env:"SLOW_JOB_THRESHOLD" default:"10" description:"Background jobs running longer than this many minutes are cancelled by the cron webhook"`

	// Anti-abuse
	LoginMaxFailures int `long:"login-max-failures" env:"LOGIN_MAX_FAILURES" default:"5" description:"Failed logins before an identifier is blocked"`
	LoginWindow      int `long:"login-window" env:"LOGIN_WINDOW" default:"15" description:"Window in minutes in which failures are counted"`
	LoginCooldown    int `long:"login-cooldown" env:"LOGIN_COOLDOWN" default:"15" description:"Block duration in minutes"`

	// OTP
	OTPTTL            int `long:"otp-ttl" env:"OTP_TTL" default:"120" description:"OTP code lifetime in seconds"`
	OTPResendInterval int `long:"otp-resend-interval" env:"OTP_RESEND_INTERVAL" default:"60" description:"Minimum seconds between OTP sends to one phone"`
	OTPMaxAttempts    int `long:"otp-max-attempts" env:"OTP_MAX_ATTEMPTS" default:"5" description:"Verification attempts allowed per code"`

	// Integrations
	AIBaseURL       string `long:"ai-base-url" env:"AI_BASE_URL" default:"https://api.openai.com/v1" description:"OpenAI-compatible API base URL"`
	AIAPIKey        string `long:"ai-api-key" env:"AI_API_KEY" description:"AI provider API key (empty disables rewriting)"`
	AIModel         string `long:"ai-model" env:"AI_MODEL" default:"gpt-4o-mini" description:"AI model used for rewriting"`
	SMSAPIKey       string `long:"sms-api-key" env:"SMS_API_KEY" description:"Kavenegar API key (empty logs codes instead of sending)"`
	SMSTemplate     string `long:"sms-template" env:"SMS_TEMPLATE" default:"verify" description:"Kavenegar lookup template"`
	TelegramToken   string `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token (empty disables Telegram publishing)"`
	TelegramChannel string `long:"telegram-channel" env:"TELEGRAM_CHANNEL" description:"Telegram channel username or chat ID"`
	TelegramAPIURL  string `long:"telegram-api-url" env:"TELEGRAM_API_URL" default:"https://api.telegram.org" description:"Telegram Bot API URL"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Khabar/1.0" description:"User agent string for outgoing HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"Asia/Tehran" description:"Timezone for timestamps"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		UploadsDir:        raw.UploadsDir,
		MaxUploadSize:     raw.MaxUploadSize << 20,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		SiteURL:           strings.TrimRight(raw.SiteURL, "/"),
		CookieSecure:      raw.CookieSecure,
		JWTSecret:         raw.JWTSecret,
		JWTTTL:            raw.JWTTTL,
		CronSecret:        raw.CronSecret,
		AdminEmail:        raw.AdminEmail,
		AdminPassword:     raw.AdminPassword,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		SSEPingInterval:   raw.SSEPingInterval,
		SlowJobThreshold:  raw.SlowJobThreshold,
		LoginMaxFailures:  raw.LoginMaxFailures,
		LoginWindow:       raw.LoginWindow,
		LoginCooldown:     raw.LoginCooldown,
		OTPTTL:            raw.OTPTTL,
		OTPResendInterval: raw.OTPResendInterval,
		OTPMaxAttempts:    raw.OTPMaxAttempts,
		AIBaseURL:         strings.TrimRight(raw.AIBaseURL, "/"),
		AIAPIKey:          raw.AIAPIKey,
		AIModel:           raw.AIModel,
		SMSAPIKey:         raw.SMSAPIKey,
		SMSTemplate:       raw.SMSTemplate,
		TelegramToken:     raw.TelegramToken,
		TelegramChannel:   raw.TelegramChannel,
		TelegramAPIURL:    raw.TelegramAPIURL,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"worker count":       cfg.WorkerCount,
		"scheduler interval": cfg.SchedulerInterval,
		"SSE ping interval":  cfg.SSEPingInterval,
		"login max failures": cfg.LoginMaxFailures,
		"login window":       cfg.LoginWindow,
		"login cooldown":     cfg.LoginCooldown,
		"OTP TTL":            cfg.OTPTTL,
		"OTP max attempts":   cfg.OTPMaxAttempts,
		"JWT TTL":            cfg.JWTTTL,
		"slow job threshold": cfg.SlowJobThreshold,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if len(cfg.JWTSecret) < 16 {
		return fmt.Errorf("JWT secret must be at least 16 characters")
	}

	if cfg.TelegramToken != "" && cfg.TelegramChannel == "" {
		return fmt.Errorf("telegram channel is required when a telegram token is set")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
