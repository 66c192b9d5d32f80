package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath        string
	UploadsDir    string
	MaxUploadSize int64 // bytes
	SourcesDir    string

	// HTTP
	Port         string
	SiteURL      string
	CookieSecure bool

	// Secrets
	JWTSecret  string
	JWTTTL     int // hours
	CronSecret string

	// Bootstrap admin
	AdminEmail    string
	AdminPassword string

	// Background processing
	WorkerCount       int
	SchedulerInterval int // seconds
	SSEPingInterval   int // seconds
	SlowJobThreshold  int // minutes

	// Anti-abuse
	LoginMaxFailures int
	LoginWindow      int // minutes
	LoginCooldown    int // minutes

	// OTP
	OTPTTL            int // seconds
	OTPResendInterval int // seconds
	OTPMaxAttempts    int

	// Integrations
	AIBaseURL       string
	AIAPIKey        string
	AIModel         string
	SMSAPIKey       string
	SMSTemplate     string
	TelegramToken   string
	TelegramChannel string
	TelegramAPIURL  string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) JWTTTLDuration() time.Duration {
	return time.Duration(c.JWTTTL) * time.Hour
}

func (c *Cfg) SchedulerIntervalDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) SSEPingIntervalDuration() time.Duration {
	return time.Duration(c.SSEPingInterval) * time.Second
}

func (c *Cfg) SlowJobThresholdDuration() time.Duration {
	return time.Duration(c.SlowJobThreshold) * time.Minute
}

func (c *Cfg) LoginWindowDuration() time.Duration {
	return time.Duration(c.LoginWindow) * time.Minute
}

func (c *Cfg) LoginCooldownDuration() time.Duration {
	return time.Duration(c.LoginCooldown) * time.Minute
}

func (c *Cfg) OTPTTLDuration() time.Duration {
	return time.Duration(c.OTPTTL) * time.Second
}

func (c *Cfg) OTPResendIntervalDuration() time.Duration {
	return time.Duration(c.OTPResendInterval) * time.Second
}
