package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/khabar/app/api"
	"github.com/lysyi3m/khabar/app/auth"
	"github.com/lysyi3m/khabar/app/cfg"
	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/feed"
	"github.com/lysyi3m/khabar/app/publish"
	"github.com/lysyi3m/khabar/app/rewrite"
	"github.com/lysyi3m/khabar/app/scraper"
	"github.com/lysyi3m/khabar/app/sse"
	"github.com/lysyi3m/khabar/app/tasks"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if c == nil {
		return
	}

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting khabar", "version", c.Version, "port", c.Port, "site_url", c.SiteURL)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", c.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", version, "dirty", dirty)

	users := database.NewUserRepository(db)
	blogs := database.NewBlogRepository(db)
	categories := database.NewCategoryRepository(db)
	rssRepo := database.NewRSSRepository(db)
	carRepo := database.NewCarRepository(db)
	otpRepo := database.NewOTPRepository(db)

	if err := bootstrapAdmin(context.Background(), users, c.AdminEmail, c.AdminPassword); err != nil {
		slog.Error("Failed to create admin account", "error", err)
		os.Exit(1)
	}

	registry := sse.NewRegistry(c.SSEPingIntervalDuration())
	blogService := content.NewService(blogs, registry)

	guard := auth.NewGuard(database.NewLoginAttemptRepository(db), auth.GuardConfig{
		MaxFailures: c.LoginMaxFailures,
		Window:      c.LoginWindowDuration(),
		Cooldown:    c.LoginCooldownDuration(),
	})

	var smsSender auth.SMSSender = auth.LogSender{}
	if c.SMSAPIKey != "" {
		smsSender = auth.NewKavenegarSender(c.SMSAPIKey, c.SMSTemplate)
	} else {
		slog.Warn("SMS sending disabled", "reason", "SMS_API_KEY not set")
	}
	otp := auth.NewOTPService(otpRepo, smsSender, auth.OTPConfig{
		TTL:            c.OTPTTLDuration(),
		ResendInterval: c.OTPResendIntervalDuration(),
		MaxAttempts:    c.OTPMaxAttempts,
		Secret:         c.JWTSecret,
	})

	httpClient := &http.Client{Timeout: 60 * time.Second}

	pipeline := &tasks.RSSPipeline{
		Repo:       rssRepo,
		HTTPClient: httpClient,
		Parser:     feed.NewParser(),
		Filterer:   feed.NewFilterer(),
		Extractor:  feed.NewContentExtractor(),
		Rewriter:   rewrite.New(c.AIBaseURL, c.AIAPIKey, c.AIModel),
		Website:    publish.NewWebsite(blogService),
		Notifier:   registry,
		SiteURL:    c.SiteURL,
		UserAgent:  c.UserAgent,
	}
	if c.TelegramToken != "" {
		telegram, err := publish.NewTelegram(c.TelegramToken, c.TelegramAPIURL, c.TelegramChannel)
		if err != nil {
			slog.Error("Failed to initialize Telegram publisher", "error", err)
		} else {
			pipeline.Telegram = telegram
		}
	} else {
		slog.Warn("Telegram publishing disabled", "reason", "TELEGRAM_TOKEN not set")
	}

	factory := &taskFactory{
		catalog:    feed.NewSourceCatalog(c.SourcesDir),
		rssRepo:    rssRepo,
		categories: categories,
		cars:       carRepo,
		scraper:    scraper.NewCarPriceScraper(httpClient, c.UserAgent),
		guard:      guard,
		otpRepo:    otpRepo,
	}

	scheduler := tasks.NewScheduler(rssRepo, func() tasks.TaskInterface {
		return tasks.NewRSSPassTask(pipeline)
	}, c.SchedulerIntervalDuration(), c.WorkerCount)
	scheduler.Start()

	if err := scheduler.EnqueueTask(factory.SyncSources()); err != nil {
		slog.Warn("Failed to enqueue source sync", "error", err)
	}

	handler := api.NewHandler(api.Deps{
		Users:       users,
		Blogs:       blogs,
		Categories:  categories,
		Menus:       database.NewMenuRepository(db),
		Ads:         database.NewAdRepository(db),
		Settings:    database.NewSettingRepository(db),
		Media:       database.NewMediaRepository(db),
		RSS:         rssRepo,
		Cars:        carRepo,
		BlogService: blogService,
		Tokens:      auth.NewTokenIssuer(c.JWTSecret, c.JWTTTLDuration()),
		Guard:       guard,
		OTP:         otp,
		Registry:    registry,
		Scheduler:   scheduler,
		Tasks:       factory,
		HealthCheck: db.PingContext,
	}, api.Options{
		SiteURL:           c.SiteURL,
		SiteTitle:         "خبر",
		Version:           c.Version,
		UploadsDir:        c.UploadsDir,
		MaxUploadSize:     c.MaxUploadSize,
		CronSecret:        c.CronSecret,
		CookieSecure:      c.CookieSecure,
		SlowJobThreshold:  c.SlowJobThresholdDuration(),
		AllowLocalOrigins: c.Debug,
	})

	// WriteTimeout stays zero so SSE streams are not cut off.
	httpServer := &http.Server{
		Addr:              ":" + c.Port,
		Handler:           api.NewServer(handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	// SSE handlers return only once the registry is closed.
	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	scheduler.Stop()
	slog.Info("Shutdown complete")
}
