package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/uav-shift/backend/internal/api"
	"github.com/uav-shift/backend/internal/config"
	"github.com/uav-shift/backend/internal/imagesource"
	"github.com/uav-shift/backend/internal/logging"
	"github.com/uav-shift/backend/internal/session"
	"github.com/uav-shift/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := os.Getenv("SHIFT_CONFIG")
	if configPath == "" {
		// Get the executable's directory for config resolution
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(filepath.Dir(exePath), "shift-server.config.xml")
	}

	// Load XML configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("server", cfg.Advanced.LogLevel)

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatalf("failed to create directories: %v", err)
	}

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		logger.Fatalf("failed to initialize storage: %v", err)
	}

	// Initialize session manager
	sessionLog := logging.New("session", cfg.Advanced.LogLevel)
	sessionMgr := session.NewManager(cfg.SessionOptions(sessionLog))
	defer sessionMgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		interval := time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessionMgr.CleanupOldSessions(time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute); n > 0 {
					logger.Infof("removed %d idle sessions", n)
				}
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger

	api.SetupMiddleware(e, api.MiddlewareConfig{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
	})

	// Compression middleware
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Request().URL.Path, "/ws")
		},
	}))

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:            fileStore,
		SessionMgr:       sessionMgr,
		Scanner:          imagesource.NewScanner(logging.New("imagesource", cfg.Advanced.LogLevel)),
		ImageRoot:        cfg.Storage.ImageRoot,
		Format:           cfg.ExportFormat,
		ExportDir:        cfg.Storage.ExportDirectory,
		ProgressInterval: time.Duration(cfg.Advanced.ProgressIntervalMs) * time.Millisecond,
		Logger:           logging.New("ws", cfg.Advanced.LogLevel),
		Version:          Version,
	}))

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Survey Geotag Shift Server                      ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Uploads:   %-46s║\n", cfg.GetUploadDir())
	fmt.Printf("║  Max gap:   %-46s║\n", fmt.Sprintf("%d min", cfg.Processing.MaxGapMinutes))
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
