// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/uav-shift/backend/internal/session"
	"github.com/uav-shift/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store            storage.Store
	SessionMgr       SessionManager
	Scanner          session.DirScanner
	ImageRoot        string
	Format           FormatFunc
	ExportDir        string
	ProgressInterval time.Duration
	Logger           *log.Logger
	Version          string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Files   FileHandler
	Session SessionHandler
	PPK     PPKHandler
	Export  ExportHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	ws := NewWebSocketHandler(deps.SessionMgr, deps.ProgressInterval, deps.Logger)
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.SessionMgr),
		Files:   NewFileHandler(deps.Store),
		Session: NewSessionHandler(deps.Store, deps.SessionMgr, deps.Scanner, deps.ImageRoot),
		PPK:     NewPPKHandler(deps.SessionMgr, ws),
		Export:  NewExportHandler(deps.SessionMgr, deps.Format, deps.ExportDir),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Uploaded input files
	files := e.Group("/api/files")
	files.POST("", handlers.Files.HandleUploadFile)
	files.GET("", handlers.Files.HandleListFiles)
	files.GET("/:id", handlers.Files.HandleGetFile)
	files.DELETE("/:id", handlers.Files.HandleDeleteFile)

	// Sessions
	sessions := e.Group("/api/sessions")
	sessions.POST("", handlers.Session.HandleCreateSession)
	sessions.GET("", handlers.Session.HandleListSessions)
	sessions.GET("/:id", handlers.Session.HandleGetSession)
	sessions.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessions.POST("/:id/reset", handlers.Session.HandleResetSession)
	sessions.POST("/:id/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessions.POST("/:id/images", handlers.Session.HandleLoadImages)
	sessions.PUT("/:id/max-gap", handlers.Session.HandleSetMaxGap)
	sessions.GET("/:id/sets", handlers.Session.HandleGetSets)
	sessions.POST("/:id/corrections", handlers.Session.HandleLoadCorrections)
	sessions.PUT("/:id/sets/:index/correction", handlers.Session.HandleSetCorrection)
	sessions.POST("/:id/overrides", handlers.Session.HandleLoadOverrides)
	sessions.POST("/:id/ppk", handlers.Session.HandleLoadPPK)
	sessions.GET("/:id/diagnostics", handlers.Session.HandleGetDiagnostics)

	// PPK interpolation runs
	sessions.POST("/:id/ppk/run", handlers.PPK.HandleStartRun)
	sessions.GET("/:id/ppk/run", handlers.PPK.HandleRunStatus)
	sessions.DELETE("/:id/ppk/run", handlers.PPK.HandleCancelRun)
	sessions.GET("/:id/ppk/ws", handlers.PPK.HandleRunProgressSocket)

	// Export
	sessions.GET("/:id/export", handlers.Export.HandleExportCSV)
	sessions.POST("/:id/export", handlers.Export.HandleSaveExport)
	sessions.GET("/:id/positions/msgpack", handlers.Export.HandleExportMsgpack)
}

// MiddlewareConfig selects the optional middleware
type MiddlewareConfig struct {
	EnableCORS     bool
	AllowOrigins   string
	RequestLogging bool
	BodyLimit      string
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())

	if cfg.RequestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
			Skipper: func(c echo.Context) bool {
				// Polling endpoints would flood the log
				path := c.Request().URL.Path
				return path == "/api/health" ||
					(c.Request().Method == http.MethodGet && strings.HasSuffix(path, "/ppk/run"))
			},
		}))
	}

	if cfg.EnableCORS {
		origins := []string{"*"}
		if cfg.AllowOrigins != "" {
			origins = strings.Split(cfg.AllowOrigins, ",")
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
}
