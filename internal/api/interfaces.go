// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/session"
)

// FileHandler handles uploaded input files
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// SessionHandler handles loading inputs into a session and inspecting it
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleResetSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleLoadImages(c echo.Context) error
	HandleSetMaxGap(c echo.Context) error
	HandleGetSets(c echo.Context) error
	HandleLoadCorrections(c echo.Context) error
	HandleSetCorrection(c echo.Context) error
	HandleLoadOverrides(c echo.Context) error
	HandleLoadPPK(c echo.Context) error
	HandleGetDiagnostics(c echo.Context) error
}

// PPKHandler handles background interpolation runs
type PPKHandler interface {
	HandleStartRun(c echo.Context) error
	HandleRunStatus(c echo.Context) error
	HandleCancelRun(c echo.Context) error
	HandleRunProgressSocket(c echo.Context) error
}

// ExportHandler handles position output
type ExportHandler interface {
	HandleExportCSV(c echo.Context) error
	HandleExportMsgpack(c echo.Context) error
	HandleSaveExport(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	CreateSession() *session.Session
	GetSession(id string) (*session.Session, bool)
	SessionInfo(id string) (models.SessionInfo, bool)
	ListSessions() []models.SessionInfo
	TouchSession(id string) bool
	DeleteSession(id string) bool
	StartPPKRun(id string, selected []int) (models.PPKRun, error)
	PPKRunStatus(id string) (models.PPKRun, bool)
	CancelPPKRun(id string) error
	WaitPPKRun(ctx context.Context, id string) (models.PPKRun, error)
	CleanupOldSessions(maxAge time.Duration) int
}

var _ SessionManager = (*session.Manager)(nil)
