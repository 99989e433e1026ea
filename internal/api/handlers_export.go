// handlers_export.go - Position export handlers
package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uav-shift/backend/internal/export"
	"github.com/uav-shift/backend/internal/models"
)

// MIMEMsgpack is the content type of msgpack responses
const MIMEMsgpack = "application/x-msgpack"

// FormatFunc returns the CSV layout for a correction mode
type FormatFunc func(mode models.CorrectionMode) export.Format

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	sessionMgr SessionManager
	format     FormatFunc
	exportDir  string
}

// NewExportHandler creates a new export handler instance. A nil format uses
// the default precision of each mode. An empty exportDir disables saving
// exports on the server.
func NewExportHandler(sessionMgr SessionManager, format FormatFunc, exportDir string) ExportHandler {
	if format == nil {
		format = export.FormatFor
	}
	return &ExportHandlerImpl{
		sessionMgr: sessionMgr,
		format:     format,
		exportDir:  exportDir,
	}
}

func (h *ExportHandlerImpl) positions(c echo.Context) (models.CorrectionMode, []models.ResolvedPosition, error) {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return "", nil, err
	}
	mode, err := parseModeParam(c.QueryParam("mode"))
	if err != nil {
		return "", nil, err
	}
	sets, err := parseSetsParam(c.QueryParam("sets"))
	if err != nil {
		return "", nil, err
	}
	rows, err := sess.Positions(mode, sets)
	if err != nil {
		return "", nil, FromDomainError(err)
	}
	return mode, rows, nil
}

// HandleExportCSV downloads the positions as CSV. ?mode=delta|ppk, and in
// delta mode ?sets=0,2 picks the sets.
func (h *ExportHandlerImpl) HandleExportCSV(c echo.Context) error {
	mode, rows, err := h.positions(c)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="positions_%s.csv"`, mode))
	res.WriteHeader(http.StatusOK)
	return export.WriteCSV(res, rows, h.format(mode))
}

// HandleExportMsgpack returns the positions msgpack-encoded
func (h *ExportHandlerImpl) HandleExportMsgpack(c echo.Context) error {
	_, rows, err := h.positions(c)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, MIMEMsgpack)
	res.WriteHeader(http.StatusOK)
	return export.WriteMsgpack(res, rows)
}

// SavedExport describes a position file written to the export directory
type SavedExport struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// HandleSaveExport writes the positions into the export directory instead of
// the response. Takes the same ?mode and ?sets as the download, plus
// ?format=csv|msgpack.
func (h *ExportHandlerImpl) HandleSaveExport(c echo.Context) error {
	if h.exportDir == "" {
		return NewBadRequestError("saving exports is not configured", nil)
	}
	format := c.QueryParam("format")
	switch format {
	case "":
		format = "csv"
	case "csv", "msgpack":
	default:
		return NewBadRequestError(fmt.Sprintf("unknown format %q", format), nil)
	}

	mode, rows, err := h.positions(c)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s_positions_%s_%s.%s",
		shortSessionID(c.Param("id")), mode, time.Now().UTC().Format("20060102T150405"), format)
	path := filepath.Join(h.exportDir, name)
	if format == "msgpack" {
		err = export.WriteMsgpackFile(path, rows)
	} else {
		err = export.WriteCSVFile(path, rows, h.format(mode))
	}
	if err != nil {
		return NewInternalError("failed to write export", err)
	}

	c.Logger().Infof("saved %d positions to %s", len(rows), path)
	return c.JSON(http.StatusCreated, SavedExport{Name: name, Rows: len(rows)})
}

func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
