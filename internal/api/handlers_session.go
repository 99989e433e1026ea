// handlers_session.go - Session loading and inspection handlers
package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/parser"
	"github.com/uav-shift/backend/internal/session"
	"github.com/uav-shift/backend/internal/storage"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
	scanner    session.DirScanner
	imageRoot  string
}

// NewSessionHandler creates a new session handler instance. Folder scans are
// limited to imageRoot when it is set.
func NewSessionHandler(store storage.Store, sessionMgr SessionManager, scanner session.DirScanner, imageRoot string) SessionHandler {
	return &SessionHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
		scanner:    scanner,
		imageRoot:  imageRoot,
	}
}

// lookupSession resolves :id and marks the session as in use.
func lookupSession(mgr SessionManager, c echo.Context) (*session.Session, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	sess, ok := mgr.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	mgr.TouchSession(id)
	return sess, nil
}

// inputPath resolves an uploaded file and checks that it holds the wanted kind.
func inputPath(store storage.Store, fileID string, want models.InputKind) (string, error) {
	if fileID == "" {
		return "", NewValidationError("fileId")
	}
	info, err := store.Get(fileID)
	if err != nil {
		return "", NewNotFoundError("file", fileID)
	}
	if info.Kind != want {
		return "", NewBadRequestError(
			fmt.Sprintf("file %s is %s input, expected %s", info.Name, info.Kind, want), nil)
	}
	path, err := store.GetFilePath(fileID)
	if err != nil {
		return "", FromDomainError(err)
	}
	return path, nil
}

// HandleCreateSession creates an empty session
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	sess := h.sessionMgr.CreateSession()
	return c.JSON(http.StatusCreated, sess.Summary())
}

// HandleListSessions returns all session summaries
func (h *SessionHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionMgr.ListSessions())
}

// HandleGetSession returns a session summary including its PPK run
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	info, ok := h.sessionMgr.SessionInfo(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	h.sessionMgr.TouchSession(id)
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteSession cancels any run and drops the session
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if !h.sessionMgr.DeleteSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleResetSession drops all loaded data
func (h *SessionHandlerImpl) HandleResetSession(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}
	if err := sess.Reset(); err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess.Summary())
}

// HandleSessionKeepAlive extends the session's lifetime
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessionMgr.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type loadImagesRequest struct {
	FileID    string `json:"fileId"`
	Directory string `json:"directory"`
}

// HandleLoadImages loads images from an uploaded manifest or a folder scan
func (h *SessionHandlerImpl) HandleLoadImages(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}

	var req loadImagesRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	var sets []models.SetSummary
	switch {
	case req.FileID != "" && req.Directory != "":
		return NewBadRequestError("give either fileId or directory, not both", nil)
	case req.FileID != "":
		path, err := inputPath(h.store, req.FileID, models.InputImages)
		if err != nil {
			return err
		}
		sets, err = sess.LoadImagesFromManifest(path)
		if err != nil {
			return FromDomainError(err)
		}
	case req.Directory != "":
		dir, err := h.allowedDir(req.Directory)
		if err != nil {
			return err
		}
		if h.scanner == nil {
			return NewBadRequestError("folder scanning is not available", nil)
		}
		sets, err = sess.LoadImagesFromDir(c.Request().Context(), h.scanner, dir)
		if err != nil {
			return FromDomainError(err)
		}
	default:
		return NewValidationError("fileId")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sets":        sets,
		"summary":     sess.Summary(),
		"diagnostics": sess.Diagnostics(),
	})
}

func (h *SessionHandlerImpl) allowedDir(dir string) (string, error) {
	if h.imageRoot == "" {
		return filepath.Clean(dir), nil
	}
	root, err := filepath.Abs(h.imageRoot)
	if err != nil {
		return "", NewInternalError("invalid image root", err)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewBadRequestError("directory is outside the image root", nil)
	}
	return dir, nil
}

type maxGapRequest struct {
	Minutes int `json:"minutes"`
}

// HandleSetMaxGap changes the gap threshold and re-segments
func (h *SessionHandlerImpl) HandleSetMaxGap(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}
	var req maxGapRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	sets, err := sess.SetMaxGap(req.Minutes)
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"maxGapMinutes": req.Minutes,
		"sets":          sets,
	})
}

// HandleGetSets returns the set summary table
func (h *SessionHandlerImpl) HandleGetSets(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.SetSummaries())
}

type fileRequest struct {
	FileID  string   `json:"fileId"`
	FileIDs []string `json:"fileIds"`
}

func (r fileRequest) ids() []string {
	if len(r.FileIDs) > 0 {
		return r.FileIDs
	}
	if r.FileID != "" {
		return []string{r.FileID}
	}
	return nil
}

type matchReport struct {
	Matched     int                 `json:"matched"`
	Unmatched   []int               `json:"unmatched"`
	UnusedIDs   []string            `json:"unusedIds"`
	Sets        []models.SetSummary `json:"sets"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// HandleLoadCorrections loads a correction CSV and reports the matching
func (h *SessionHandlerImpl) HandleLoadCorrections(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}
	var req fileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	path, err := inputPath(h.store, req.FileID, models.InputCorrections)
	if err != nil {
		return err
	}

	res, err := sess.LoadCorrectionsFile(path)
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, matchReport{
		Matched:     res.Matched(),
		Unmatched:   res.Unmatched,
		UnusedIDs:   res.UnusedIDs,
		Sets:        sess.SetSummaries(),
		Diagnostics: res.Diagnostics,
	})
}

// HandleSetCorrection sets a manual delta on one set (0-based :index)
func (h *SessionHandlerImpl) HandleSetCorrection(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewValidationError("index")
	}
	var d models.Delta
	if err := c.Bind(&d); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := sess.SetCorrection(index, d); err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess.SetSummaries())
}

// HandleLoadOverrides applies a YAML overrides file
func (h *SessionHandlerImpl) HandleLoadOverrides(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}
	var req fileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	path, err := inputPath(h.store, req.FileID, models.InputOverrides)
	if err != nil {
		return err
	}
	overrides, err := parser.ParseOverrides(path)
	if err != nil {
		return FromDomainError(err)
	}
	if err := sess.ApplyOverrides(overrides); err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess.SetSummaries())
}

// HandleLoadPPK loads one or more PPK logs as the session's track
func (h *SessionHandlerImpl) HandleLoadPPK(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}
	var req fileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	ids := req.ids()
	if len(ids) == 0 {
		return NewValidationError("fileId")
	}
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		path, err := inputPath(h.store, id, models.InputPPK)
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}
	if err := sess.LoadPPKFiles(paths...); err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess.Summary())
}

// HandleGetDiagnostics returns every skipped record and warning
func (h *SessionHandlerImpl) HandleGetDiagnostics(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}
	diags := sess.Diagnostics()
	if kind := c.QueryParam("kind"); kind != "" {
		filtered := make([]models.Diagnostic, 0, len(diags))
		for _, d := range diags {
			if string(d.Kind) == kind {
				filtered = append(filtered, d)
			}
		}
		diags = filtered
	}
	return c.JSON(http.StatusOK, diags)
}
