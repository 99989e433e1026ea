// handlers_ppk.go - Background PPK interpolation run handlers
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/uav-shift/backend/internal/models"
)

// PPKHandlerImpl implements the PPKHandler interface
type PPKHandlerImpl struct {
	sessionMgr SessionManager
	ws         *WebSocketHandler
}

// NewPPKHandler creates a new PPK run handler instance
func NewPPKHandler(sessionMgr SessionManager, ws *WebSocketHandler) PPKHandler {
	return &PPKHandlerImpl{
		sessionMgr: sessionMgr,
		ws:         ws,
	}
}

type startRunRequest struct {
	Sets []int `json:"sets"`
}

// HandleStartRun starts interpolation for the selected sets (all when empty)
func (h *PPKHandlerImpl) HandleStartRun(c echo.Context) error {
	sess, err := lookupSession(h.sessionMgr, c)
	if err != nil {
		return err
	}

	var req startRunRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid JSON body", err)
		}
	}
	if len(req.Sets) == 0 {
		if req.Sets, err = parseSetsParam(c.QueryParam("sets")); err != nil {
			return err
		}
	}

	run, err := h.sessionMgr.StartPPKRun(sess.ID(), req.Sets)
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusAccepted, run)
}

// HandleRunStatus returns the progress of the latest run
func (h *PPKHandlerImpl) HandleRunStatus(c echo.Context) error {
	id := c.Param("id")
	run, ok := h.sessionMgr.PPKRunStatus(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	h.sessionMgr.TouchSession(id)
	return c.JSON(http.StatusOK, run)
}

// HandleCancelRun stops the running interpolation
func (h *PPKHandlerImpl) HandleCancelRun(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessionMgr.CancelPPKRun(id); err != nil {
		return FromDomainError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// HandleRunProgressSocket streams run progress over a WebSocket
func (h *PPKHandlerImpl) HandleRunProgressSocket(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.sessionMgr.GetSession(id); !ok {
		return NewNotFoundError("session", id)
	}
	return h.ws.StreamRunProgress(c, id)
}

// parseSetsParam parses "0,2,5" into set indices. Empty means all sets.
func parseSetsParam(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, NewValidationError("sets")
		}
		out = append(out, n)
	}
	return out, nil
}

// parseModeParam parses ?mode=, defaulting to delta.
func parseModeParam(s string) (models.CorrectionMode, error) {
	if s == "" {
		return models.ModeDelta, nil
	}
	mode, err := models.ParseCorrectionMode(s)
	if err != nil {
		return "", NewValidationError("mode")
	}
	return mode, nil
}
