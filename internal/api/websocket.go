package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/uav-shift/backend/internal/logging"
	"github.com/uav-shift/backend/internal/models"
)

// WebSocket message types for the PPK run progress protocol
const (
	// Client -> Server messages
	MsgTypeCancel = "run:cancel"
	MsgTypePing   = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeCancelled = "cancelled"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope of every WebSocket message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// DefaultProgressInterval is how often run status is polled for a socket
const DefaultProgressInterval = 250 * time.Millisecond

// WebSocketHandler pushes PPK run progress to connected clients
type WebSocketHandler struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
	interval   time.Duration
	log        *log.Logger
}

// NewWebSocketHandler creates a progress socket handler polling at interval
func NewWebSocketHandler(sessionMgr SessionManager, interval time.Duration, logger *log.Logger) *WebSocketHandler {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	if logger == nil {
		logger = logging.Discard("ws")
	}
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		interval: interval,
		log:      logger,
	}
}

// StreamRunProgress upgrades the connection and sends a progress message
// whenever the session's run changes, then a final complete, cancelled or
// error message. Clients may send run:cancel to stop the run.
func (wsh *WebSocketHandler) StreamRunProgress(c echo.Context, sessionID string) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	wsh.log.Debugf("client connected for session %s", sessionID)

	var writeMu sync.Mutex
	send := func(msg WSMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		msg.ID = sessionID
		msg.Timestamp = time.Now().UnixMilli()
		if err := ws.WriteJSON(msg); err != nil {
			wsh.log.Debugf("failed to send message: %v", err)
		}
	}
	sendError := func(message, code string) {
		send(WSMessage{Type: MsgTypeError, Payload: mustJSON(WSErrorResponse{Message: message, Code: code})})
	}

	send(WSMessage{Type: MsgTypeConnected})

	// Reader loop: control messages from the client
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsh.log.Debugf("connection error: %v", err)
				}
				return
			}
			switch msg.Type {
			case MsgTypePing:
				send(WSMessage{Type: MsgTypePong})
			case MsgTypeCancel:
				if err := wsh.sessionMgr.CancelPPKRun(sessionID); err != nil {
					sendError(err.Error(), FromDomainError(err).Code)
				}
			default:
				sendError("Unknown message type: "+msg.Type, "INVALID_TYPE")
			}
		}
	}()

	ticker := time.NewTicker(wsh.interval)
	defer ticker.Stop()

	var last *models.PPKRun
	for {
		run, ok := wsh.sessionMgr.PPKRunStatus(sessionID)
		if !ok {
			sendError("session closed", "NOT_FOUND")
			return nil
		}
		if last == nil || run.Status != last.Status || run.Processed != last.Processed {
			send(WSMessage{Type: MsgTypeProgress, Payload: mustJSON(run)})
			last = &run
		}
		if run.Done() {
			send(WSMessage{Type: finalMessageType(run.Status), Payload: mustJSON(run)})
			return nil
		}

		select {
		case <-closed:
			wsh.log.Debugf("client disconnected from session %s", sessionID)
			return nil
		case <-ticker.C:
		}
	}
}

func finalMessageType(status models.RunStatus) string {
	switch status {
	case models.RunStatusComplete:
		return MsgTypeComplete
	case models.RunStatusCancelled:
		return MsgTypeCancelled
	}
	return MsgTypeError
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
