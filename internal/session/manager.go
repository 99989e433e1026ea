package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/uav-shift/backend/internal/logging"
	"github.com/uav-shift/backend/internal/models"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep idle sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// Manager holds the server's sessions and their background PPK runs.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	opts        Options
	log         *log.Logger
	maxSessions int
}

// SessionState is a session plus the bookkeeping of its current PPK run.
type SessionState struct {
	Session      *Session
	Run          *models.PPKRun
	cancel       context.CancelFunc
	done         chan struct{}
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)
}

func (st *SessionState) running() bool {
	return st.Run != nil && st.Run.Status == models.RunStatusRunning
}

// endRun releases the run's context once the run has finished
func (st *SessionState) endRun() {
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
}

// NewManager creates a session manager. Every session is created with opts.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard("session")
	}
	opts.Logger = logger
	return &Manager{
		sessions:    make(map[string]*SessionState),
		opts:        opts,
		log:         logger,
		maxSessions: MaxSessions,
	}
}

// CreateSession registers a new empty session.
func (m *Manager) CreateSession() *Session {
	m.cleanupOldSessionsIfNeeded()

	id := uuid.New().String()
	sess := New(id, m.opts)

	m.mu.Lock()
	m.sessions[id] = &SessionState{
		Session:      sess,
		LastAccessed: time.Now(),
	}
	m.mu.Unlock()

	m.log.Infof("created session %s", shortID(id))
	return sess
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session, true
}

// ListSessions returns the summaries of all sessions.
func (m *Manager) ListSessions() []models.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.SessionInfo, 0, len(m.sessions))
	for _, state := range m.sessions {
		out = append(out, m.infoLocked(state))
	}
	return out
}

// SessionInfo returns a session summary including its PPK run.
func (m *Manager) SessionInfo(id string) (models.SessionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return models.SessionInfo{}, false
	}
	return m.infoLocked(state), true
}

func (m *Manager) infoLocked(state *SessionState) models.SessionInfo {
	info := state.Session.Summary()
	if state.Run != nil {
		run := *state.Run
		info.PPKRun = &run
	}
	return info
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// DeleteSession cancels any run and releases the session.
func (m *Manager) DeleteSession(id string) bool {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.release(id, state)
	return true
}

func (m *Manager) release(id string, state *SessionState) {
	if state.cancel != nil {
		state.cancel()
	}
	if err := state.Session.Close(); err != nil {
		m.log.Warnf("close session %s: %v", shortID(id), err)
	}
}

// StartPPKRun interpolates the images of the selected sets (nil means all)
// in a background goroutine. A session runs at most one interpolation at a
// time.
func (m *Manager) StartPPKRun(id string, selected []int) (models.PPKRun, error) {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return models.PPKRun{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if state.running() {
		m.mu.Unlock()
		return models.PPKRun{}, models.ErrRunInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	state.Run = &models.PPKRun{
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}
	state.cancel = cancel
	state.done = make(chan struct{})
	state.LastAccessed = time.Now()
	run := *state.Run
	done := state.done
	m.mu.Unlock()

	go m.runPPK(ctx, id, state.Session, selected, done)

	return run, nil
}

func (m *Manager) runPPK(ctx context.Context, id string, sess *Session, selected []int, done chan struct{}) {
	defer close(done)
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("PPK run %s: panic recovered: %v", shortID(id), r)
			m.updateRunError(id, fmt.Sprintf("interpolation panicked: %v", r))
		}
	}()

	start := time.Now()
	m.log.Infof("PPK run %s: starting", shortID(id))

	result, err := sess.Interpolate(ctx, selected, func(processed, total int) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if state, ok := m.sessions[id]; ok && state.Run != nil {
			state.Run.Processed = processed
			state.Run.Total = total
			if total > 0 {
				state.Run.Progress = float64(processed) / float64(total) * 100
			}
		}
	})
	if err != nil {
		m.log.Errorf("PPK run %s: %v", shortID(id), err)
		m.updateRunError(id, err.Error())
		return
	}

	elapsed := time.Since(start)

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok || state.Run == nil {
		return
	}
	now := time.Now()
	state.Run.Processed = result.Processed
	state.Run.Total = result.Total
	state.Run.Resolved = len(result.Positions)
	state.Run.Skipped = len(result.Diagnostics)
	state.Run.CompletedAt = &now
	state.Run.ProcessingTimeMs = elapsed.Milliseconds()
	state.endRun()
	if result.Cancelled {
		state.Run.Status = models.RunStatusCancelled
		m.log.Infof("PPK run %s: cancelled after %d of %d images", shortID(id), result.Processed, result.Total)
		return
	}
	state.Run.Status = models.RunStatusComplete
	state.Run.Progress = 100
	m.log.Infof("PPK run %s: resolved %d of %d images in %s", shortID(id), len(result.Positions), result.Total, elapsed.Round(time.Millisecond))
}

func (m *Manager) updateRunError(id, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok || state.Run == nil {
		return
	}
	now := time.Now()
	state.Run.Status = models.RunStatusError
	state.Run.Error = reason
	state.Run.CompletedAt = &now
	state.endRun()
}

// PPKRunStatus returns a snapshot of the session's latest run. A session
// that never ran reports RunStatusIdle.
func (m *Manager) PPKRunStatus(id string) (models.PPKRun, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return models.PPKRun{}, false
	}
	if state.Run == nil {
		return models.PPKRun{Status: models.RunStatusIdle}, true
	}
	return *state.Run, true
}

// CancelPPKRun asks the running interpolation to stop. The run finishes
// with RunStatusCancelled and its partial result is discarded.
func (m *Manager) CancelPPKRun(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if !state.running() || state.cancel == nil {
		return ErrNoActiveRun
	}
	state.cancel()
	return nil
}

// WaitPPKRun blocks until the session's current run stops or ctx is done.
func (m *Manager) WaitPPKRun(ctx context.Context, id string) (models.PPKRun, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	var done chan struct{}
	if ok {
		done = state.done
	}
	m.mu.RUnlock()

	if !ok {
		return models.PPKRun{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return models.PPKRun{}, ctx.Err()
		}
	}
	run, _ := m.PPKRunStatus(id)
	return run, nil
}

// cleanupOldSessionsIfNeeded removes idle sessions if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.maxSessions {
		return
	}

	// Delete least recently used idle sessions until below the limit
	toFree := len(m.sessions) - m.maxSessions + 1
	for ; toFree > 0; toFree-- {
		var oldestID string
		var oldest *SessionState
		for id, state := range m.sessions {
			if state.running() {
				continue
			}
			if oldest == nil || state.LastAccessed.Before(oldest.LastAccessed) {
				oldestID, oldest = id, state
			}
		}
		if oldest == nil {
			return
		}
		delete(m.sessions, oldestID)
		m.release(oldestID, oldest)
		m.log.Infof("cleaned up old session %s to free memory", shortID(oldestID))
	}
}

// CleanupOldSessions removes sessions idle for longer than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow
// and sessions with a running interpolation.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, state := range m.sessions {
		if state.running() {
			continue
		}
		// Don't clean up sessions that are actively being used
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			m.release(id, state)
			removed++
			m.log.Infof("cleaned up aged session %s (last accessed: %s ago)",
				shortID(id), now.Sub(state.LastAccessed).Round(time.Second))
		}
	}
	return removed
}

// Close cancels all runs and releases every session.
func (m *Manager) Close() {
	m.mu.Lock()
	states := m.sessions
	m.sessions = make(map[string]*SessionState)
	m.mu.Unlock()

	for id, state := range states {
		m.release(id, state)
	}
}

// Errors returned by the manager.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoActiveRun     = errors.New("no active PPK run")
)
