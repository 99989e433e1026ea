package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/testutil"
)

func TestSessionManager(t *testing.T) {
	m := NewManager(DefaultOptions())
	defer m.Close()

	sess := m.CreateSession()
	got, ok := m.GetSession(sess.ID())
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, err := sess.LoadImagesFromManifest(testutil.WriteFile(t, "images.csv", testutil.ManifestCSV))
	require.NoError(t, err)
	require.NoError(t, sess.LoadPPKFiles(testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)))

	run, ok := m.PPKRunStatus(sess.ID())
	require.True(t, ok)
	assert.Equal(t, models.RunStatusIdle, run.Status)

	run, err = m.StartPPKRun(sess.ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err = m.WaitPPKRun(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusComplete, run.Status)
	assert.Equal(t, 5, run.Total)
	assert.Equal(t, 4, run.Resolved)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 100.0, run.Progress)
	require.NotNil(t, run.CompletedAt)

	info, ok := m.SessionInfo(sess.ID())
	require.True(t, ok)
	require.NotNil(t, info.PPKRun)
	assert.True(t, info.PositionsReady)

	assert.True(t, m.DeleteSession(sess.ID()))
	_, ok = m.GetSession(sess.ID())
	assert.False(t, ok)
	assert.False(t, m.DeleteSession(sess.ID()))
}

func TestManager_RunErrors(t *testing.T) {
	m := NewManager(DefaultOptions())
	defer m.Close()

	_, err := m.StartPPKRun("missing", nil)
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	sess := m.CreateSession()
	_, err = m.StartPPKRun(sess.ID(), nil)
	require.NoError(t, err)

	run, err := m.WaitPPKRun(context.Background(), sess.ID())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusError, run.Status)
	assert.Contains(t, run.Error, models.ErrMissingInput.Error())

	assert.True(t, errors.Is(m.CancelPPKRun(sess.ID()), ErrNoActiveRun))
	assert.True(t, errors.Is(m.CancelPPKRun("missing"), ErrSessionNotFound))
}

func TestManager_CleanupOldSessions(t *testing.T) {
	m := NewManager(DefaultOptions())
	defer m.Close()

	old := m.CreateSession()
	fresh := m.CreateSession()

	m.mu.Lock()
	m.sessions[old.ID()].LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	removed := m.CleanupOldSessions(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, ok := m.GetSession(old.ID())
	assert.False(t, ok)
	_, ok = m.GetSession(fresh.ID())
	assert.True(t, ok)
}

func TestManager_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewManager(DefaultOptions())
	m.maxSessions = 2
	defer m.Close()

	first := m.CreateSession()
	second := m.CreateSession()
	m.mu.Lock()
	m.sessions[first.ID()].LastAccessed = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	third := m.CreateSession()

	_, ok := m.GetSession(first.ID())
	assert.False(t, ok)
	_, ok = m.GetSession(second.ID())
	assert.True(t, ok)
	_, ok = m.GetSession(third.ID())
	assert.True(t, ok)
	assert.Len(t, m.ListSessions(), 2)
}

func TestManager_TouchSession(t *testing.T) {
	m := NewManager(DefaultOptions())
	defer m.Close()

	sess := m.CreateSession()
	m.mu.Lock()
	m.sessions[sess.ID()].LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	assert.True(t, m.TouchSession(sess.ID()))
	assert.False(t, m.TouchSession("missing"))
	assert.Equal(t, 0, m.CleanupOldSessions(30*time.Minute))
}

func TestSessionState_EndRunReleasesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	state := &SessionState{cancel: cancel}

	state.endRun()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Nil(t, state.cancel)

	state.endRun()

	t.Run("after a finished run", func(t *testing.T) {
		m := NewManager(DefaultOptions())
		defer m.Close()

		sess := m.CreateSession()
		_, err := m.StartPPKRun(sess.ID(), nil)
		require.NoError(t, err)
		run, err := m.WaitPPKRun(context.Background(), sess.ID())
		require.NoError(t, err)
		require.Equal(t, models.RunStatusError, run.Status)

		m.mu.Lock()
		defer m.mu.Unlock()
		assert.Nil(t, m.sessions[sess.ID()].cancel)
	})
}
