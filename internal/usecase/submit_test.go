package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
)

func newSession(t *testing.T, store *memStore, userID int64, config domain.Params) int64 {
	t.Helper()
	id, err := store.CreateSession(context.Background(), &domain.Session{
		UserID:        userID,
		Name:          "test session",
		Status:        domain.SessionStopped,
		BrowserConfig: config,
	})
	require.NoError(t, err)
	return id
}

func TestSubmitUnknownAction(t *testing.T) {
	store := newMemStore()
	sub := Submitter{Tasks: store, Sessions: store, Q: newMemQueue(1)}

	_, err := sub.Submit(context.Background(), 1, 1, "teleport", nil)
	assert.ErrorContains(t, err, `unknown action "teleport"`)
}

func TestSubmitSessionNotFound(t *testing.T) {
	store := newMemStore()
	sub := Submitter{Tasks: store, Sessions: store, Q: newMemQueue(1)}

	_, err := sub.Submit(context.Background(), 1, 42, domain.ActionNavigate, nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSubmitForeignSession(t *testing.T) {
	store := newMemStore()
	sessionID := newSession(t, store, 1, nil)
	sub := Submitter{Tasks: store, Sessions: store, Q: newMemQueue(1)}

	_, err := sub.Submit(context.Background(), 2, sessionID, domain.ActionNavigate, nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSubmitCreatesPendingTaskAndEnqueues(t *testing.T) {
	store := newMemStore()
	q := newMemQueue(1)
	sessionID := newSession(t, store, 1, nil)
	sub := Submitter{Tasks: store, Sessions: store, Q: q}

	params := domain.Params{"url": "https://example.com"}
	id, err := sub.Submit(context.Background(), 1, sessionID, domain.ActionNavigate, params)
	require.NoError(t, err)

	task, err := store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Nil(t, task.Result)
	assert.Empty(t, task.Error)
	assert.Nil(t, task.CompletedAt)

	d := <-q.ch
	assert.Equal(t, id, d.TaskID)
	assert.Equal(t, sessionID, d.SessionID)
	assert.Equal(t, domain.ActionNavigate, d.Action)
	assert.Equal(t, params, d.Parameters)
}

func TestSubmitEnqueueFailureFailsTask(t *testing.T) {
	store := newMemStore()
	q := newMemQueue(1)
	q.failEnqueue = true
	sessionID := newSession(t, store, 1, nil)
	sub := Submitter{Tasks: store, Sessions: store, Q: q}

	_, err := sub.Submit(context.Background(), 1, sessionID, domain.ActionNavigate, nil)
	require.Error(t, err)

	// The record exists but is failed, not stranded in pending.
	task, err := store.GetTask(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, task.Status)
	assert.Contains(t, task.Error, "failed to enqueue")
}
