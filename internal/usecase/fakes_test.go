package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
)

// memStore is an in-memory TaskStore + SessionStore enforcing the same
// transition rules as the Postgres implementation.
type memStore struct {
	mu          sync.Mutex
	nextTask    int64
	nextSession int64
	tasks       map[int64]*domain.Task
	sessions    map[int64]*domain.Session
	history     map[int64][]domain.TaskStatus
}

var (
	_ ports.TaskStore    = (*memStore)(nil)
	_ ports.SessionStore = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		tasks:    map[int64]*domain.Task{},
		sessions: map[int64]*domain.Session{},
		history:  map[int64][]domain.TaskStatus{},
	}
}

func (m *memStore) CreateTask(ctx context.Context, t *domain.Task) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTask++
	t.ID = m.nextTask
	t.Status = domain.StatusPending
	t.CreatedAt = time.Now()
	cp := *t
	m.tasks[t.ID] = &cp
	m.history[t.ID] = []domain.TaskStatus{domain.StatusPending}
	return t.ID, nil
}

func (m *memStore) TransitionTask(ctx context.Context, id int64, status domain.TaskStatus, result map[string]any, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	switch {
	case status == domain.StatusRunning:
		if t.Status != domain.StatusPending {
			return fmt.Errorf("task %d: cannot transition %s -> %s", id, t.Status, status)
		}
	case status.Terminal():
		if t.Status.Terminal() {
			if t.Status == status {
				return nil
			}
			return fmt.Errorf("task %d: cannot transition %s -> %s", id, t.Status, status)
		}
	default:
		return fmt.Errorf("task %d: %q is not a valid transition target", id, status)
	}
	t.Status = status
	if status.Terminal() {
		t.Result = result
		t.Error = errMsg
		now := time.Now()
		t.CompletedAt = &now
	}
	m.history[id] = append(m.history[id], status)
	return nil
}

func (m *memStore) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ListSessionTasks(ctx context.Context, sessionID int64) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if t.SessionID == sessionID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) transitions(id int64) []domain.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TaskStatus(nil), m.history[id]...)
}

func (m *memStore) CreateSession(ctx context.Context, s *domain.Session) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSession++
	s.ID = m.nextSession
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.sessions[s.ID] = &cp
	return s.ID, nil
}

func (m *memStore) GetSession(ctx context.Context, id int64) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListUserSessions(ctx context.Context, userID int64) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) DeleteSession(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	for tid, t := range m.tasks {
		if t.SessionID == id {
			delete(m.tasks, tid)
		}
	}
	return nil
}

// memQueue is a channel-backed Queue.
type memQueue struct {
	mu          sync.Mutex
	ch          chan domain.Dispatch
	nextID      int
	acked       []string
	failEnqueue bool
}

var _ ports.Queue = (*memQueue)(nil)

func newMemQueue(capacity int) *memQueue {
	return &memQueue{ch: make(chan domain.Dispatch, capacity)}
}

func (q *memQueue) Enqueue(ctx context.Context, d domain.Dispatch) (string, error) {
	if q.failEnqueue {
		return "", errors.New("queue unavailable")
	}
	q.mu.Lock()
	q.nextID++
	id := fmt.Sprintf("%d-0", q.nextID)
	q.mu.Unlock()
	q.ch <- d
	return id, nil
}

func (q *memQueue) Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Dispatch, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case d := <-q.ch:
		q.mu.Lock()
		q.nextID++
		id := fmt.Sprintf("%d-0", q.nextID)
		q.mu.Unlock()
		return &d, id, nil
	case <-time.After(block):
		return nil, "", nil
	}
}

func (q *memQueue) Ack(ctx context.Context, streamID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, streamID)
	return nil
}

// execFunc adapts a function to ports.Executor.
type execFunc func(ctx context.Context, action domain.Action, params domain.Params) domain.Outcome

func (f execFunc) Execute(ctx context.Context, action domain.Action, params domain.Params) domain.Outcome {
	return f(ctx, action, params)
}
