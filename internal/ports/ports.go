package ports

import (
	"context"
	"time"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
)

// TaskStore is the durable record of every task's lifecycle.
type TaskStore interface {
	// CreateTask allocates identity and persists the initial pending state.
	CreateTask(ctx context.Context, t *domain.Task) (int64, error)
	// TransitionTask updates status and optionally result/error. A terminal
	// status sets completedAt; repeating the same terminal write is a no-op.
	TransitionTask(ctx context.Context, id int64, status domain.TaskStatus, result map[string]any, errMsg string) error
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	ListSessionTasks(ctx context.Context, sessionID int64) ([]domain.Task, error)
}

// SessionStore is the engine's view of the session records owned by the
// surrounding CRUD layer.
type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.Session) (int64, error)
	GetSession(ctx context.Context, id int64) (*domain.Session, error)
	ListUserSessions(ctx context.Context, userID int64) ([]domain.Session, error)
	DeleteSession(ctx context.Context, id int64) error
}

// Queue carries dispatch messages from submission to the execution workers.
type Queue interface {
	Enqueue(ctx context.Context, d domain.Dispatch) (string, error)
	Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Dispatch, string /*streamID*/, error)
	Ack(ctx context.Context, streamID string) error
}

// Executor performs one automation action and reports a structured outcome.
// Implementations never return an error: every failure mode is folded into
// the outcome so the dispatcher has a single terminal-transition path.
type Executor interface {
	Execute(ctx context.Context, action domain.Action, params domain.Params) domain.Outcome
}
