package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
)

var (
	_ ports.TaskStore    = (*Store)(nil)
	_ ports.SessionStore = (*Store)(nil)
)

// Store persists sessions and the full task lifecycle in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func Connect(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	log.Ctx(ctx).Info().Msg("connected to postgres")
	return NewStore(pool), nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	user_id BIGINT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'stopped',
	browser_config JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,
	action TEXT NOT NULL,
	parameters JSONB,
	status TEXT NOT NULL DEFAULT 'pending',
	result JSONB,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS tasks_session_id_idx ON tasks (session_id);
`

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Ctx(ctx).Info().Msg("postgres schema ready")
	return nil
}

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) (int64, error) {
	cfg, err := marshalParams(sess.BrowserConfig)
	if err != nil {
		return 0, err
	}
	err = s.Pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id, name, status, browser_config)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		sess.UserID, sess.Name, string(sess.Status), cfg,
	).Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	return sess.ID, nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (*domain.Session, error) {
	var (
		sess domain.Session
		cfg  []byte
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, name, status, browser_config, created_at, updated_at
		FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.Status, &cfg, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session %d: %w", id, err)
	}
	sess.BrowserConfig = unmarshalParams(ctx, cfg)
	return &sess, nil
}

func (s *Store) ListUserSessions(ctx context.Context, userID int64) ([]domain.Session, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, name, status, browser_config, created_at, updated_at
		FROM sessions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var (
			sess domain.Session
			cfg  []byte
		)
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.Status, &cfg, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.BrowserConfig = unmarshalParams(ctx, cfg)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes the session; its tasks go with it via the foreign
// key cascade.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) CreateTask(ctx context.Context, t *domain.Task) (int64, error) {
	params, err := marshalParams(t.Parameters)
	if err != nil {
		return 0, err
	}
	t.Status = domain.StatusPending
	err = s.Pool.QueryRow(ctx, `
		INSERT INTO tasks (session_id, user_id, action, parameters, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		t.SessionID, t.UserID, string(t.Action), params, string(t.Status),
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}
	return t.ID, nil
}

// TransitionTask enforces the pending → running → {completed|failed} state
// machine at the row level. Writing the same terminal status twice no-ops;
// any other transition out of a terminal state is rejected.
func (s *Store) TransitionTask(ctx context.Context, id int64, status domain.TaskStatus, result map[string]any, errMsg string) error {
	switch {
	case status == domain.StatusRunning:
		tag, err := s.Pool.Exec(ctx, `
			UPDATE tasks SET status = $2
			WHERE id = $1 AND status = $3`,
			id, string(status), string(domain.StatusPending))
		if err != nil {
			return fmt.Errorf("failed to mark task %d running: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return s.transitionConflict(ctx, id, status)
		}
		return nil

	case status.Terminal():
		res, err := marshalParams(result)
		if err != nil {
			return err
		}
		tag, err := s.Pool.Exec(ctx, `
			UPDATE tasks SET status = $2, result = $3, error = NULLIF($4, ''), completed_at = now()
			WHERE id = $1 AND status IN ($5, $6)`,
			id, string(status), res, errMsg,
			string(domain.StatusPending), string(domain.StatusRunning))
		if err != nil {
			return fmt.Errorf("failed to finish task %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return s.transitionConflict(ctx, id, status)
		}
		return nil

	default:
		return fmt.Errorf("task %d: %q is not a valid transition target", id, status)
	}
}

// transitionConflict distinguishes a missing row, a duplicate terminal write
// (tolerated) and a genuinely illegal transition.
func (s *Store) transitionConflict(ctx context.Context, id int64, want domain.TaskStatus) error {
	var current string
	err := s.Pool.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query task %d: %w", id, err)
	}
	if domain.TaskStatus(current) == want && want.Terminal() {
		return nil
	}
	return fmt.Errorf("task %d: cannot transition %s -> %s", id, current, want)
}

func (s *Store) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	t, err := scanTask(ctx, s.Pool.QueryRow(ctx, `
		SELECT id, session_id, user_id, action, parameters, status, result, error, created_at, completed_at
		FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) ListSessionTasks(ctx context.Context, sessionID int64) ([]domain.Task, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, session_id, user_id, action, parameters, status, result, error, created_at, completed_at
		FROM tasks WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(ctx context.Context, row pgx.Row) (*domain.Task, error) {
	var (
		t       domain.Task
		params  []byte
		result  []byte
		errText *string
	)
	err := row.Scan(&t.ID, &t.SessionID, &t.UserID, &t.Action, &params,
		&t.Status, &result, &errText, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	t.Parameters = unmarshalParams(ctx, params)
	if result != nil {
		t.Result = unmarshalParams(ctx, result)
	}
	if errText != nil {
		t.Error = *errText
	}
	return &t, nil
}

func marshalParams(p map[string]any) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	return b, nil
}

// unmarshalParams treats missing or malformed JSON as empty rather than
// failing the read; a cosmetic defect upstream must not block execution.
func unmarshalParams(ctx context.Context, raw []byte) domain.Params {
	if len(raw) == 0 {
		return nil
	}
	var p domain.Params
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("malformed JSON document in store, treating as empty")
		return nil
	}
	return p
}
