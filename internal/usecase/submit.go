package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
)

// Submitter creates the pending task record and hands it to the dispatch
// queue. The caller gets the task id back immediately; execution happens on
// a worker, decoupled from the submission call.
type Submitter struct {
	Tasks    ports.TaskStore
	Sessions ports.SessionStore
	Q        ports.Queue
}

func (s Submitter) Submit(ctx context.Context, userID, sessionID int64, action domain.Action, params domain.Params) (int64, error) {
	if !domain.ValidAction(action) {
		return 0, fmt.Errorf("unknown action %q", action)
	}

	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if sess.UserID != userID {
		// Ownership mismatch is indistinguishable from absence to the caller.
		return 0, domain.ErrSessionNotFound
	}

	t := &domain.Task{
		SessionID:  sessionID,
		UserID:     userID,
		Action:     action,
		Parameters: params,
	}
	id, err := s.Tasks.CreateTask(ctx, t)
	if err != nil {
		return 0, err
	}

	if _, err := s.Q.Enqueue(ctx, domain.Dispatch{
		TaskID:     id,
		SessionID:  sessionID,
		Action:     action,
		Parameters: params,
	}); err != nil {
		// Nothing will ever claim this task; fail it rather than strand it
		// in pending.
		if terr := s.Tasks.TransitionTask(ctx, id, domain.StatusFailed, nil, fmt.Sprintf("failed to enqueue task: %s", err)); terr != nil {
			log.Ctx(ctx).Error().Err(terr).Int64("task_id", id).Msg("could not fail unqueued task")
		}
		return 0, fmt.Errorf("failed to enqueue task %d: %w", id, err)
	}

	log.Ctx(ctx).Info().
		Int64("task_id", id).
		Int64("session_id", sessionID).
		Str("action", string(action)).
		Msg("task submitted")
	return id, nil
}
