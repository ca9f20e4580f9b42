package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
	"github.com/sergeevgit1/camoufox-automation/pkg/backoff"
)

// Runner is the execution side of the dispatcher: it claims dispatch
// messages and runs each task through its three phases — mark running,
// execute, mark terminal. One Runner handles one claim at a time; the worker
// starts several Runners for parallelism.
type Runner struct {
	Tasks        ports.TaskStore
	Sessions     ports.SessionStore
	Q            ports.Queue
	Exec         ports.Executor
	ConsumerName string
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (r Runner) Run(ctx context.Context) error {
	claimErrs := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		d, streamID, err := r.Q.Claim(ctx, r.ConsumerName, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			claimErrs++
			delay := backoff.ExponentialJitter(r.BaseBackoff, r.MaxBackoff, claimErrs)
			log.Ctx(ctx).Error().Err(err).Dur("retry_in", delay).Msg("claim failed")
			sleep(ctx, delay)
			continue
		}
		claimErrs = 0
		if d == nil {
			continue
		}

		r.runToCompletion(ctx, *d)

		// The task reached a terminal record (or was logged as
		// untransitionable); either way the message is spent. No redelivery:
		// execution is single-attempt.
		if err := r.Q.Ack(ctx, streamID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("stream_id", streamID).Msg("ack failed")
		}
	}
}

// runToCompletion drives one task from pending to a terminal state. Whatever
// goes wrong in here, the task must not be left in running; only a crash of
// this process can do that.
func (r Runner) runToCompletion(ctx context.Context, d domain.Dispatch) {
	defer func() {
		if p := recover(); p != nil {
			log.Ctx(ctx).Error().Int64("task_id", d.TaskID).Msgf("panic while executing task: %v", p)
			r.finish(ctx, d.TaskID, domain.Outcome{Error: fmt.Sprintf("internal fault: %v", p)})
		}
	}()

	if err := r.Tasks.TransitionTask(ctx, d.TaskID, domain.StatusRunning, nil, ""); err != nil {
		// Task gone (session deleted mid-flight) or already claimed; either
		// way this dispatch is stale.
		log.Ctx(ctx).Warn().Err(err).Int64("task_id", d.TaskID).Msg("skipping dispatch")
		return
	}

	merged := domain.MergeParams(r.sessionConfig(ctx, d.SessionID), d.Parameters)

	log.Ctx(ctx).Info().
		Int64("task_id", d.TaskID).
		Str("action", string(d.Action)).
		Msg("executing task")

	out := r.Exec.Execute(ctx, d.Action, merged)
	r.finish(ctx, d.TaskID, out)
}

func (r Runner) finish(ctx context.Context, taskID int64, out domain.Outcome) {
	// Exactly one of result/error reaches the terminal record, whatever the
	// worker put in its response document.
	status := domain.StatusCompleted
	if out.Success {
		out.Error = ""
	} else {
		status = domain.StatusFailed
		if out.Error == "" {
			out.Error = "worker reported failure without detail"
		}
		out.Result = nil
	}
	if err := r.Tasks.TransitionTask(ctx, taskID, status, out.Result, out.Error); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("task_id", taskID).Msg("terminal transition failed")
		return
	}
	log.Ctx(ctx).Info().Int64("task_id", taskID).Str("status", string(status)).Msg("task finished")
}

// sessionConfig loads the session's browser configuration. An unreadable or
// missing configuration degrades to empty instead of blocking execution.
func (r Runner) sessionConfig(ctx context.Context, sessionID int64) domain.Params {
	sess, err := r.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("session_id", sessionID).Msg("session config unavailable")
		return nil
	}
	return sess.BrowserConfig
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
