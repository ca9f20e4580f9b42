package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/sergeevgit1/camoufox-automation/internal/config"
	"github.com/sergeevgit1/camoufox-automation/internal/domain"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
)

var _ ports.Executor = (*Executor)(nil)

// Executor launches one external camoufox worker process per task. The
// request travels as a single JSON argument; the response is one JSON
// document read from stdout after the process exits. Stderr is captured and
// folded into the error on abnormal exit.
type Executor struct {
	Python string
	Script string
}

func New(cfg config.Bridge) *Executor {
	return &Executor{Python: cfg.Python, Script: cfg.Script}
}

type request struct {
	Action     domain.Action `json:"action"`
	Parameters domain.Params `json:"parameters"`
}

// Execute runs the worker to completion. No timeout is enforced and the
// process is not tied to ctx: a hung worker hangs the task, and shutdown
// does not kill in-flight workers.
func (e *Executor) Execute(ctx context.Context, action domain.Action, params domain.Params) domain.Outcome {
	payload, err := json.Marshal(request{Action: action, Parameters: params})
	if err != nil {
		return failure("failed to encode execution request: %s", err)
	}

	cmd := exec.Command(e.Python, e.Script, string(payload))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return failure("failed to start worker process: %s", err)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return failure("process exited with code %d: %s", exitErr.ExitCode(), stderr.String())
		}
		return failure("worker process failed: %s", err)
	}

	var out domain.Outcome
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		log.Ctx(ctx).Error().
			Str("action", string(action)).
			Str("output", stdout.String()).
			Msg("worker produced unparseable output")
		return failure("failed to parse worker output: %s", err)
	}
	return out
}

func failure(format string, args ...any) domain.Outcome {
	return domain.Outcome{Success: false, Error: fmt.Sprintf(format, args...)}
}
