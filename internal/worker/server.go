package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sergeevgit1/camoufox-automation/internal/config"
	"github.com/sergeevgit1/camoufox-automation/internal/infra/bridge"
	pw "github.com/sergeevgit1/camoufox-automation/internal/infra/playwright"
	"github.com/sergeevgit1/camoufox-automation/internal/infra/postgres"
	"github.com/sergeevgit1/camoufox-automation/internal/infra/redisq"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
	"github.com/sergeevgit1/camoufox-automation/internal/usecase"
)

type Config struct {
	ConsumerName string
	Concurrency  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// Run starts Concurrency execution consumers and blocks until shutdown.
// Each consumer claims one dispatch at a time, so Concurrency is also the
// cap on worker processes in flight.
func Run(cfg Config) error {
	appCfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Connect(ctx, appCfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer store.Close()

	cli := redisq.New(appCfg.Redis)
	if err := cli.Init(ctx); err != nil {
		return err
	}

	executor, cleanup, err := newExecutor(appCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	name := cfg.ConsumerName
	if name == "" {
		name = "worker-" + uuid.NewString()[:8]
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		runner := usecase.Runner{
			Tasks:        store,
			Sessions:     store,
			Q:            cli,
			Exec:         executor,
			ConsumerName: fmt.Sprintf("%s-%d", name, i+1),
			BaseBackoff:  cfg.BaseBackoff,
			MaxBackoff:   cfg.MaxBackoff,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				log.Ctx(ctx).Error().Err(err).Str("consumer", runner.ConsumerName).Msg("consumer stopped with error")
			}
		}()
	}

	log.Ctx(ctx).Info().
		Str("consumer", name).
		Int("concurrency", cfg.Concurrency).
		Str("executor", appCfg.Worker.Executor).
		Msg("worker started")

	wg.Wait()
	log.Info().Msg("all consumers stopped")
	return nil
}

func newExecutor(cfg *config.Config) (ports.Executor, func(), error) {
	switch cfg.Worker.Executor {
	case "playwright":
		e, err := pw.New()
		if err != nil {
			return nil, nil, err
		}
		return e, func() { _ = e.Close() }, nil
	case "bridge":
		return bridge.New(cfg.Bridge), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown executor %q", cfg.Worker.Executor)
	}
}
