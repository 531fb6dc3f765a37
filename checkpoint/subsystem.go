package checkpoint

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/ipc-checkpointer/config"
)

// ConfigSource is the live configuration consumed by the subsystem
type ConfigSource interface {
	Current() *config.Config
	Subscribe() (<-chan *config.Config, func())
}

// RunnerSource builds the runners of a configuration snapshot
type RunnerSource interface {
	Runners(cfg *config.Config) ([]*Runner, error)
}

// Subsystem runs the checkpoint runners of the current configuration and
// restarts the whole set whenever a new snapshot is published
type Subsystem struct {
	configs ConfigSource
	runners RunnerSource
	logger  hclog.Logger
}

func NewSubsystem(configs ConfigSource, runners RunnerSource, logger hclog.Logger) *Subsystem {
	return &Subsystem{
		configs: configs,
		runners: runners,
		logger:  logger.Named("checkpoint"),
	}
}

// Run blocks until ctx is cancelled or the configuration stream closes. Runner
// failures are handled by the runners and never surface here.
func (s *Subsystem) Run(ctx context.Context) error {
	updates, unsubscribe := s.configs.Subscribe()
	defer unsubscribe()

	cfg := s.configs.Current()

	for generation := uint64(1); ; generation++ {
		runners, err := s.runners.Runners(cfg)
		if err != nil {
			s.logger.Error("cannot start checkpoint runners due to config error, update and reload config",
				"err", err)
		}

		runCtx, cancel := context.WithCancel(ctx)
		wg := s.start(runCtx, runners)

		s.logger.Info("checkpoint runners started", "generation", generation, "runners", len(runners))

		select {
		case next, ok := <-updates:
			s.drain(cancel, wg)

			if !ok {
				s.logger.Error("config channel unexpectedly closed, shutting down checkpoint subsystem")

				return ErrConfigStream
			}

			s.logger.Info("config changed, reloading checkpoint subsystem")

			cfg = next
		case <-ctx.Done():
			s.drain(cancel, wg)
			s.logger.Info("checkpoint subsystem stopped")

			return nil
		}
	}
}

func (s *Subsystem) start(ctx context.Context, runners []*Runner) *sync.WaitGroup {
	wg := new(sync.WaitGroup)

	for _, runner := range runners {
		wg.Add(1)

		go func(r *Runner) {
			defer wg.Done()

			r.Run(ctx)
		}(runner)
	}

	return wg
}

// drain cancels the running generation and waits for all of its runners
func (s *Subsystem) drain(cancel context.CancelFunc, wg *sync.WaitGroup) {
	cancel()
	wg.Wait()
}
