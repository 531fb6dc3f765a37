package checkpoint

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

// Recorder receives every submission confirmed by a runner
type Recorder interface {
	Record(record *types.SubmissionRecord) error
}

// ManagerFactory builds the manager driven by a runner. It is called from the
// runner goroutine until it succeeds.
type ManagerFactory func(ctx context.Context) (CheckpointManager, error)

// RunnerConfig holds the scheduling parameters of a runner
type RunnerConfig struct {
	// PollInterval is the minimum time between the start of two iterations
	PollInterval time.Duration
	// MaxCatchUpRounds bounds the submission rounds of one iteration
	MaxCatchUpRounds uint64
	// Recorder is optional
	Recorder Recorder
}

// Runner drives one checkpoint manager through the poll, submit and catch-up loop
type Runner struct {
	pair       types.SubnetPair
	direction  types.Direction
	newManager ManagerFactory
	config     RunnerConfig
	logger     hclog.Logger

	// highWater is the highest last executed epoch observed, the submission
	// target never goes below highWater + period
	highWater types.Epoch
	observed  bool
}

func NewRunner(
	pair types.SubnetPair,
	direction types.Direction,
	newManager ManagerFactory,
	config RunnerConfig,
	logger hclog.Logger,
) *Runner {
	if config.MaxCatchUpRounds == 0 {
		config.MaxCatchUpRounds = 1
	}

	return &Runner{
		pair:       pair,
		direction:  direction,
		newManager: newManager,
		config:     config,
		logger: logger.Named("runner").With(
			"direction", direction,
			"child", pair.Child.ID.String(),
			"parent", pair.Parent.ID.String(),
		),
	}
}

func (r *Runner) String() string {
	return string(r.direction) + " " + r.pair.String()
}

// Run loops until ctx is cancelled. A submission in flight when ctx is
// cancelled completes before Run returns.
func (r *Runner) Run(ctx context.Context) {
	var manager CheckpointManager

	r.logger.Debug("checkpoint runner started")

	defer func() {
		if manager != nil {
			if err := manager.Close(); err != nil {
				r.logger.Warn("failed to close checkpoint manager", "err", err)
			}
		}

		r.logger.Debug("checkpoint runner stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()

		if manager == nil {
			m, err := r.newManager(ctx)
			if err != nil {
				r.logger.Error("failed to build checkpoint manager", "err", err)
			} else {
				manager = m
				r.logger.Info("checkpoint manager ready", "period", manager.CheckpointPeriod())
			}
		}

		if manager != nil {
			if epoch, err := r.submitTillCurrent(ctx, manager); err != nil && ctx.Err() == nil {
				r.logger.Error("checkpoint iteration failed", "epoch", epoch, "err", err)
			}
		}

		if !r.wait(ctx, start) {
			return
		}
	}
}

// wait sleeps for the remainder of the poll interval. It returns false once ctx is cancelled.
func (r *Runner) wait(ctx context.Context, start time.Time) bool {
	remaining := r.config.PollInterval - time.Since(start)
	if remaining <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// submitTillCurrent submits every checkpoint due, recomputing the submission
// epoch from chain state after each successful round
func (r *Runner) submitTillCurrent(ctx context.Context, m CheckpointManager) (types.Epoch, error) {
	for round := uint64(0); ; round++ {
		if ctx.Err() != nil {
			return 0, nil
		}

		submitted, epoch, err := r.submitRound(ctx, m)
		if err != nil || !submitted {
			return epoch, err
		}

		if round+1 >= r.config.MaxCatchUpRounds {
			r.logger.Info("catch-up round limit reached, waiting for next poll", "epoch", epoch)

			return epoch, nil
		}

		r.logger.Debug("catching up", "round", round+1, "epoch", epoch)
	}
}

// submitRound computes the submission epoch and submits it for every managed
// validator that has not voted yet. It reports whether anything was submitted.
func (r *Runner) submitRound(ctx context.Context, m CheckpointManager) (bool, types.Epoch, error) {
	ready, err := m.PresubmissionCheck(ctx)
	if err != nil {
		return false, 0, err
	}

	if !ready {
		r.logger.Info("subnet not ready for checkpoint submission")

		return false, 0, nil
	}

	validators, err := m.Validators(ctx)
	if err != nil {
		return false, 0, err
	}

	managed := managedValidators(validators, m.Target())
	if len(managed) == 0 {
		r.logger.Debug("no managed validators in the validator set", "validators", len(validators))

		return false, 0, nil
	}

	lastExecuted, err := m.LastExecutedEpoch(ctx)
	if err != nil {
		return false, 0, err
	}

	r.observe(lastExecuted)

	current, err := m.CurrentEpoch(ctx)
	if err != nil {
		return false, 0, err
	}

	next := types.SubmissionEpoch(r.highWater, m.CheckpointPeriod())

	updateEpochMetrics(m, lastExecuted, current, next)

	r.logger.Debug("checkpoint epochs",
		"last_executed", lastExecuted,
		"current", current,
		"next", next,
	)

	if current < next {
		return false, next, nil
	}

	submitted := false

	for _, validator := range managed {
		// cancellation is honored between submissions only
		if ctx.Err() != nil {
			return submitted, next, nil
		}

		should, err := m.ShouldSubmitInEpoch(ctx, validator, next)
		if err != nil {
			return submitted, next, err
		}

		if !should {
			r.logger.Debug("validator already voted", "epoch", next, "validator", validator)

			continue
		}

		start := time.Now()

		receipt, err := m.SubmitCheckpoint(context.WithoutCancel(ctx), next, validator)
		updateSubmissionMetrics(m, start, err)

		if err != nil {
			return submitted, next, err
		}

		submitted = true

		r.logger.Info("checkpoint submitted", "epoch", next, "validator", validator, "height", receipt.Height)
		r.record(m, next, validator, receipt)
	}

	return submitted, next, nil
}

func (r *Runner) observe(lastExecuted types.Epoch) {
	if !r.observed || lastExecuted > r.highWater {
		r.highWater = lastExecuted
		r.observed = true
	}
}

func (r *Runner) record(m CheckpointManager, epoch types.Epoch, validator types.Address, receipt *types.Receipt) {
	if r.config.Recorder == nil {
		return
	}

	err := r.config.Recorder.Record(&types.SubmissionRecord{
		Direction:   m.Direction(),
		Child:       m.Child().ID.String(),
		Parent:      m.Parent().ID.String(),
		Epoch:       epoch,
		Validator:   validator,
		Height:      receipt.Height,
		Ref:         receipt.Ref,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn("failed to record submission", "epoch", epoch, "err", err)
	}
}

// managedValidators keeps the validators controlled by a local account of the
// target subnet, in their configured form
func managedValidators(validators []types.Address, target *types.Subnet) []types.Address {
	managed := make([]types.Address, 0, len(validators))

	for _, v := range validators {
		if local, ok := target.LocalAccount(v); ok {
			managed = append(managed, local)
		}
	}

	return managed
}
