package run

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/ipc-checkpointer/chain"
	"github.com/consensus-shipyard/ipc-checkpointer/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpointer/config"
	"github.com/consensus-shipyard/ipc-checkpointer/helper/common"
	"github.com/consensus-shipyard/ipc-checkpointer/store"
	"github.com/consensus-shipyard/ipc-checkpointer/telemetry"
)

// service is the long running part of the process
type service interface {
	Run(ctx context.Context) error
}

// checkpointer bundles the long lived services of a running process
type checkpointer struct {
	logger    hclog.Logger
	feed      *config.Feed
	journal   *store.Journal
	telemetry *telemetry.Telemetry
	subsystem service

	running atomic.Bool
}

func newCheckpointer(cfg *config.Config, logger hclog.Logger) (*checkpointer, error) {
	c := &checkpointer{
		logger: logger,
		feed:   config.NewFeed(cfg),
	}

	var err error

	if c.telemetry, err = telemetry.Setup(logger); err != nil {
		return nil, err
	}

	if cfg.Telemetry.PrometheusAddr != "" {
		if _, err := c.telemetry.Serve(cfg.Telemetry.PrometheusAddr); err != nil {
			return nil, err
		}
	}

	var recorder checkpoint.Recorder

	if cfg.DataDir != "" {
		if err := common.SetupDataDir(cfg.DataDir); err != nil {
			c.close()

			return nil, err
		}

		if c.journal, err = store.NewJournal(filepath.Join(cfg.DataDir, store.FileName), logger); err != nil {
			c.close()

			return nil, err
		}

		recorder = c.journal
	} else {
		logger.Warn("no data_dir configured, submissions are not journaled")
	}

	setup := checkpoint.NewSetup(chain.NewFactory(logger), recorder, logger)
	c.subsystem = checkpoint.NewSubsystem(c.feed, setup, logger)

	return c, nil
}

func (c *checkpointer) run(ctx context.Context) error {
	c.running.Store(true)
	defer c.running.Store(false)

	return c.subsystem.Run(ctx)
}

// reload publishes a new configuration snapshot. Only the subnet and polling
// settings of the new snapshot take effect.
func (c *checkpointer) reload(cfg *config.Config) error {
	current := c.feed.Current()

	if cfg.DataDir != current.DataDir || cfg.Telemetry.PrometheusAddr != current.Telemetry.PrometheusAddr {
		c.logger.Warn("data_dir and telemetry changes require a restart")
	}

	return c.feed.Publish(cfg)
}

// close releases the services. While a run is still in progress the feed and
// the journal are left open, in-flight submissions keep recording to them.
func (c *checkpointer) close() {
	if c.telemetry != nil {
		if err := c.telemetry.Close(); err != nil {
			c.logger.Error("failed to close metrics endpoint", "err", err)
		}
	}

	if c.running.Load() {
		c.logger.Warn("submissions still in flight, leaving the journal open")

		return
	}

	c.feed.Close()

	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			c.logger.Error("failed to close journal", "err", err)
		}
	}
}
