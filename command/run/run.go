package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/consensus-shipyard/ipc-checkpointer/command"
	"github.com/consensus-shipyard/ipc-checkpointer/command/helper"
	"github.com/consensus-shipyard/ipc-checkpointer/config"
)

var errForcedShutdown = errors.New("forced shutdown")

func GetCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the checkpoint subsystem for every subnet pair of the config",
		Args:  cobra.NoArgs,
		RunE:  runCommand,
	}

	setFlags(runCmd)

	return runCmd
}

func setFlags(cmd *cobra.Command) {
	helper.RegisterConfigFlag(cmd, &params.configPath)

	cmd.Flags().StringVar(
		&params.logLevel,
		command.LogLevelFlag,
		"",
		"the log level for console output, overrides log_level of the config",
	)

	cmd.Flags().StringVar(
		&params.dataDir,
		command.DataDirFlag,
		"",
		"the directory holding the submission journal, overrides data_dir of the config",
	)

	cmd.Flags().StringVar(
		&params.prometheusAddr,
		prometheusAddressFlag,
		"",
		"the address and port for the prometheus instrumentation service (address:port)",
	)
}

func runCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := params.loadConfig()
	if err != nil {
		return err
	}

	logger, logCloser, err := helper.NewLogger(cfg)
	if err != nil {
		return err
	}

	defer logCloser.Close()

	c, err := newCheckpointer(cfg, logger)
	if err != nil {
		return fmt.Errorf("unable to start checkpointer: %w", err)
	}

	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	defer signal.Stop(signalCh)

	err = serve(cmd.Context(), c, params.loadConfig, signalCh, logger)

	// after a forced shutdown the journal stays open under the running submissions
	c.close()

	return err
}

// serve runs the checkpointer until a termination signal arrives or the
// subsystem stops on its own. SIGHUP reloads the configuration. After a
// termination signal serve waits for in-flight submissions, only a second
// signal forces it to return early.
func serve(
	parent context.Context,
	c *checkpointer,
	load func() (*config.Config, error),
	signalCh <-chan os.Signal,
	logger hclog.Logger,
) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	doneCh := make(chan error, 1)

	go func() {
		doneCh <- c.run(ctx)
	}()

	for {
		select {
		case err := <-doneCh:
			return err
		case sig := <-signalCh:
			if sig == syscall.SIGHUP {
				reload(c, load, logger)

				continue
			}

			logger.Info("caught signal, shutting down", "signal", sig.String())
			cancel()

			for {
				select {
				case err := <-doneCh:
					return err
				case sig := <-signalCh:
					if sig == syscall.SIGHUP {
						continue
					}

					logger.Warn("caught second signal, forcing shutdown", "signal", sig.String())

					return errForcedShutdown
				}
			}
		}
	}
}

func reload(c *checkpointer, load func() (*config.Config, error), logger hclog.Logger) {
	cfg, err := load()
	if err != nil {
		logger.Error("failed to reload config, keeping the current one", "err", err)

		return
	}

	if err := c.reload(cfg); err != nil {
		logger.Error("failed to publish reloaded config", "err", err)

		return
	}

	logger.Info("config reloaded")
}
