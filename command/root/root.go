package root

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/consensus-shipyard/ipc-checkpointer/command"
	"github.com/consensus-shipyard/ipc-checkpointer/command/helper"
	"github.com/consensus-shipyard/ipc-checkpointer/command/history"
	"github.com/consensus-shipyard/ipc-checkpointer/command/run"
	"github.com/consensus-shipyard/ipc-checkpointer/command/validate"
	"github.com/consensus-shipyard/ipc-checkpointer/command/version"
)

type RootCommand struct {
	baseCmd *cobra.Command
}

func NewRootCommand() *RootCommand {
	rootCommand := &RootCommand{
		baseCmd: &cobra.Command{
			Use:           "checkpointer",
			Short:         "Submits bottom-up and top-down checkpoints between IPC subnets",
			SilenceErrors: true,
			SilenceUsage:  true,
		},
	}

	helper.RegisterJSONOutputFlag(rootCommand.baseCmd)

	rootCommand.registerSubCommands()

	return rootCommand
}

func (rc *RootCommand) registerSubCommands() {
	rc.baseCmd.AddCommand(
		version.GetCommand(),
		run.GetCommand(),
		validate.GetCommand(),
		history.GetCommand(),
	)
}

// Command exposes the cobra tree, mostly for tests
func (rc *RootCommand) Command() *cobra.Command {
	return rc.baseCmd
}

func (rc *RootCommand) Execute() {
	if err := rc.baseCmd.Execute(); err != nil {
		if !errors.Is(err, command.ErrReported) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}

		os.Exit(1)
	}
}
