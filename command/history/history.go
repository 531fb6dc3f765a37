package history

import (
	"errors"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/consensus-shipyard/ipc-checkpointer/command"
	"github.com/consensus-shipyard/ipc-checkpointer/command/helper"
	"github.com/consensus-shipyard/ipc-checkpointer/config"
	"github.com/consensus-shipyard/ipc-checkpointer/store"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

const (
	childFlag     = "child"
	directionFlag = "direction"
	limitFlag     = "limit"
)

var errMissingDataDir = errors.New("either --data-dir or a config with data_dir is required")

var params struct {
	configPath string
	dataDir    string
	child      string
	direction  string
	limit      int
}

func GetCommand() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Lists the checkpoint submissions recorded in the journal",
		Args:  cobra.NoArgs,
		RunE:  runCommand,
	}

	helper.RegisterConfigFlag(historyCmd, &params.configPath)

	historyCmd.Flags().StringVar(
		&params.dataDir,
		command.DataDirFlag,
		"",
		"the checkpointer data directory, overrides data_dir of the config",
	)

	historyCmd.Flags().StringVar(
		&params.child,
		childFlag,
		"",
		"only list submissions of this child subnet id",
	)

	historyCmd.Flags().StringVar(
		&params.direction,
		directionFlag,
		"",
		"only list submissions in this direction (bottom-up or top-down)",
	)

	historyCmd.Flags().IntVar(
		&params.limit,
		limitFlag,
		20,
		"the number of most recent submissions to list, 0 lists all of them",
	)

	return historyCmd
}

func runCommand(cmd *cobra.Command, _ []string) error {
	outputter := command.InitializeOutputter(cmd)

	records, err := listRecords()
	if err != nil {
		outputter.SetError(err)
	} else {
		outputter.SetCommandResult(&HistoryResult{Records: records})
	}

	return command.Flush(outputter)
}

func dataDir() (string, error) {
	if params.dataDir != "" {
		return params.dataDir, nil
	}

	if params.configPath != "" {
		cfg, err := config.ReadConfigFile(params.configPath)
		if err != nil {
			return "", err
		}

		if cfg.DataDir != "" {
			return cfg.DataDir, nil
		}
	}

	return "", errMissingDataDir
}

func listRecords() ([]*types.SubmissionRecord, error) {
	filter := store.Filter{Limit: params.limit}

	if params.child != "" {
		id, err := types.ParseSubnetID(params.child)
		if err != nil {
			return nil, err
		}

		filter.Child = id.String()
	}

	if params.direction != "" {
		dir, err := types.ParseDirection(params.direction)
		if err != nil {
			return nil, err
		}

		filter.Direction = dir
	}

	dir, err := dataDir()
	if err != nil {
		return nil, err
	}

	journal, err := store.OpenReadOnly(filepath.Join(dir, store.FileName), hclog.NewNullLogger())
	if err != nil {
		return nil, err
	}

	defer journal.Close()

	return journal.List(filter)
}
