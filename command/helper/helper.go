package helper

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"

	"github.com/consensus-shipyard/ipc-checkpointer/command"
	"github.com/consensus-shipyard/ipc-checkpointer/config"
)

const loggerName = "checkpointer"

// RegisterJSONOutputFlag registers the --json output setting for all child commands
func RegisterJSONOutputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(
		command.JSONOutputFlag,
		false,
		"get all outputs in json format (default false)",
	)
}

// RegisterConfigFlag registers the path of the checkpointer config file
func RegisterConfigFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(
		target,
		command.ConfigFlag,
		"",
		"the path to the checkpointer config. Supports .json, .hcl and .yaml",
	)
}

// NewLogger builds the process logger described by cfg. The returned closer
// releases the log file, if any.
func NewLogger(cfg *config.Config) (hclog.Logger, io.Closer, error) {
	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	var (
		output io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)

	if cfg.LogFilePath != "" {
		file, err := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("could not create or open log file, %w", err)
		}

		output, closer = file, file
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       loggerName,
		Level:      level,
		Output:     output,
		JSONFormat: cfg.JSONLogFormat,
	}), closer, nil
}

// FormatList formats a list, using a specific blank value replacement
func FormatList(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"

	return columnize.Format(in, columnConf)
}

// FormatKV formats key value pairs:
//
// Key = Value
//
// Key = <none>
func FormatKV(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	columnConf.Glue = " = "

	return columnize.Format(in, columnConf)
}
