package command

import (
	"errors"
	"io"

	"github.com/spf13/cobra"
)

// OutputFormatter is the standardized interface all output formatters
// should use
type OutputFormatter interface {
	// getErrorOutput returns the CLI command error
	getErrorOutput() string

	// getCommandOutput returns the CLI command output
	getCommandOutput() string

	// SetError sets the encountered error
	SetError(err error)

	// SetCommandResult sets the result of the command execution
	SetCommandResult(result CommandResult)

	// WriteOutput writes the result / error output
	WriteOutput()

	// Failed reports whether an error was set
	Failed() bool
}

// ErrReported is returned by commands whose failure was already written by their formatter
var ErrReported = errors.New("command failed")

type CommandResult interface {
	GetOutput() string
}

func shouldOutputJSON(cmd *cobra.Command) bool {
	flag := cmd.Flag(JSONOutputFlag)

	return flag != nil && flag.Changed
}

// InitializeOutputter picks the formatter requested on the command line. Output
// goes to the streams configured on cmd.
func InitializeOutputter(cmd *cobra.Command) OutputFormatter {
	common := commonOutputFormatter{
		out: cmd.OutOrStdout(),
		err: cmd.ErrOrStderr(),
	}

	if shouldOutputJSON(cmd) {
		return &JSONOutput{commonOutputFormatter: common}
	}

	return &CLIOutput{commonOutputFormatter: common}
}

func writeLine(w io.Writer, s string) {
	_, _ = io.WriteString(w, s+"\n")
}

// Flush writes the formatter output and turns a reported failure into ErrReported
func Flush(outputter OutputFormatter) error {
	outputter.WriteOutput()

	if outputter.Failed() {
		return ErrReported
	}

	return nil
}
