package command

import "io"

// commonOutputFormatter holds the state shared by every formatter. Only one of
// the error or the result is ever written.
type commonOutputFormatter struct {
	out io.Writer
	err io.Writer

	errorOutput   error
	commandOutput CommandResult
}

func (c *commonOutputFormatter) SetError(err error) {
	c.errorOutput = err
}

func (c *commonOutputFormatter) SetCommandResult(result CommandResult) {
	c.commandOutput = result
}

func (c *commonOutputFormatter) Failed() bool {
	return c.errorOutput != nil
}

func (c *commonOutputFormatter) write(renderError, renderResult func() string) {
	switch {
	case c.errorOutput != nil:
		writeLine(c.err, renderError())
	case c.commandOutput != nil:
		writeLine(c.out, renderResult())
	}
}
