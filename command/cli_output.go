package command

// CLIOutput renders results for humans
type CLIOutput struct {
	commonOutputFormatter
}

func (cli *CLIOutput) WriteOutput() {
	cli.write(cli.getErrorOutput, cli.getCommandOutput)
}

func (cli *CLIOutput) getErrorOutput() string {
	return "[ERROR] " + cli.errorOutput.Error()
}

func (cli *CLIOutput) getCommandOutput() string {
	return cli.commandOutput.GetOutput()
}
