package validate

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/consensus-shipyard/ipc-checkpointer/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpointer/command"
	"github.com/consensus-shipyard/ipc-checkpointer/command/helper"
	"github.com/consensus-shipyard/ipc-checkpointer/config"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

var errMissingConfig = errors.New("the config file path is required")

var params struct {
	configPath string
}

func GetCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Checks a checkpointer config and lists the subnet pairs it manages",
		Args:  cobra.NoArgs,
		RunE:  runCommand,
	}

	helper.RegisterConfigFlag(validateCmd, &params.configPath)

	return validateCmd
}

func runCommand(cmd *cobra.Command, _ []string) error {
	outputter := command.InitializeOutputter(cmd)

	result, err := validateFile(params.configPath)
	if err != nil {
		outputter.SetError(err)
	} else {
		outputter.SetCommandResult(result)
	}

	return command.Flush(outputter)
}

func validateFile(path string) (*ValidateResult, error) {
	if path == "" {
		return nil, errMissingConfig
	}

	cfg, err := config.ReadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	subnets, err := cfg.BuildSubnets()
	if err != nil {
		return nil, err
	}

	result := &ValidateResult{
		Subnets: make([]SubnetResult, 0, len(subnets)),
	}

	for _, name := range cfg.SubnetNames() {
		subnet := subnets[name]

		result.Subnets = append(result.Subnets, SubnetResult{
			Name:        subnet.Name,
			ID:          subnet.ID.String(),
			NetworkType: string(subnet.NetworkType),
			Accounts:    len(subnet.Accounts),
			Directions:  enabledDirections(subnet),
		})
	}

	for _, pair := range checkpoint.DerivePairs(subnets) {
		pairResult := PairResult{
			Pair:       pair.String(),
			Directions: enabledDirections(pair.Child),
		}

		if err := checkpoint.CheckNetworkTypes(pair); err != nil {
			pairResult.Skipped = err.Error()
		}

		result.Pairs = append(result.Pairs, pairResult)
	}

	return result, nil
}

func enabledDirections(subnet *types.Subnet) []string {
	dirs := make([]string, 0, len(types.AllDirections))

	for _, dir := range types.AllDirections {
		if subnet.Enabled(dir) {
			dirs = append(dirs, string(dir))
		}
	}

	return dirs
}
