package chain

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/ipc-checkpointer/chain/evm"
	"github.com/consensus-shipyard/ipc-checkpointer/chain/lotus"
	"github.com/consensus-shipyard/ipc-checkpointer/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

var (
	_ checkpoint.ChainClient = (*lotus.Client)(nil)
	_ checkpoint.ChainClient = (*evm.Client)(nil)
)

// Factory creates the chain client matching the network type of a subnet
type Factory struct {
	logger hclog.Logger
}

func NewFactory(logger hclog.Logger) *Factory {
	return &Factory{logger: logger}
}

// NewClient implements checkpoint.ClientFactory
func (f *Factory) NewClient(subnet *types.Subnet) (checkpoint.ChainClient, error) {
	var (
		client checkpoint.ChainClient
		err    error
	)

	switch subnet.NetworkType {
	case types.FVM:
		client, err = lotus.NewClient(subnet, f.logger)
	case types.FEVM:
		client, err = evm.NewClient(subnet, f.logger)
	default:
		err = fmt.Errorf("unknown network type %q", subnet.NetworkType)
	}

	if err != nil {
		return nil, fmt.Errorf("subnet %s: %w", subnet.ID, err)
	}

	return client, nil
}
