package checkpoint

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/consensus-shipyard/ipc-checkpointer/config"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

// ClientFactory creates a chain client for a subnet. Every manager gets its own clients.
type ClientFactory interface {
	NewClient(subnet *types.Subnet) (ChainClient, error)
}

// ClientFactoryFunc adapts a function to ClientFactory
type ClientFactoryFunc func(subnet *types.Subnet) (ChainClient, error)

func (f ClientFactoryFunc) NewClient(subnet *types.Subnet) (ChainClient, error) {
	return f(subnet)
}

// DerivePairs returns the subnet pairs under management: every child whose
// parent is configured and that has at least one local account.
func DerivePairs(subnets map[string]*types.Subnet) []types.SubnetPair {
	byID := make(map[string]*types.Subnet, len(subnets))
	for _, subnet := range subnets {
		byID[subnet.ID.String()] = subnet
	}

	pairs := make([]types.SubnetPair, 0, len(subnets))

	for _, child := range subnets {
		parentID, ok := child.ID.Parent()
		if !ok || !child.HasAccounts() {
			continue
		}

		parent, ok := byID[parentID.String()]
		if !ok {
			continue
		}

		pairs = append(pairs, types.SubnetPair{Child: child, Parent: parent})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Child.ID.String() < pairs[j].Child.ID.String()
	})

	return pairs
}

// CheckNetworkTypes rejects the parent and child network types no manager supports
func CheckNetworkTypes(pair types.SubnetPair) error {
	if pair.Parent.NetworkType == types.FVM && pair.Child.NetworkType == types.FEVM {
		return fmt.Errorf("%w: %s parent with %s child in %s",
			ErrUnsupportedNetworks, pair.Parent.NetworkType, pair.Child.NetworkType, pair)
	}

	return nil
}

// Setup turns configuration snapshots into checkpoint runners
type Setup struct {
	clients  ClientFactory
	recorder Recorder
	logger   hclog.Logger
}

func NewSetup(clients ClientFactory, recorder Recorder, logger hclog.Logger) *Setup {
	return &Setup{
		clients:  clients,
		recorder: recorder,
		logger:   logger,
	}
}

// Runners builds one runner per managed pair and enabled direction. Pairs with
// unsupported network types are skipped and logged.
func (s *Setup) Runners(cfg *config.Config) ([]*Runner, error) {
	subnets, err := cfg.BuildSubnets()
	if err != nil {
		return nil, err
	}

	interval, err := cfg.Interval()
	if err != nil {
		return nil, err
	}

	runnerConfig := RunnerConfig{
		PollInterval:     interval,
		MaxCatchUpRounds: cfg.MaxCatchUpRounds,
		Recorder:         s.recorder,
	}

	var runners []*Runner

	for _, pair := range DerivePairs(subnets) {
		if err := CheckNetworkTypes(pair); err != nil {
			s.logger.Error("skipping subnet pair", "pair", pair.String(), "err", err)

			continue
		}

		for _, dir := range types.AllDirections {
			if !pair.Child.Enabled(dir) {
				continue
			}

			runners = append(runners, NewRunner(pair, dir, s.managerFactory(pair, dir), runnerConfig, s.logger))
		}
	}

	return runners, nil
}

func (s *Setup) managerFactory(pair types.SubnetPair, dir types.Direction) ManagerFactory {
	logger := s.logger.Named(string(dir)).With("child", pair.Child.ID.String())

	return func(ctx context.Context) (CheckpointManager, error) {
		parentClient, err := s.clients.NewClient(pair.Parent)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for %s: %w", pair.Parent.ID, err)
		}

		childClient, err := s.clients.NewClient(pair.Child)
		if err != nil {
			closeClients(logger, parentClient)

			return nil, fmt.Errorf("failed to create client for %s: %w", pair.Child.ID, err)
		}

		var manager CheckpointManager

		switch dir {
		case types.BottomUp:
			manager, err = NewBottomUpManager(ctx, pair, parentClient, childClient, logger)
		case types.TopDown:
			manager, err = NewTopDownManager(ctx, pair, parentClient, childClient, logger)
		default:
			err = fmt.Errorf("unknown checkpoint direction %q", dir)
		}

		if err != nil {
			closeClients(logger, parentClient, childClient)

			return nil, err
		}

		return manager, nil
	}
}

func closeClients(logger hclog.Logger, clients ...ChainClient) {
	var result error

	for _, c := range clients {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if result != nil {
		logger.Warn("failed to close chain clients", "err", result)
	}
}
