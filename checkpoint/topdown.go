package checkpoint

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

var _ CheckpointManager = (*TopDownManager)(nil)

// TopDownManager submits the parent to child messages to the gateway of the child subnet
type TopDownManager struct {
	checkpointMetadata
}

// NewTopDownManager builds a top-down manager. The checkpoint period is read
// once from the child gateway state.
func NewTopDownManager(
	ctx context.Context,
	pair types.SubnetPair,
	parentClient, childClient ChainClient,
	logger hclog.Logger,
) (*TopDownManager, error) {
	m := &TopDownManager{
		checkpointMetadata: checkpointMetadata{
			parent:       pair.Parent,
			child:        pair.Child,
			parentClient: parentClient,
			childClient:  childClient,
			logger:       logger,
		},
	}

	state, err := m.childGatewayState(ctx)
	if err != nil {
		return nil, err
	}

	if err := validPeriod(state.TopDownCheckPeriod, "top-down"); err != nil {
		return nil, err
	}

	m.period = state.TopDownCheckPeriod

	return m, nil
}

func (m *TopDownManager) String() string {
	return m.describe(types.TopDown)
}

func (m *TopDownManager) Direction() types.Direction {
	return types.TopDown
}

// Target is the child, top-down checkpoints are submitted to its gateway
func (m *TopDownManager) Target() *types.Subnet {
	return m.child
}

func (m *TopDownManager) LastExecutedEpoch(ctx context.Context) (types.Epoch, error) {
	state, err := m.childGatewayState(ctx)
	if err != nil {
		return 0, err
	}

	return state.TopDownLastExecutedEpoch, nil
}

// Validators returns the child accounts of the validator set. Top-down
// checkpoints are signed in the child, where validators use their worker address.
func (m *TopDownManager) Validators(ctx context.Context) ([]types.Address, error) {
	state, err := m.subnetActorState(ctx)
	if err != nil {
		return nil, err
	}

	return state.WorkerAddrs(), nil
}

// PresubmissionCheck passes once the gateway is initialized. For an FEVM parent
// of an FVM child that is the parent gateway, a root parent always passes.
// Otherwise it is the child gateway.
func (m *TopDownManager) PresubmissionCheck(ctx context.Context) (bool, error) {
	if m.parent.NetworkType == types.FEVM && m.child.NetworkType == types.FVM {
		if m.parent.ID.IsRoot() {
			return true, nil
		}

		state, err := m.parentGatewayState(ctx)
		if err != nil {
			return false, err
		}

		return state.Initialized, nil
	}

	state, err := m.childGatewayState(ctx)
	if err != nil {
		return false, err
	}

	return state.Initialized, nil
}

func (m *TopDownManager) ShouldSubmitInEpoch(
	ctx context.Context,
	validator types.Address,
	epoch types.Epoch,
) (bool, error) {
	voted, err := m.childClient.HasVotedTopDown(ctx, epoch, validator)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check top-down vote of %s at %d: %w",
			ErrChainQuery, validator, epoch, err)
	}

	return !voted, nil
}

func (m *TopDownManager) SubmitCheckpoint(
	ctx context.Context,
	epoch types.Epoch,
	validator types.Address,
) (*types.Receipt, error) {
	checkpoint, err := m.buildCheckpoint(ctx, epoch)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("submitting top-down checkpoint",
		"epoch", epoch,
		"validator", validator,
		"top_down_msgs", len(checkpoint.TopDownMsgs),
	)

	receipt, err := submitAndWait(ctx, m.childClient, &types.Message{
		To:     m.child.GatewayAddr,
		From:   validator,
		Method: types.MethodSubmitTopDownCheckpoint,
		Params: checkpoint,
		Value:  big.Zero(),
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("top-down checkpoint committed",
		"epoch", epoch,
		"validator", validator,
		"height", receipt.Height,
		"ref", receipt.Ref,
	)

	return receipt, nil
}

// buildCheckpoint collects the messages for the child from the applied nonce
// on, as seen by the parent at the submission height. Resolving the tipset at
// epoch rather than the head gives every validator the same message set.
func (m *TopDownManager) buildCheckpoint(ctx context.Context, epoch types.Epoch) (*types.TopDownCheckpoint, error) {
	state, err := m.childGatewayState(ctx)
	if err != nil {
		return nil, err
	}

	head, err := m.parentClient.ChainHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch parent chain head: %w", ErrChainQuery, err)
	}

	tipset, err := m.parentClient.TipSetAtHeight(ctx, epoch, head)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve parent tipset at %d: %w", ErrChainQuery, epoch, err)
	}

	msgs, err := m.parentClient.TopDownMsgs(ctx, m.child.ID, tipset, state.AppliedTopDownNonce)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch top-down messages from nonce %d: %w",
			ErrChainQuery, state.AppliedTopDownNonce, err)
	}

	return &types.TopDownCheckpoint{Epoch: epoch, TopDownMsgs: msgs}, nil
}
