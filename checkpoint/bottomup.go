package checkpoint

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/hashicorp/go-hclog"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

var _ CheckpointManager = (*BottomUpManager)(nil)

// BottomUpManager submits the checkpoints of a child subnet to its subnet actor in the parent
type BottomUpManager struct {
	checkpointMetadata
	proofs *ProofBuilder
}

// NewBottomUpManager builds a bottom-up manager. The checkpoint period is read
// once from the subnet actor state in the parent.
func NewBottomUpManager(
	ctx context.Context,
	pair types.SubnetPair,
	parentClient, childClient ChainClient,
	logger hclog.Logger,
) (*BottomUpManager, error) {
	m := &BottomUpManager{
		checkpointMetadata: checkpointMetadata{
			parent:       pair.Parent,
			child:        pair.Child,
			parentClient: parentClient,
			childClient:  childClient,
			logger:       logger,
		},
		proofs: NewProofBuilder(childClient),
	}

	state, err := m.subnetActorState(ctx)
	if err != nil {
		return nil, err
	}

	if err := validPeriod(state.BottomUpCheckPeriod, "bottom-up"); err != nil {
		return nil, err
	}

	m.period = state.BottomUpCheckPeriod

	return m, nil
}

func (m *BottomUpManager) String() string {
	return m.describe(types.BottomUp)
}

func (m *BottomUpManager) Direction() types.Direction {
	return types.BottomUp
}

// Target is the parent, bottom-up checkpoints are submitted there
func (m *BottomUpManager) Target() *types.Subnet {
	return m.parent
}

func (m *BottomUpManager) LastExecutedEpoch(ctx context.Context) (types.Epoch, error) {
	state, err := m.subnetActorState(ctx)
	if err != nil {
		return 0, err
	}

	return state.BottomUpLastExecutedEpoch, nil
}

// PresubmissionCheck always passes for bottom-up checkpoints
func (m *BottomUpManager) PresubmissionCheck(context.Context) (bool, error) {
	return true, nil
}

func (m *BottomUpManager) ShouldSubmitInEpoch(
	ctx context.Context,
	validator types.Address,
	epoch types.Epoch,
) (bool, error) {
	voted, err := m.parentClient.HasVotedBottomUp(ctx, m.child.ID, epoch, validator)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check bottom-up vote of %s at %d: %w",
			ErrChainQuery, validator, epoch, err)
	}

	return !voted, nil
}

func (m *BottomUpManager) SubmitCheckpoint(
	ctx context.Context,
	epoch types.Epoch,
	validator types.Address,
) (*types.Receipt, error) {
	checkpoint, err := m.buildCheckpoint(ctx, epoch)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("submitting bottom-up checkpoint",
		"epoch", epoch,
		"validator", validator,
		"cross_msgs", len(checkpoint.CrossMsgs.Msgs),
		"children", len(checkpoint.Children),
		"prev_check", checkpoint.PrevCheck,
	)

	receipt, err := submitAndWait(ctx, m.parentClient, &types.Message{
		To:     m.child.ID.SubnetActor(),
		From:   validator,
		Method: types.MethodSubmitCheckpoint,
		Params: checkpoint,
		Value:  big.Zero(),
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("bottom-up checkpoint committed",
		"epoch", epoch,
		"validator", validator,
		"height", receipt.Height,
		"ref", receipt.Ref,
	)

	return receipt, nil
}

// buildCheckpoint fills the child gateway template with the previous checkpoint
// reference from the parent and a proof of the child chain at epoch
func (m *BottomUpManager) buildCheckpoint(ctx context.Context, epoch types.Epoch) (*types.BottomUpCheckpoint, error) {
	template, err := m.childClient.CheckpointTemplate(ctx, epoch)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch checkpoint template at %d: %w", ErrChainQuery, epoch, err)
	}

	prev, err := m.parentClient.PrevCheckpointForChild(ctx, m.child.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch previous checkpoint of %s: %w", ErrChainQuery, m.child.ID, err)
	}

	proof, err := m.proofs.Build(ctx, epoch)
	if err != nil {
		return nil, err
	}

	encoded, err := proof.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProofConstruction, err)
	}

	checkpoint := *template
	checkpoint.Source = m.child.ID
	checkpoint.Epoch = epoch
	checkpoint.PrevCheck = prev
	checkpoint.Proof = encoded

	if checkpoint.CrossMsgs.Fee.Nil() {
		checkpoint.CrossMsgs.Fee = big.Zero()
	}

	return &checkpoint, nil
}
