package checkpoint

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

// CheckpointManager drives the checkpoint protocol of one direction for one subnet pair
type CheckpointManager interface {
	fmt.Stringer

	// Direction returns the checkpoint direction handled by the manager
	Direction() types.Direction
	// Parent returns the parent subnet of the managed pair
	Parent() *types.Subnet
	// Child returns the child subnet of the managed pair
	Child() *types.Subnet
	// Target returns the subnet checkpoints are submitted to. Its local accounts sign the submissions.
	Target() *types.Subnet

	// CheckpointPeriod returns the checkpoint period read when the manager was built
	CheckpointPeriod() types.Epoch
	// Validators returns the current on-chain validator set of the child subnet
	Validators(ctx context.Context) ([]types.Address, error)
	// LastExecutedEpoch returns the last epoch a checkpoint was executed for
	LastExecutedEpoch(ctx context.Context) (types.Epoch, error)
	// CurrentEpoch returns the height checkpoint submission is scheduled against
	CurrentEpoch(ctx context.Context) (types.Epoch, error)
	// PresubmissionCheck reports whether the subnet is ready for checkpoints
	PresubmissionCheck(ctx context.Context) (bool, error)
	// ShouldSubmitInEpoch reports whether validator still has to submit for epoch
	ShouldSubmitInEpoch(ctx context.Context, validator types.Address, epoch types.Epoch) (bool, error)
	// SubmitCheckpoint builds and submits the checkpoint for epoch on behalf of validator,
	// and returns the receipt of the committed submission
	SubmitCheckpoint(ctx context.Context, epoch types.Epoch, validator types.Address) (*types.Receipt, error)

	// Close releases the chain clients of the manager
	Close() error
}

// checkpointMetadata holds what both checkpoint directions share
type checkpointMetadata struct {
	parent       *types.Subnet
	child        *types.Subnet
	period       types.Epoch
	parentClient ChainClient
	childClient  ChainClient
	logger       hclog.Logger
}

func (m *checkpointMetadata) Parent() *types.Subnet {
	return m.parent
}

func (m *checkpointMetadata) Child() *types.Subnet {
	return m.child
}

func (m *checkpointMetadata) CheckpointPeriod() types.Epoch {
	return m.period
}

// Validators reads the child validator set from the subnet actor in the parent
func (m *checkpointMetadata) Validators(ctx context.Context) ([]types.Address, error) {
	state, err := m.subnetActorState(ctx)
	if err != nil {
		return nil, err
	}

	return state.ValidatorAddrs(), nil
}

// CurrentEpoch returns the parent chain height. Both directions are scheduled against it.
func (m *checkpointMetadata) CurrentEpoch(ctx context.Context) (types.Epoch, error) {
	head, err := m.parentClient.ChainHead(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to fetch parent chain head: %w", ErrChainQuery, err)
	}

	return head.Height, nil
}

func (m *checkpointMetadata) Close() error {
	var result error

	if err := m.parentClient.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close parent client: %w", err))
	}

	if err := m.childClient.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close child client: %w", err))
	}

	return result
}

func (m *checkpointMetadata) subnetActorState(ctx context.Context) (*types.SubnetActorState, error) {
	head, err := m.parentClient.ChainHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch parent chain head: %w", ErrChainQuery, err)
	}

	state, err := m.parentClient.SubnetActorState(ctx, m.child.ID, head)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read subnet actor state of %s: %w", ErrChainQuery, m.child.ID, err)
	}

	return state, nil
}

func (m *checkpointMetadata) childGatewayState(ctx context.Context) (*types.GatewayState, error) {
	head, err := m.childClient.ChainHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch child chain head: %w", ErrChainQuery, err)
	}

	state, err := m.childClient.GatewayState(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read gateway state of %s: %w", ErrChainQuery, m.child.ID, err)
	}

	return state, nil
}

func (m *checkpointMetadata) parentGatewayState(ctx context.Context) (*types.GatewayState, error) {
	head, err := m.parentClient.ChainHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch parent chain head: %w", ErrChainQuery, err)
	}

	state, err := m.parentClient.GatewayState(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read gateway state of %s: %w", ErrChainQuery, m.parent.ID, err)
	}

	return state, nil
}

func (m *checkpointMetadata) describe(dir types.Direction) string {
	return fmt.Sprintf("%s checkpoint manager for %s (parent %s)", dir, m.child.ID, m.parent.ID)
}

func validPeriod(period types.Epoch, what string) error {
	if period <= 0 {
		return fmt.Errorf("%w: invalid %s checkpoint period %d", ErrChainQuery, what, period)
	}

	return nil
}

// submitAndWait pushes msg through client and waits for its commitment
func submitAndWait(ctx context.Context, client ChainClient, msg *types.Message) (*types.Receipt, error) {
	ref, err := client.SubmitMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to push message to %s: %w", ErrSubmission, msg.To, err)
	}

	receipt, err := client.WaitForCommitment(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: failed waiting for message %s: %w", ErrSubmission, ref, err)
	}

	if receipt.ExitCode != 0 {
		return nil, fmt.Errorf("%w: message %s failed with exit code %d", ErrSubmission, ref, receipt.ExitCode)
	}

	return receipt, nil
}
