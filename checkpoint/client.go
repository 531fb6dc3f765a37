package checkpoint

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

// ChainClient is the capability a checkpoint manager needs from one subnet chain.
// Every call may block on network I/O.
type ChainClient interface {
	// ChainHead returns the current head of the chain
	ChainHead(ctx context.Context) (*types.TipSet, error)

	// TipSetAtHeight resolves the tipset at height on the chain leading to head
	TipSetAtHeight(ctx context.Context, height types.Epoch, head *types.TipSet) (*types.TipSet, error)

	// GatewayState reads the gateway actor state of the chain at tipset
	GatewayState(ctx context.Context, tipset *types.TipSet) (*types.GatewayState, error)

	// SubnetActorState reads the state of the subnet actor governing subnet at tipset
	SubnetActorState(ctx context.Context, subnet types.SubnetID, tipset *types.TipSet) (*types.SubnetActorState, error)

	// CheckpointTemplate returns the bottom-up checkpoint template the gateway built for epoch
	CheckpointTemplate(ctx context.Context, epoch types.Epoch) (*types.BottomUpCheckpoint, error)

	// PrevCheckpointForChild returns the cid of the last checkpoint committed
	// for child. cid.Undef means no checkpoint was committed yet.
	PrevCheckpointForChild(ctx context.Context, child types.SubnetID) (cid.Cid, error)

	// TopDownMsgs returns the messages for child with a nonce of at least nonce,
	// as seen by the gateway at tipset
	TopDownMsgs(ctx context.Context, child types.SubnetID, tipset *types.TipSet, nonce uint64) ([]types.CrossMsg, error)

	// HasVotedBottomUp reports whether validator already submitted the bottom-up
	// checkpoint of child for epoch
	HasVotedBottomUp(ctx context.Context, child types.SubnetID, epoch types.Epoch, validator types.Address) (bool, error)

	// HasVotedTopDown reports whether validator already submitted the top-down checkpoint for epoch
	HasVotedTopDown(ctx context.Context, epoch types.Epoch, validator types.Address) (bool, error)

	// SubmitMessage signs and pushes msg to the chain
	SubmitMessage(ctx context.Context, msg *types.Message) (types.SubmissionRef, error)

	// WaitForCommitment blocks until the referenced message is committed
	WaitForCommitment(ctx context.Context, ref types.SubmissionRef) (*types.Receipt, error)

	// Close releases the resources held by the client
	Close() error
}
