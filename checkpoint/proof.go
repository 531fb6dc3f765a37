package checkpoint

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

// ProofBuilder assembles checkpoint proofs from the chain the checkpoint is about
type ProofBuilder struct {
	client ChainClient
}

func NewProofBuilder(client ChainClient) *ProofBuilder {
	return &ProofBuilder{client: client}
}

// Build returns the tipset and state root of the chain at height. It fails for
// heights the chain has not reached yet.
func (p *ProofBuilder) Build(ctx context.Context, height types.Epoch) (*types.Proof, error) {
	head, err := p.client.ChainHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch chain head: %w", ErrProofConstruction, err)
	}

	if head.Height < height {
		return nil, fmt.Errorf("%w: chain head %d is behind height %d", ErrProofConstruction, head.Height, height)
	}

	tipset, err := p.client.TipSetAtHeight(ctx, height, head)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve tipset at %d: %w", ErrProofConstruction, height, err)
	}

	if len(tipset.Cids) == 0 {
		return nil, fmt.Errorf("%w: empty tipset at height %d", ErrProofConstruction, height)
	}

	if !tipset.ParentStateRoot.Defined() {
		return nil, fmt.Errorf("%w: no state root at height %d", ErrProofConstruction, height)
	}

	cids := make([]cid.Cid, len(tipset.Cids))
	copy(cids, tipset.Cids)

	return &types.Proof{TipSet: cids, StateRoot: tipset.ParentStateRoot}, nil
}
