package types

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// IPCAddress is an address qualified by the subnet it lives in
type IPCAddress struct {
	Subnet  SubnetID `json:"subnet"`
	Address Address  `json:"address"`
}

// CrossMsg is a message travelling between subnets
type CrossMsg struct {
	From    IPCAddress      `json:"from"`
	To      IPCAddress      `json:"to"`
	Value   abi.TokenAmount `json:"value"`
	Nonce   uint64          `json:"nonce"`
	Method  MethodNum       `json:"method"`
	Params  []byte          `json:"params"`
	Wrapped bool            `json:"wrapped"`
}

// CrossMsgBatch is the set of cross messages carried by a bottom-up checkpoint
type CrossMsgBatch struct {
	Msgs []CrossMsg        `json:"msgs"`
	Fee  abi.TokenAmount `json:"fee"`
}

// ChildCheck references the checkpoints committed by a grandchild subnet
type ChildCheck struct {
	Source SubnetID  `json:"source"`
	Checks []cid.Cid `json:"checks"`
}

// BottomUpCheckpoint carries the finality proof and outgoing cross messages of
// a child subnet at a given epoch
type BottomUpCheckpoint struct {
	Source    SubnetID      `json:"source"`
	Epoch     Epoch         `json:"epoch"`
	PrevCheck cid.Cid       `json:"prev_check"`
	Children  []ChildCheck  `json:"children"`
	CrossMsgs CrossMsgBatch `json:"cross_msgs"`
	Proof     []byte        `json:"proof"`
}

// IsGenesis reports whether the checkpoint has no predecessor
func (c *BottomUpCheckpoint) IsGenesis() bool {
	return !c.PrevCheck.Defined()
}

// TopDownCheckpoint carries the parent to child messages observed up to an epoch
type TopDownCheckpoint struct {
	Epoch       Epoch      `json:"epoch"`
	TopDownMsgs []CrossMsg `json:"top_down_msgs"`
}

// Proof binds a checkpoint to an execution snapshot of the child chain
type Proof struct {
	TipSet    []cid.Cid `json:"tipset"`
	StateRoot cid.Cid   `json:"state_root"`
}

type proofTuple struct {
	_         struct{} `cbor:",toarray"`
	TipSet    []cbor.Tag
	StateRoot cbor.Tag
}

// Encode returns the tuple encoded form of the proof attached to checkpoints.
// Cids are encoded as IPLD links.
func (p *Proof) Encode() ([]byte, error) {
	tuple := proofTuple{TipSet: make([]cbor.Tag, 0, len(p.TipSet))}

	for _, c := range p.TipSet {
		link, err := CidLink(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode proof tipset: %w", err)
		}

		tuple.TipSet = append(tuple.TipSet, link)
	}

	root, err := CidLink(p.StateRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof state root: %w", err)
	}

	tuple.StateRoot = root

	data, err := cbor.Marshal(&tuple)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof: %w", err)
	}

	return data, nil
}

// DecodeProof decodes a proof produced by Proof.Encode
func DecodeProof(data []byte) (*Proof, error) {
	var tuple proofTuple
	if err := cbor.Unmarshal(data, &tuple); err != nil {
		return nil, fmt.Errorf("failed to decode proof: %w", err)
	}

	p := &Proof{TipSet: make([]cid.Cid, 0, len(tuple.TipSet))}

	for _, link := range tuple.TipSet {
		c, err := CidFromLink(link)
		if err != nil {
			return nil, fmt.Errorf("failed to decode proof tipset: %w", err)
		}

		p.TipSet = append(p.TipSet, c)
	}

	root, err := CidFromLink(tuple.StateRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to decode proof state root: %w", err)
	}

	p.StateRoot = root

	return p, nil
}
