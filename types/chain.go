package types

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
)

// TipSet identifies a chain head. Cids holds the block references of the tipset,
// EVM chains report a single block hash.
type TipSet struct {
	Cids            []cid.Cid `json:"cids"`
	Height          Epoch     `json:"height"`
	ParentStateRoot cid.Cid   `json:"parent_state_root"`
}

// Message is an actor invocation to be signed and pushed by a chain client.
// Params holds a checkpoint value the client encodes for its chain.
type Message struct {
	To     Address
	From   Address
	Method MethodNum
	Params interface{}
	Value  abi.TokenAmount
}

// SubmissionRef references a pushed message: a message cid or a transaction hash
type SubmissionRef string

// Receipt reports the commitment of a submitted message
type Receipt struct {
	Ref      SubmissionRef `json:"ref"`
	Height   Epoch         `json:"height"`
	ExitCode int64         `json:"exit_code"`
}

// Validator is a member of a subnet validator set. WorkerAddr is the account
// the validator signs with in the child subnet, when it differs from Addr.
type Validator struct {
	Addr       Address         `json:"addr"`
	WorkerAddr Address         `json:"worker_addr,omitempty"`
	NetAddr    string          `json:"net_addr"`
	Weight     abi.TokenAmount `json:"weight"`
}

// Worker returns the account of the validator in the child subnet
func (v *Validator) Worker() Address {
	if v.WorkerAddr != "" {
		return v.WorkerAddr
	}

	return v.Addr
}

// GatewayState is the part of the gateway actor state read by the checkpointer
type GatewayState struct {
	BottomUpCheckPeriod      Epoch  `json:"bottom_up_check_period"`
	TopDownCheckPeriod       Epoch  `json:"top_down_check_period"`
	AppliedTopDownNonce      uint64 `json:"applied_top_down_nonce"`
	TopDownGenesisEpoch      Epoch  `json:"top_down_genesis_epoch"`
	TopDownLastExecutedEpoch Epoch  `json:"top_down_last_executed_epoch"`
	Initialized              bool   `json:"initialized"`
}

// SubnetActorState is the part of the subnet actor state read by the checkpointer
type SubnetActorState struct {
	BottomUpCheckPeriod       Epoch       `json:"bottom_up_check_period"`
	Validators                []Validator `json:"validators"`
	MinValidators             uint64      `json:"min_validators"`
	BottomUpGenesisEpoch      Epoch       `json:"bottom_up_genesis_epoch"`
	BottomUpLastExecutedEpoch Epoch       `json:"bottom_up_last_executed_epoch"`
}

// ValidatorAddrs returns the addresses of the validator set
func (s *SubnetActorState) ValidatorAddrs() []Address {
	addrs := make([]Address, 0, len(s.Validators))
	for _, v := range s.Validators {
		addrs = append(addrs, v.Addr)
	}

	return addrs
}

// WorkerAddrs returns the child subnet accounts of the validator set
func (s *SubnetActorState) WorkerAddrs() []Address {
	addrs := make([]Address, 0, len(s.Validators))
	for i := range s.Validators {
		addrs = append(addrs, s.Validators[i].Worker())
	}

	return addrs
}
