package lotus

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

type blockHeader struct {
	ParentStateRoot cid.Cid `json:"ParentStateRoot"`
}

type tipSet struct {
	Cids   []cid.Cid     `json:"Cids"`
	Blocks []blockHeader `json:"Blocks"`
	Height int64         `json:"Height"`
}

func (t *tipSet) toTipSet() (*types.TipSet, error) {
	if len(t.Cids) == 0 {
		return nil, fmt.Errorf("empty tipset at height %d", t.Height)
	}

	ts := &types.TipSet{Height: types.Epoch(t.Height), Cids: t.Cids}
	if len(t.Blocks) > 0 {
		ts.ParentStateRoot = t.Blocks[0].ParentStateRoot
	}

	return ts, nil
}

type voting struct {
	GenesisEpoch       int64 `json:"GenesisEpoch"`
	LastVotingExecuted int64 `json:"LastVotingExecuted"`
}

type gatewayState struct {
	BottomUpCheckPeriod     int64  `json:"BottomUpCheckPeriod"`
	TopDownCheckPeriod      int64  `json:"TopDownCheckPeriod"`
	AppliedTopdownNonce     uint64 `json:"AppliedTopdownNonce"`
	TopDownCheckpointVoting voting `json:"TopDownCheckpointVoting"`
	Initialized             bool   `json:"Initialized"`
}

func (g *gatewayState) toGatewayState() *types.GatewayState {
	return &types.GatewayState{
		BottomUpCheckPeriod:      types.Epoch(g.BottomUpCheckPeriod),
		TopDownCheckPeriod:       types.Epoch(g.TopDownCheckPeriod),
		AppliedTopDownNonce:      g.AppliedTopdownNonce,
		TopDownGenesisEpoch:      types.Epoch(g.TopDownCheckpointVoting.GenesisEpoch),
		TopDownLastExecutedEpoch: types.Epoch(g.TopDownCheckpointVoting.LastVotingExecuted),
		Initialized:              g.Initialized,
	}
}

type validator struct {
	Addr       string          `json:"addr"`
	NetAddr    string          `json:"net_addr"`
	WorkerAddr string          `json:"worker_addr"`
	Weight     abi.TokenAmount `json:"weight"`
}

type validatorSet struct {
	Validators          []validator `json:"validators"`
	ConfigurationNumber uint64      `json:"configuration_number"`
}

type subnetActorState struct {
	BottomUpCheckPeriod      int64        `json:"BottomUpCheckPeriod"`
	ValidatorSet             validatorSet `json:"ValidatorSet"`
	MinValidators            uint64       `json:"MinValidators"`
	BottomUpCheckpointVoting voting       `json:"BottomUpCheckpointVoting"`
}

func (s *subnetActorState) toSubnetActorState() (*types.SubnetActorState, error) {
	state := &types.SubnetActorState{
		BottomUpCheckPeriod:       types.Epoch(s.BottomUpCheckPeriod),
		MinValidators:             s.MinValidators,
		BottomUpGenesisEpoch:      types.Epoch(s.BottomUpCheckpointVoting.GenesisEpoch),
		BottomUpLastExecutedEpoch: types.Epoch(s.BottomUpCheckpointVoting.LastVotingExecuted),
	}

	for _, v := range s.ValidatorSet.Validators {
		addr, err := types.ParseAddress(v.Addr)
		if err != nil {
			return nil, fmt.Errorf("validator: %w", err)
		}

		validator := types.Validator{Addr: addr, NetAddr: v.NetAddr, Weight: orZero(v.Weight)}

		if v.WorkerAddr != "" {
			if validator.WorkerAddr, err = types.ParseAddress(v.WorkerAddr); err != nil {
				return nil, fmt.Errorf("validator %s worker: %w", addr, err)
			}
		}

		state.Validators = append(state.Validators, validator)
	}

	return state, nil
}

// subnetIDMap is the json form of a subnet id: the parent path and the subnet actor
type subnetIDMap struct {
	Parent string `json:"Parent"`
	Actor  string `json:"Actor"`
}

func toSubnetIDMap(id types.SubnetID) (subnetIDMap, error) {
	parent, ok := id.Parent()
	if !ok {
		return subnetIDMap{}, fmt.Errorf("%w: root %s has no parent", types.ErrInvalidSubnetID, id)
	}

	return subnetIDMap{Parent: parent.String(), Actor: id.SubnetActor().String()}, nil
}

func (m subnetIDMap) toSubnetID() (types.SubnetID, error) {
	parent, err := types.ParseSubnetID(m.Parent)
	if err != nil {
		return types.SubnetID{}, err
	}

	if m.Actor == "" {
		return parent, nil
	}

	actor, err := types.ParseAddress(m.Actor)
	if err != nil {
		return types.SubnetID{}, err
	}

	route := append(append([]types.Address{}, parent.Route...), actor)

	return types.SubnetID{Root: parent.Root, Route: route}, nil
}

type ipcAddress struct {
	SubnetID   subnetIDMap `json:"SubnetId"`
	RawAddress string      `json:"RawAddress"`
}

func (a ipcAddress) toIPCAddress() (types.IPCAddress, error) {
	subnet, err := a.SubnetID.toSubnetID()
	if err != nil {
		return types.IPCAddress{}, err
	}

	addr, err := types.ParseAddress(a.RawAddress)
	if err != nil {
		return types.IPCAddress{}, err
	}

	return types.IPCAddress{Subnet: subnet, Address: addr}, nil
}

type storableMsg struct {
	From   ipcAddress      `json:"From"`
	To     ipcAddress      `json:"To"`
	Method uint64          `json:"Method"`
	Params []byte          `json:"Params"`
	Value  abi.TokenAmount `json:"Value"`
	Nonce  uint64          `json:"Nonce"`
}

type crossMsg struct {
	Msg     storableMsg `json:"Msg"`
	Wrapped bool        `json:"Wrapped"`
}

func (m *crossMsg) toCrossMsg() (types.CrossMsg, error) {
	from, err := m.Msg.From.toIPCAddress()
	if err != nil {
		return types.CrossMsg{}, fmt.Errorf("cross msg sender: %w", err)
	}

	to, err := m.Msg.To.toIPCAddress()
	if err != nil {
		return types.CrossMsg{}, fmt.Errorf("cross msg receiver: %w", err)
	}

	return types.CrossMsg{
		From:    from,
		To:      to,
		Value:   orZero(m.Msg.Value),
		Nonce:   m.Msg.Nonce,
		Method:  types.MethodNum(m.Msg.Method),
		Params:  m.Msg.Params,
		Wrapped: m.Wrapped,
	}, nil
}

func toCrossMsgs(msgs []crossMsg) ([]types.CrossMsg, error) {
	out := make([]types.CrossMsg, 0, len(msgs))

	for i := range msgs {
		msg, err := msgs[i].toCrossMsg()
		if err != nil {
			return nil, err
		}

		out = append(out, msg)
	}

	return out, nil
}

type batchCrossMsgs struct {
	CrossMsgs []crossMsg      `json:"CrossMsgs"`
	Fee       abi.TokenAmount `json:"Fee"`
}

type childCheck struct {
	Source subnetIDMap `json:"Source"`
	Checks []cid.Cid   `json:"Checks"`
}

type checkData struct {
	Source    subnetIDMap     `json:"Source"`
	Proof     []byte          `json:"Proof"`
	Epoch     int64           `json:"Epoch"`
	PrevCheck *cid.Cid        `json:"PrevCheck"`
	Children  []childCheck    `json:"Children"`
	CrossMsgs *batchCrossMsgs `json:"CrossMsgs"`
}

type checkpoint struct {
	Data checkData `json:"Data"`
	Sig  []byte    `json:"Sig"`
}

func (c *checkpoint) toBottomUpCheckpoint() (*types.BottomUpCheckpoint, error) {
	source, err := c.Data.Source.toSubnetID()
	if err != nil {
		return nil, fmt.Errorf("checkpoint source: %w", err)
	}

	out := &types.BottomUpCheckpoint{
		Source: source,
		Epoch:  types.Epoch(c.Data.Epoch),
		Proof:  c.Data.Proof,
	}

	if c.Data.PrevCheck != nil {
		out.PrevCheck = *c.Data.PrevCheck
	}

	for _, child := range c.Data.Children {
		id, err := child.Source.toSubnetID()
		if err != nil {
			return nil, fmt.Errorf("child checkpoint source: %w", err)
		}

		out.Children = append(out.Children, types.ChildCheck{Source: id, Checks: child.Checks})
	}

	if c.Data.CrossMsgs != nil {
		if out.CrossMsgs.Msgs, err = toCrossMsgs(c.Data.CrossMsgs.CrossMsgs); err != nil {
			return nil, err
		}

		out.CrossMsgs.Fee = orZero(c.Data.CrossMsgs.Fee)
	}

	return out, nil
}

type prevCheckpointResponse struct {
	CID *cid.Cid `json:"CID"`
}

type message struct {
	To     string          `json:"To"`
	From   string          `json:"From"`
	Value  abi.TokenAmount `json:"Value"`
	Method uint64          `json:"Method"`
	Params []byte          `json:"Params"`
}

type messageSendSpec struct {
	MaxFee abi.TokenAmount `json:"MaxFee"`
}

type signedMessage struct {
	Message message `json:"Message"`
	CID     cid.Cid `json:"CID"`
}

type messageReceipt struct {
	ExitCode int64  `json:"ExitCode"`
	Return   []byte `json:"Return"`
	GasUsed  int64  `json:"GasUsed"`
}

type msgLookup struct {
	Message cid.Cid        `json:"Message"`
	Receipt messageReceipt `json:"Receipt"`
	TipSet  []cid.Cid      `json:"TipSet"`
	Height  int64          `json:"Height"`
}

// orZero replaces an unset token amount with zero
func orZero(v abi.TokenAmount) abi.TokenAmount {
	if v.Nil() {
		return big.Zero()
	}

	return v
}
