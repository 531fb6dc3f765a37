package lotus

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/fxamacker/cbor/v2"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

type subnetIDTuple struct {
	_     struct{} `cbor:",toarray"`
	Root  uint64
	Route [][]byte
}

type ipcAddressTuple struct {
	_      struct{} `cbor:",toarray"`
	Subnet subnetIDTuple
	Raw    []byte
}

type storableMsgTuple struct {
	_      struct{} `cbor:",toarray"`
	From   ipcAddressTuple
	To     ipcAddressTuple
	Method uint64
	Params []byte
	Value  []byte
	Nonce  uint64
}

type crossMsgTuple struct {
	_       struct{} `cbor:",toarray"`
	Msg     storableMsgTuple
	Wrapped bool
}

type batchCrossMsgsTuple struct {
	_         struct{} `cbor:",toarray"`
	CrossMsgs []crossMsgTuple
	Fee       []byte
}

type childCheckTuple struct {
	_      struct{} `cbor:",toarray"`
	Source subnetIDTuple
	Checks []cbor.Tag
}

type checkDataTuple struct {
	_         struct{} `cbor:",toarray"`
	Source    subnetIDTuple
	Proof     []byte
	Epoch     int64
	PrevCheck *cbor.Tag
	Children  []childCheckTuple
	CrossMsgs batchCrossMsgsTuple
}

type bottomUpCheckpointTuple struct {
	_    struct{} `cbor:",toarray"`
	Data checkDataTuple
	Sig  []byte
}

type topDownCheckpointTuple struct {
	_           struct{} `cbor:",toarray"`
	Epoch       int64
	TopDownMsgs []crossMsgTuple
}

// encodeParams returns the CBOR actor parameters of a checkpoint
func encodeParams(params interface{}) ([]byte, error) {
	var (
		value interface{}
		err   error
	)

	switch p := params.(type) {
	case nil:
		return nil, nil
	case *types.BottomUpCheckpoint:
		value, err = bottomUpParams(p)
	case *types.TopDownCheckpoint:
		value, err = topDownParams(p)
	default:
		return nil, fmt.Errorf("unsupported message params %T", params)
	}

	if err != nil {
		return nil, err
	}

	return cbor.Marshal(value)
}

func bottomUpParams(c *types.BottomUpCheckpoint) (*bottomUpCheckpointTuple, error) {
	source, err := subnetIDParams(c.Source)
	if err != nil {
		return nil, err
	}

	data := checkDataTuple{
		Source:   source,
		Proof:    c.Proof,
		Epoch:    int64(c.Epoch),
		Children: make([]childCheckTuple, 0, len(c.Children)),
	}

	if !c.IsGenesis() {
		link, err := types.CidLink(c.PrevCheck)
		if err != nil {
			return nil, fmt.Errorf("previous checkpoint: %w", err)
		}

		data.PrevCheck = &link
	}

	for _, child := range c.Children {
		id, err := subnetIDParams(child.Source)
		if err != nil {
			return nil, err
		}

		check := childCheckTuple{Source: id, Checks: make([]cbor.Tag, 0, len(child.Checks))}

		for _, ref := range child.Checks {
			link, err := types.CidLink(ref)
			if err != nil {
				return nil, fmt.Errorf("child checkpoint: %w", err)
			}

			check.Checks = append(check.Checks, link)
		}

		data.Children = append(data.Children, check)
	}

	if data.CrossMsgs.CrossMsgs, err = crossMsgsParams(c.CrossMsgs.Msgs); err != nil {
		return nil, err
	}

	if data.CrossMsgs.Fee, err = tokenAmountBytes(c.CrossMsgs.Fee); err != nil {
		return nil, fmt.Errorf("checkpoint fee: %w", err)
	}

	return &bottomUpCheckpointTuple{Data: data, Sig: []byte{}}, nil
}

func topDownParams(c *types.TopDownCheckpoint) (*topDownCheckpointTuple, error) {
	msgs, err := crossMsgsParams(c.TopDownMsgs)
	if err != nil {
		return nil, err
	}

	return &topDownCheckpointTuple{Epoch: int64(c.Epoch), TopDownMsgs: msgs}, nil
}

func crossMsgsParams(msgs []types.CrossMsg) ([]crossMsgTuple, error) {
	out := make([]crossMsgTuple, 0, len(msgs))

	for _, msg := range msgs {
		from, err := ipcAddressParams(msg.From)
		if err != nil {
			return nil, err
		}

		to, err := ipcAddressParams(msg.To)
		if err != nil {
			return nil, err
		}

		value, err := tokenAmountBytes(msg.Value)
		if err != nil {
			return nil, fmt.Errorf("cross msg value: %w", err)
		}

		out = append(out, crossMsgTuple{
			Msg: storableMsgTuple{
				From:   from,
				To:     to,
				Method: uint64(msg.Method),
				Params: msg.Params,
				Value:  value,
				Nonce:  msg.Nonce,
			},
			Wrapped: msg.Wrapped,
		})
	}

	return out, nil
}

func ipcAddressParams(addr types.IPCAddress) (ipcAddressTuple, error) {
	subnet, err := subnetIDParams(addr.Subnet)
	if err != nil {
		return ipcAddressTuple{}, err
	}

	raw, err := addr.Address.Bytes()
	if err != nil {
		return ipcAddressTuple{}, err
	}

	return ipcAddressTuple{Subnet: subnet, Raw: raw}, nil
}

func subnetIDParams(id types.SubnetID) (subnetIDTuple, error) {
	route := make([][]byte, 0, len(id.Route))

	for _, addr := range id.Route {
		raw, err := addr.Bytes()
		if err != nil {
			return subnetIDTuple{}, fmt.Errorf("subnet %s: %w", id, err)
		}

		route = append(route, raw)
	}

	return subnetIDTuple{Root: id.Root, Route: route}, nil
}

// tokenAmountBytes returns the Filecoin serialization of a token amount. An
// unset amount is zero.
func tokenAmountBytes(v abi.TokenAmount) ([]byte, error) {
	if v.Nil() {
		v = big.Zero()
	}

	return v.Bytes()
}
