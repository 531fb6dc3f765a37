package evm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/filecoin-project/go-address"
	fabi "github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

var (
	errDecode = errors.New("failed to decode contract output")

	// delegatedAddressType is the payload of a delegated FvmAddress
	delegatedAddressType = abi.MustNewType(
		"tuple(tuple(uint64 namespace, uint128 length, bytes buffer) addr)")
)

func toEthAddress(addr types.Address) (ethgo.Address, error) {
	eth, err := addr.EthAddress()
	if err != nil {
		return ethgo.ZeroAddress, err
	}

	return ethgo.Address(eth), nil
}

func fromEthAddress(addr ethgo.Address) types.Address {
	return types.EthAddressFromBytes(addr)
}

func subnetIDToABI(id types.SubnetID) (map[string]interface{}, error) {
	route := make([]ethgo.Address, 0, len(id.Route))

	for _, addr := range id.Route {
		eth, err := toEthAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("subnet %s: %w", id, err)
		}

		route = append(route, eth)
	}

	return map[string]interface{}{
		"root":  id.Root,
		"route": route,
	}, nil
}

func fvmAddressToABI(addr types.Address) (map[string]interface{}, error) {
	fil, err := addr.Filecoin()
	if err != nil {
		return nil, err
	}

	payload := fil.Payload()

	if fil.Protocol() == address.Delegated {
		ns, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, fmt.Errorf("%w: %s", types.ErrInvalidAddress, addr)
		}

		sub := payload[n:]

		payload, err = delegatedAddressType.Encode(map[string]interface{}{
			"addr": map[string]interface{}{
				"namespace": ns,
				"length":    big.NewInt(int64(len(sub))),
				"buffer":    sub,
			},
		})
		if err != nil {
			return nil, err
		}
	}

	return map[string]interface{}{
		"addrType": uint8(fil.Protocol()),
		"payload":  payload,
	}, nil
}

// fvmAddressFromABI is the inverse of fvmAddressToABI
func fvmAddressFromABI(prefix string, v interface{}) (types.Address, error) {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: fvm address", errDecode)
	}

	proto, ok := raw["addrType"].(uint8)
	if !ok {
		return "", fmt.Errorf("%w: address type", errDecode)
	}

	payload, ok := raw["payload"].([]byte)
	if !ok {
		return "", fmt.Errorf("%w: address payload", errDecode)
	}

	if address.Protocol(proto) != address.Delegated {
		return types.NewAddressFromBytes(prefix, append([]byte{proto}, payload...))
	}

	decoded, err := delegatedAddressType.Decode(payload)
	if err != nil {
		return "", fmt.Errorf("%w: delegated address: %w", errDecode, err)
	}

	outer, _ := decoded.(map[string]interface{})
	inner, _ := outer["addr"].(map[string]interface{})
	ns, _ := inner["namespace"].(uint64)
	length, _ := inner["length"].(*big.Int)
	buffer, _ := inner["buffer"].([]byte)

	if length == nil || !length.IsInt64() || length.Int64() != int64(len(buffer)) {
		return "", fmt.Errorf("%w: delegated address length mismatch", errDecode)
	}

	fil, err := address.NewDelegatedAddress(ns, buffer)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrInvalidAddress, err)
	}

	return types.FromFilecoin(prefix, fil), nil
}

func ipcAddressToABI(addr types.IPCAddress) (map[string]interface{}, error) {
	subnet, err := subnetIDToABI(addr.Subnet)
	if err != nil {
		return nil, err
	}

	raw, err := fvmAddressToABI(addr.Address)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"subnetId":   subnet,
		"rawAddress": raw,
	}, nil
}

func crossMsgsToABI(msgs []types.CrossMsg) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(msgs))

	for _, msg := range msgs {
		from, err := ipcAddressToABI(msg.From)
		if err != nil {
			return nil, fmt.Errorf("cross msg sender: %w", err)
		}

		to, err := ipcAddressToABI(msg.To)
		if err != nil {
			return nil, fmt.Errorf("cross msg receiver: %w", err)
		}

		var method [4]byte

		binary.BigEndian.PutUint32(method[:], uint32(msg.Method))

		out = append(out, map[string]interface{}{
			"message": map[string]interface{}{
				"from":   from,
				"to":     to,
				"value":  nonNil(msg.Value),
				"nonce":  msg.Nonce,
				"method": method,
				"params": nonNilBytes(msg.Params),
			},
			"wrapped": msg.Wrapped,
		})
	}

	return out, nil
}

func bottomUpCheckpointToABI(c *types.BottomUpCheckpoint) (map[string]interface{}, error) {
	source, err := subnetIDToABI(c.Source)
	if err != nil {
		return nil, err
	}

	msgs, err := crossMsgsToABI(c.CrossMsgs.Msgs)
	if err != nil {
		return nil, err
	}

	children := make([]map[string]interface{}, 0, len(c.Children))

	for _, child := range c.Children {
		id, err := subnetIDToABI(child.Source)
		if err != nil {
			return nil, err
		}

		checks := make([][32]byte, 0, len(child.Checks))

		for _, check := range child.Checks {
			hash, err := toHash(check)
			if err != nil {
				return nil, fmt.Errorf("child checkpoint of %s: %w", child.Source, err)
			}

			checks = append(checks, hash)
		}

		children = append(children, map[string]interface{}{"source": id, "checks": checks})
	}

	prevHash, err := toHash(c.PrevCheck)
	if err != nil {
		return nil, fmt.Errorf("previous checkpoint: %w", err)
	}

	return map[string]interface{}{
		"source":    source,
		"epoch":     uint64(c.Epoch),
		"fee":       nonNil(c.CrossMsgs.Fee),
		"crossMsgs": msgs,
		"children":  children,
		"prevHash":  prevHash,
		"proof":     nonNilBytes(c.Proof),
	}, nil
}

func topDownCheckpointToABI(c *types.TopDownCheckpoint) (map[string]interface{}, error) {
	msgs, err := crossMsgsToABI(c.TopDownMsgs)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"epoch":       uint64(c.Epoch),
		"topDownMsgs": msgs,
	}, nil
}

// toHash returns the 32 byte digest a contract stores for a cid. Checkpoints
// of EVM subnets are referenced by their keccak hash, cid.Undef is the zero hash.
func toHash(c cid.Cid) ([32]byte, error) {
	var out [32]byte

	if !c.Defined() {
		return out, nil
	}

	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return out, fmt.Errorf("invalid checkpoint cid %s: %w", c, err)
	}

	if len(decoded.Digest) != len(out) {
		return out, fmt.Errorf("checkpoint cid %s has a %d byte digest", c, len(decoded.Digest))
	}

	copy(out[:], decoded.Digest)

	return out, nil
}

// fromHash wraps a keccak hash read from a contract into a raw cid. The zero
// hash is cid.Undef.
func fromHash(h [32]byte) (cid.Cid, error) {
	if h == ([32]byte{}) {
		return cid.Undef, nil
	}

	encoded, err := mh.Encode(h[:], mh.KECCAK_256)
	if err != nil {
		return cid.Undef, err
	}

	return cid.NewCidV1(cid.Raw, encoded), nil
}

func subnetIDFromABI(v interface{}) (types.SubnetID, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return types.SubnetID{}, fmt.Errorf("%w: subnet id", errDecode)
	}

	root, ok := m["root"].(uint64)
	if !ok {
		return types.SubnetID{}, fmt.Errorf("%w: subnet root", errDecode)
	}

	route, ok := m["route"].([]ethgo.Address)
	if !ok {
		return types.SubnetID{}, fmt.Errorf("%w: subnet route", errDecode)
	}

	id := types.NewRootID(root)
	for _, addr := range route {
		id.Route = append(id.Route, fromEthAddress(addr))
	}

	return id, nil
}

func (c *Client) ipcAddressFromABI(v interface{}) (types.IPCAddress, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return types.IPCAddress{}, fmt.Errorf("%w: ipc address", errDecode)
	}

	subnet, err := subnetIDFromABI(m["subnetId"])
	if err != nil {
		return types.IPCAddress{}, err
	}

	addr, err := fvmAddressFromABI(c.prefix, m["rawAddress"])
	if err != nil {
		return types.IPCAddress{}, err
	}

	return types.IPCAddress{Subnet: subnet, Address: addr}, nil
}

func (c *Client) crossMsgsFromABI(v interface{}) ([]types.CrossMsg, error) {
	raw, ok := v.([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: cross messages", errDecode)
	}

	out := make([]types.CrossMsg, 0, len(raw))

	for _, item := range raw {
		msg, ok := item["message"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: cross message", errDecode)
		}

		from, err := c.ipcAddressFromABI(msg["from"])
		if err != nil {
			return nil, fmt.Errorf("cross msg sender: %w", err)
		}

		to, err := c.ipcAddressFromABI(msg["to"])
		if err != nil {
			return nil, fmt.Errorf("cross msg receiver: %w", err)
		}

		value, _ := msg["value"].(*big.Int)
		nonce, _ := msg["nonce"].(uint64)
		method, _ := msg["method"].([4]byte)
		params, _ := msg["params"].([]byte)
		wrapped, _ := item["wrapped"].(bool)

		out = append(out, types.CrossMsg{
			From:    from,
			To:      to,
			Value:   tokenAmount(value),
			Nonce:   nonce,
			Method:  types.MethodNum(binary.BigEndian.Uint32(method[:])),
			Params:  params,
			Wrapped: wrapped,
		})
	}

	return out, nil
}

func (c *Client) bottomUpCheckpointFromABI(v interface{}) (*types.BottomUpCheckpoint, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: checkpoint", errDecode)
	}

	source, err := subnetIDFromABI(m["source"])
	if err != nil {
		return nil, err
	}

	epoch, ok := m["epoch"].(uint64)
	if !ok {
		return nil, fmt.Errorf("%w: checkpoint epoch", errDecode)
	}

	msgs, err := c.crossMsgsFromABI(m["crossMsgs"])
	if err != nil {
		return nil, err
	}

	fee, _ := m["fee"].(*big.Int)
	prevHash, _ := m["prevHash"].([32]byte)
	proof, _ := m["proof"].([]byte)

	prev, err := fromHash(prevHash)
	if err != nil {
		return nil, err
	}

	out := &types.BottomUpCheckpoint{
		Source:    source,
		Epoch:     types.Epoch(epoch),
		PrevCheck: prev,
		CrossMsgs: types.CrossMsgBatch{Msgs: msgs, Fee: tokenAmount(fee)},
		Proof:     proof,
	}

	children, ok := m["children"].([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: checkpoint children", errDecode)
	}

	for _, child := range children {
		id, err := subnetIDFromABI(child["source"])
		if err != nil {
			return nil, err
		}

		checks, _ := child["checks"].([][32]byte)

		check := types.ChildCheck{Source: id}

		for _, h := range checks {
			ref, err := fromHash(h)
			if err != nil {
				return nil, err
			}

			check.Checks = append(check.Checks, ref)
		}

		out.Children = append(out.Children, check)
	}

	return out, nil
}

// nonNil returns the integer behind a token amount, zero when unset
func nonNil(v fabi.TokenAmount) *big.Int {
	if v.Nil() {
		return big.NewInt(0)
	}

	return v.Int
}

// tokenAmount is the inverse of nonNil
func tokenAmount(v *big.Int) fabi.TokenAmount {
	if v == nil {
		return fabi.NewTokenAmount(0)
	}

	return fabi.TokenAmount{Int: v}
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}

	return b
}
