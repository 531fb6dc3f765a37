package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/ipfs/go-cid"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"

	"github.com/consensus-shipyard/ipc-checkpointer/helper/hex"
	"github.com/consensus-shipyard/ipc-checkpointer/txrelayer"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

const (
	// finality is the depth after which a block at a given height no longer changes
	finality = 900

	blockCacheSize = 256

	receiptSuccess = 1

	// exitCodeReverted is the exit code reported for a reverted transaction
	exitCodeReverted = 33

	latestBlock = "latest"

	evmMetrics = "evm"
)

var errNoCheckpoint = errors.New("no bottom-up checkpoint")

// Client talks to the gateway and subnet actor contracts of an FEVM subnet
type Client struct {
	subnet  *types.Subnet
	relayer txrelayer.TxRelayer
	keys    *KeyStore
	gateway ethgo.Address
	prefix  string
	logger  hclog.Logger

	// blocks caches final block headers by height
	blocks *lru.Cache
}

type ClientOption func(*Client)

func WithRelayer(relayer txrelayer.TxRelayer) ClientOption {
	return func(c *Client) {
		c.relayer = relayer
	}
}

func WithKeyStore(keys *KeyStore) ClientOption {
	return func(c *Client) {
		c.keys = keys
	}
}

func NewClient(subnet *types.Subnet, logger hclog.Logger, opts ...ClientOption) (*Client, error) {
	gateway, err := toEthAddress(subnet.GatewayAddr)
	if err != nil {
		return nil, fmt.Errorf("gateway of %s: %w", subnet.ID, err)
	}

	blocks, err := lru.New(blockCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Client{
		subnet:  subnet,
		gateway: gateway,
		prefix:  networkPrefix(subnet),
		logger:  logger.Named("evm").With("subnet", subnet.ID.String()),
		blocks:  blocks,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.keys == nil {
		if c.keys, err = LoadKeyStore(subnet.KeystoreDir, subnet.PasswordFile); err != nil {
			return nil, err
		}
	}

	for _, acc := range subnet.Accounts {
		if _, err := c.keys.Get(acc); err != nil {
			c.logger.Warn("account cannot sign checkpoints", "account", acc, "err", err)
		}
	}

	if c.relayer == nil {
		c.relayer, err = txrelayer.NewTxRelayer(
			txrelayer.WithIPAddress(subnet.RPCAddr),
			txrelayer.WithAuthToken(subnet.AuthToken),
		)
		if err != nil {
			return nil, err
		}
	}

	c.logger.Debug("client ready", "gateway", gateway, "keys", len(c.keys.Accounts()))

	return c, nil
}

// networkPrefix picks the Filecoin address prefix used for addresses read
// from contracts, following the configured accounts
func networkPrefix(subnet *types.Subnet) string {
	for _, addr := range append([]types.Address{subnet.GatewayAddr}, subnet.Accounts...) {
		if strings.HasPrefix(string(addr), types.MainnetPrefix) {
			return types.MainnetPrefix
		}
	}

	return types.TestnetPrefix
}

// call executes a read only contract method and decodes its outputs
func (c *Client) call(
	ctx context.Context,
	to ethgo.Address,
	method *abi.Method,
	block ethgo.BlockNumber,
	args ...interface{},
) (map[string]interface{}, error) {
	defer metrics.MeasureSinceWithLabels([]string{evmMetrics, "call_time"}, time.Now(),
		[]metrics.Label{{Name: "method", Value: method.Name}})

	input, err := method.Encode(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method.Name, err)
	}

	out, err := c.relayer.Call(ctx, to, input, block)
	if err != nil {
		metrics.IncrCounterWithLabels([]string{evmMetrics, "call_errors"}, 1,
			[]metrics.Label{{Name: "method", Value: method.Name}})

		return nil, fmt.Errorf("%s failed: %w", method.Name, err)
	}

	result, err := method.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("%w of %s: %w", errDecode, method.Name, err)
	}

	return result, nil
}

func (c *Client) callUint64(
	ctx context.Context,
	to ethgo.Address,
	method *abi.Method,
	block ethgo.BlockNumber,
	args ...interface{},
) (uint64, error) {
	out, err := c.call(ctx, to, method, block, args...)
	if err != nil {
		return 0, err
	}

	v, ok := out["0"].(uint64)
	if !ok {
		return 0, fmt.Errorf("%w of %s", errDecode, method.Name)
	}

	return v, nil
}

func (c *Client) callBool(
	ctx context.Context,
	to ethgo.Address,
	method *abi.Method,
	block ethgo.BlockNumber,
	args ...interface{},
) (bool, error) {
	out, err := c.call(ctx, to, method, block, args...)
	if err != nil {
		return false, err
	}

	v, ok := out["0"].(bool)
	if !ok {
		return false, fmt.Errorf("%w of %s", errDecode, method.Name)
	}

	return v, nil
}

type blockHeader struct {
	Number    string `json:"number"`
	Hash      string `json:"hash"`
	StateRoot string `json:"stateRoot"`
}

func (c *Client) blockByNumber(ctx context.Context, block string) (*types.TipSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var header *blockHeader
	if err := c.relayer.Client().Call("eth_getBlockByNumber", &header, block, false); err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber failed: %w", err)
	}

	if header == nil {
		return nil, fmt.Errorf("block %s not found", block)
	}

	height, err := hex.DecodeUint64(header.Number)
	if err != nil {
		return nil, fmt.Errorf("invalid block number %q: %w", header.Number, err)
	}

	hash, err := headerHash(header.Hash)
	if err != nil {
		return nil, fmt.Errorf("block %s hash: %w", header.Number, err)
	}

	stateRoot, err := headerHash(header.StateRoot)
	if err != nil {
		return nil, fmt.Errorf("block %s state root: %w", header.Number, err)
	}

	return &types.TipSet{
		Cids:            []cid.Cid{hash},
		Height:          types.Epoch(height),
		ParentStateRoot: stateRoot,
	}, nil
}

func headerHash(raw string) (cid.Cid, error) {
	b, err := hex.DecodeHex(raw)
	if err != nil {
		return cid.Undef, err
	}

	var h [32]byte
	if len(b) != len(h) {
		return cid.Undef, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}

	copy(h[:], b)

	return fromHash(h)
}

func (c *Client) ChainHead(ctx context.Context) (*types.TipSet, error) {
	return c.blockByNumber(ctx, latestBlock)
}

func (c *Client) TipSetAtHeight(ctx context.Context, height types.Epoch, head *types.TipSet) (*types.TipSet, error) {
	if height == head.Height {
		return head, nil
	}

	if cached, ok := c.blocks.Get(height); ok {
		return cached.(*types.TipSet), nil //nolint:forcetypeassert
	}

	block, err := c.blockByNumber(ctx, hex.EncodeUint64(uint64(height)))
	if err != nil {
		return nil, err
	}

	if head.Height-height >= finality {
		c.blocks.Add(height, block)
	}

	return block, nil
}

func (c *Client) GatewayState(ctx context.Context, tipset *types.TipSet) (*types.GatewayState, error) {
	block := ethgo.BlockNumber(tipset.Height)

	bottomUp, err := c.callUint64(ctx, c.gateway, bottomUpCheckPeriodMethod, block)
	if err != nil {
		return nil, err
	}

	topDown, err := c.callUint64(ctx, c.gateway, topDownCheckPeriodMethod, block)
	if err != nil {
		return nil, err
	}

	nonce, err := c.callUint64(ctx, c.gateway, appliedTopDownNonceMethod, block)
	if err != nil {
		return nil, err
	}

	lastExecuted, err := c.callUint64(ctx, c.gateway, lastVotingExecutedEpochMethod, block)
	if err != nil {
		return nil, err
	}

	initialized, err := c.callBool(ctx, c.gateway, initializedMethod, block)
	if err != nil {
		return nil, err
	}

	return &types.GatewayState{
		BottomUpCheckPeriod:      types.Epoch(bottomUp),
		TopDownCheckPeriod:       types.Epoch(topDown),
		AppliedTopDownNonce:      nonce,
		TopDownLastExecutedEpoch: types.Epoch(lastExecuted),
		Initialized:              initialized,
	}, nil
}

func (c *Client) subnetActor(subnet types.SubnetID) (ethgo.Address, error) {
	actor := subnet.SubnetActor()
	if actor == "" {
		return ethgo.ZeroAddress, fmt.Errorf("%w: root %s has no subnet actor", types.ErrInvalidSubnetID, subnet)
	}

	return toEthAddress(actor)
}

func (c *Client) SubnetActorState(
	ctx context.Context,
	subnet types.SubnetID,
	tipset *types.TipSet,
) (*types.SubnetActorState, error) {
	actor, err := c.subnetActor(subnet)
	if err != nil {
		return nil, err
	}

	block := ethgo.BlockNumber(tipset.Height)

	period, err := c.callUint64(ctx, actor, bottomUpCheckPeriodMethod, block)
	if err != nil {
		return nil, err
	}

	minValidators, err := c.callUint64(ctx, actor, minValidatorsMethod, block)
	if err != nil {
		return nil, err
	}

	lastExecuted, err := c.callUint64(ctx, actor, lastVotingExecutedEpochMethod, block)
	if err != nil {
		return nil, err
	}

	out, err := c.call(ctx, actor, getValidatorSetMethod, block)
	if err != nil {
		return nil, err
	}

	set, _ := out["0"].(map[string]interface{})

	validators, ok := set["validators"].([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w of %s", errDecode, getValidatorSetMethod.Name)
	}

	state := &types.SubnetActorState{
		BottomUpCheckPeriod:       types.Epoch(period),
		MinValidators:             minValidators,
		BottomUpLastExecutedEpoch: types.Epoch(lastExecuted),
	}

	for _, v := range validators {
		validator, err := c.validatorFromABI(v)
		if err != nil {
			return nil, err
		}

		state.Validators = append(state.Validators, validator)
	}

	return state, nil
}

// validatorFromABI decodes a validator entry. The worker address is the
// account the validator signs with on Filecoin-native children.
func (c *Client) validatorFromABI(v map[string]interface{}) (types.Validator, error) {
	addr, ok := v["addr"].(ethgo.Address)
	if !ok {
		return types.Validator{}, fmt.Errorf("%w: validator address", errDecode)
	}

	weight, _ := v["weight"].(*big.Int)
	netAddr, _ := v["netAddresses"].(string)

	out := types.Validator{
		Addr:    fromEthAddress(addr),
		NetAddr: netAddr,
		Weight:  tokenAmount(weight),
	}

	if raw, ok := v["workerAddr"].(map[string]interface{}); ok {
		if payload, _ := raw["payload"].([]byte); len(payload) != 0 {
			worker, err := fvmAddressFromABI(c.prefix, raw)
			if err != nil {
				return types.Validator{}, fmt.Errorf("worker of %s: %w", out.Addr, err)
			}

			out.WorkerAddr = worker
		}
	}

	return out, nil
}

func (c *Client) CheckpointTemplate(ctx context.Context, epoch types.Epoch) (*types.BottomUpCheckpoint, error) {
	out, err := c.call(ctx, c.gateway, bottomUpCheckpointAtEpochMethod, ethgo.Latest, uint64(epoch))
	if err != nil {
		return nil, err
	}

	if exists, _ := out["exists"].(bool); !exists {
		return nil, fmt.Errorf("%w at epoch %d", errNoCheckpoint, epoch)
	}

	return c.bottomUpCheckpointFromABI(out["checkpoint"])
}

func (c *Client) PrevCheckpointForChild(ctx context.Context, child types.SubnetID) (cid.Cid, error) {
	actor, err := c.subnetActor(child)
	if err != nil {
		return cid.Undef, err
	}

	out, err := c.call(ctx, actor, prevExecutedCheckpointHashMethod, ethgo.Latest)
	if err != nil {
		return cid.Undef, err
	}

	hash, ok := out["0"].([32]byte)
	if !ok {
		return cid.Undef, fmt.Errorf("%w of %s", errDecode, prevExecutedCheckpointHashMethod.Name)
	}

	return fromHash(hash)
}

func (c *Client) TopDownMsgs(
	ctx context.Context,
	child types.SubnetID,
	tipset *types.TipSet,
	nonce uint64,
) ([]types.CrossMsg, error) {
	id, err := subnetIDToABI(child)
	if err != nil {
		return nil, err
	}

	out, err := c.call(ctx, c.gateway, getTopDownMsgsMethod, ethgo.BlockNumber(tipset.Height), id, nonce)
	if err != nil {
		return nil, err
	}

	return c.crossMsgsFromABI(out["0"])
}

func (c *Client) HasVotedBottomUp(
	ctx context.Context,
	child types.SubnetID,
	epoch types.Epoch,
	validator types.Address,
) (bool, error) {
	actor, err := c.subnetActor(child)
	if err != nil {
		return false, err
	}

	submitter, err := toEthAddress(validator)
	if err != nil {
		return false, err
	}

	return c.callBool(ctx, actor, hasValidatorVotedMethod, ethgo.Latest, uint64(epoch), submitter)
}

func (c *Client) HasVotedTopDown(ctx context.Context, epoch types.Epoch, validator types.Address) (bool, error) {
	submitter, err := toEthAddress(validator)
	if err != nil {
		return false, err
	}

	return c.callBool(ctx, c.gateway, hasValidatorVotedMethod, ethgo.Latest, uint64(epoch), submitter)
}

// SubmitMessage signs msg with the local key of msg.From and sends it as a
// contract transaction
func (c *Client) SubmitMessage(ctx context.Context, msg *types.Message) (types.SubmissionRef, error) {
	input, err := encodeInput(msg.Params)
	if err != nil {
		return "", err
	}

	to, err := toEthAddress(msg.To)
	if err != nil {
		return "", err
	}

	key, err := c.keys.Get(msg.From)
	if err != nil {
		return "", err
	}

	txn := &ethgo.Transaction{
		To:    &to,
		Input: input,
		Value: nonNil(msg.Value),
	}

	hash, err := c.relayer.SendTransaction(ctx, txn, key)
	if err != nil {
		return "", fmt.Errorf("failed to send transaction to %s: %w", to, err)
	}

	c.logger.Debug("transaction sent", "hash", hash, "to", to, "from", key.Address())

	return types.SubmissionRef(hash.String()), nil
}

func encodeInput(params interface{}) ([]byte, error) {
	switch p := params.(type) {
	case *types.BottomUpCheckpoint:
		checkpoint, err := bottomUpCheckpointToABI(p)
		if err != nil {
			return nil, err
		}

		return submitCheckpointMethod.Encode([]interface{}{checkpoint})
	case *types.TopDownCheckpoint:
		checkpoint, err := topDownCheckpointToABI(p)
		if err != nil {
			return nil, err
		}

		return submitTopDownCheckpointMethod.Encode([]interface{}{checkpoint})
	default:
		return nil, fmt.Errorf("unsupported message params %T", params)
	}
}

// WaitForCommitment polls the transaction receipt. A reverted transaction is
// reported with a non zero exit code.
func (c *Client) WaitForCommitment(ctx context.Context, ref types.SubmissionRef) (*types.Receipt, error) {
	receipt, err := c.relayer.WaitForReceipt(ctx, ethgo.HexToHash(string(ref)))
	if err != nil {
		return nil, err
	}

	out := &types.Receipt{
		Ref:    ref,
		Height: types.Epoch(receipt.BlockNumber),
	}

	if receipt.Status != receiptSuccess {
		out.ExitCode = exitCodeReverted
	}

	return out, nil
}

func (c *Client) Close() error {
	return c.relayer.Close()
}
