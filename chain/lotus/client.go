package lotus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/armon/go-metrics"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/ipfs/go-cid"
	"github.com/sethvargo/go-retry"
	"github.com/umbracle/ethgo/jsonrpc"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

const (
	methodChainHead              = "Filecoin.ChainHead"
	methodChainGetTipSetByHeight = "Filecoin.ChainGetTipSetByHeight"
	methodMpoolPushMessage       = "Filecoin.MpoolPushMessage"
	methodStateWaitMsg           = "Filecoin.StateWaitMsg"
	methodReadGatewayState       = "Filecoin.IPCReadGatewayState"
	methodReadSubnetActorState   = "Filecoin.IPCReadSubnetActorState"
	methodGetCheckpointTemplate  = "Filecoin.IPCGetCheckpointTemplate"
	methodGetPrevCheckpoint      = "Filecoin.IPCGetPrevCheckpointForChild"
	methodGetTopDownMsgs         = "Filecoin.IPCGetTopDownMsgs"
	methodHasVotedBottomUp       = "Filecoin.IPCHasVotedBottomUpCheckpoint"
	methodHasVotedTopDown        = "Filecoin.IPCHasVotedTopDownCheckpoint"

	// waitConfidence is the number of epochs a message must be buried under
	waitConfidence = 5
	// lookbackNoLimit lets StateWaitMsg search the whole chain
	lookbackNoLimit = -1

	// finality is the depth after which a tipset at a given height no longer changes
	finality = 900

	tipSetCacheSize = 256

	lotusMetrics = "lotus"
)

var errNoReceipt = errors.New("message not committed yet")

// Client talks to the IPC API of a Lotus node
type Client struct {
	subnet *types.Subnet
	rpc    *jsonrpc.Client
	logger hclog.Logger

	// tipsets caches final tipsets by height
	tipsets *lru.Cache

	waitInterval time.Duration
	waitAttempts uint64
}

type ClientOption func(*Client)

// WithWaitPolling sets how StateWaitMsg calls are retried when they fail
func WithWaitPolling(interval time.Duration, attempts uint64) ClientOption {
	return func(c *Client) {
		c.waitInterval = interval
		c.waitAttempts = attempts
	}
}

func NewClient(subnet *types.Subnet, logger hclog.Logger, opts ...ClientOption) (*Client, error) {
	headers := map[string]string{}
	if subnet.AuthToken != "" {
		headers["Authorization"] = "Bearer " + subnet.AuthToken
	}

	rpc, err := jsonrpc.NewClient(subnet.RPCAddr, jsonrpc.WithHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", subnet.RPCAddr, err)
	}

	tipsets, err := lru.New(tipSetCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Client{
		subnet:       subnet,
		rpc:          rpc,
		logger:       logger.Named("lotus").With("subnet", subnet.ID.String()),
		tipsets:      tipsets,
		waitInterval: 10 * time.Second,
		waitAttempts: 60,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	defer metrics.MeasureSinceWithLabels([]string{lotusMetrics, "rpc_time"}, time.Now(),
		[]metrics.Label{{Name: "method", Value: method}})

	if err := c.rpc.Call(method, out, params...); err != nil {
		metrics.IncrCounterWithLabels([]string{lotusMetrics, "rpc_errors"}, 1,
			[]metrics.Label{{Name: "method", Value: method}})

		return fmt.Errorf("%s failed: %w", method, err)
	}

	return nil
}

func (c *Client) ChainHead(ctx context.Context) (*types.TipSet, error) {
	var head tipSet
	if err := c.call(ctx, methodChainHead, &head); err != nil {
		return nil, err
	}

	return head.toTipSet()
}

func (c *Client) TipSetAtHeight(ctx context.Context, height types.Epoch, head *types.TipSet) (*types.TipSet, error) {
	if height == head.Height {
		return head, nil
	}

	if cached, ok := c.tipsets.Get(height); ok {
		return cached.(*types.TipSet), nil //nolint:forcetypeassert
	}

	var ts tipSet
	if err := c.call(ctx, methodChainGetTipSetByHeight, &ts, int64(height), head.Cids); err != nil {
		return nil, err
	}

	tipset, err := ts.toTipSet()
	if err != nil {
		return nil, err
	}

	if head.Height-height >= finality {
		c.tipsets.Add(height, tipset)
	}

	return tipset, nil
}

func (c *Client) GatewayState(ctx context.Context, tipset *types.TipSet) (*types.GatewayState, error) {
	var state gatewayState
	if err := c.call(ctx, methodReadGatewayState, &state, c.subnet.GatewayAddr, tipset.Cids); err != nil {
		return nil, err
	}

	return state.toGatewayState(), nil
}

func (c *Client) SubnetActorState(
	ctx context.Context,
	subnet types.SubnetID,
	tipset *types.TipSet,
) (*types.SubnetActorState, error) {
	actor := subnet.SubnetActor()
	if actor == "" {
		return nil, fmt.Errorf("%w: root %s has no subnet actor", types.ErrInvalidSubnetID, subnet)
	}

	var state subnetActorState
	if err := c.call(ctx, methodReadSubnetActorState, &state, actor, tipset.Cids); err != nil {
		return nil, err
	}

	return state.toSubnetActorState()
}

func (c *Client) CheckpointTemplate(ctx context.Context, epoch types.Epoch) (*types.BottomUpCheckpoint, error) {
	var template checkpoint
	if err := c.call(ctx, methodGetCheckpointTemplate, &template, c.subnet.GatewayAddr, int64(epoch)); err != nil {
		return nil, err
	}

	return template.toBottomUpCheckpoint()
}

func (c *Client) PrevCheckpointForChild(ctx context.Context, child types.SubnetID) (cid.Cid, error) {
	id, err := toSubnetIDMap(child)
	if err != nil {
		return cid.Undef, err
	}

	var resp prevCheckpointResponse
	if err := c.call(ctx, methodGetPrevCheckpoint, &resp, c.subnet.GatewayAddr, id); err != nil {
		return cid.Undef, err
	}

	if resp.CID == nil {
		return cid.Undef, nil
	}

	return *resp.CID, nil
}

func (c *Client) TopDownMsgs(
	ctx context.Context,
	child types.SubnetID,
	tipset *types.TipSet,
	nonce uint64,
) ([]types.CrossMsg, error) {
	id, err := toSubnetIDMap(child)
	if err != nil {
		return nil, err
	}

	var msgs []crossMsg
	if err := c.call(ctx, methodGetTopDownMsgs, &msgs,
		c.subnet.GatewayAddr, id, tipset.Cids, nonce); err != nil {
		return nil, err
	}

	return toCrossMsgs(msgs)
}

func (c *Client) HasVotedBottomUp(
	ctx context.Context,
	child types.SubnetID,
	epoch types.Epoch,
	validator types.Address,
) (bool, error) {
	id, err := toSubnetIDMap(child)
	if err != nil {
		return false, err
	}

	var voted bool
	if err := c.call(ctx, methodHasVotedBottomUp, &voted, id, int64(epoch), validator); err != nil {
		return false, err
	}

	return voted, nil
}

func (c *Client) HasVotedTopDown(ctx context.Context, epoch types.Epoch, validator types.Address) (bool, error) {
	var voted bool
	if err := c.call(ctx, methodHasVotedTopDown, &voted, c.subnet.GatewayAddr, int64(epoch), validator); err != nil {
		return false, err
	}

	return voted, nil
}

// SubmitMessage pushes msg through the node mpool. The node signs it with the
// key of msg.From held in its wallet.
func (c *Client) SubmitMessage(ctx context.Context, msg *types.Message) (types.SubmissionRef, error) {
	params, err := encodeParams(msg.Params)
	if err != nil {
		return "", err
	}

	var signed signedMessage

	err = c.call(ctx, methodMpoolPushMessage, &signed,
		message{
			To:     msg.To.String(),
			From:   msg.From.String(),
			Value:  orZero(msg.Value),
			Method: uint64(msg.Method),
			Params: params,
		},
		messageSendSpec{MaxFee: big.Zero()},
	)
	if err != nil {
		return "", err
	}

	if !signed.CID.Defined() {
		return "", fmt.Errorf("%s returned no message cid", methodMpoolPushMessage)
	}

	c.logger.Debug("message pushed", "cid", signed.CID, "to", msg.To, "method", msg.Method)

	return types.SubmissionRef(signed.CID.String()), nil
}

// WaitForCommitment waits for the message to be included. StateWaitMsg blocks
// on the node side, failed calls are retried until ctx is done.
func (c *Client) WaitForCommitment(ctx context.Context, ref types.SubmissionRef) (*types.Receipt, error) {
	msgCid, err := cid.Decode(string(ref))
	if err != nil {
		return nil, fmt.Errorf("invalid message reference %q: %w", ref, err)
	}

	var lookup msgLookup

	backoff := retry.WithMaxRetries(c.waitAttempts, retry.NewConstant(c.waitInterval))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.call(ctx, methodStateWaitMsg, &lookup, msgCid, waitConfidence, lookbackNoLimit, true)
		if err != nil {
			c.logger.Debug("waiting for message", "cid", ref, "err", err)

			return retry.RetryableError(err)
		}

		if lookup.Height == 0 {
			return retry.RetryableError(errNoReceipt)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wait for message %s: %w", ref, err)
	}

	return &types.Receipt{
		Ref:      ref,
		Height:   types.Epoch(lookup.Height),
		ExitCode: lookup.Receipt.ExitCode,
	}, nil
}

func (c *Client) Close() error {
	return c.rpc.Close()
}
