package txrelayer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/jsonrpc"
	"github.com/umbracle/ethgo/wallet"

	"github.com/consensus-shipyard/ipc-checkpointer/helper/hex"
)

const (
	defaultGasPrice = 1879048192 // 0x70000000
	defaultGasLimit = 5242880    // 0x500000

	// gasLimitPercent is the headroom added on top of the estimated gas
	gasLimitPercent = 120

	DefaultReceiptInterval = time.Second
	DefaultReceiptAttempts = 300
)

var (
	errNoReceipt = errors.New("transaction receipt not found")

	// ErrExecutionReverted is returned when gas estimation reports that the
	// transaction would revert
	ErrExecutionReverted = errors.New("execution reverted")
)

// TxRelayer sends transactions to and queries contracts of one EVM chain
type TxRelayer interface {
	// Call executes a read only contract call at block and returns the raw output
	Call(ctx context.Context, to ethgo.Address, input []byte, block ethgo.BlockNumber) ([]byte, error)
	// SendTransaction signs txn with key and sends it. It returns the transaction hash.
	SendTransaction(ctx context.Context, txn *ethgo.Transaction, key ethgo.Key) (ethgo.Hash, error)
	// WaitForReceipt polls the receipt of the transaction until it is available or ctx is done
	WaitForReceipt(ctx context.Context, hash ethgo.Hash) (*ethgo.Receipt, error)
	// Client returns the underlying json-rpc client
	Client() *jsonrpc.Client
	Close() error
}

var _ TxRelayer = (*txRelayer)(nil)

type txRelayer struct {
	ipAddress       string
	headers         map[string]string
	client          *jsonrpc.Client
	receiptInterval time.Duration
	receiptAttempts uint64
}

func NewTxRelayer(opts ...TxRelayerOption) (TxRelayer, error) {
	t := &txRelayer{
		ipAddress:       "http://127.0.0.1:8545",
		headers:         map[string]string{},
		receiptInterval: DefaultReceiptInterval,
		receiptAttempts: DefaultReceiptAttempts,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		client, err := jsonrpc.NewClient(t.ipAddress, jsonrpc.WithHeaders(t.headers))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", t.ipAddress, err)
		}

		t.client = client
	}

	return t, nil
}

// Call function is used to query a smart contract on given 'to' address
func (t *txRelayer) Call(ctx context.Context, to ethgo.Address, input []byte, block ethgo.BlockNumber) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	callMsg := &ethgo.CallMsg{
		To:   &to,
		Data: input,
	}

	out, err := t.client.Eth().Call(callMsg, block)
	if err != nil {
		return nil, err
	}

	return hex.DecodeHex(out)
}

func (t *txRelayer) SendTransaction(ctx context.Context, txn *ethgo.Transaction, key ethgo.Key) (ethgo.Hash, error) {
	if err := ctx.Err(); err != nil {
		return ethgo.ZeroHash, err
	}

	txn.From = key.Address()

	pendingNonce, err := t.client.Eth().GetNonce(key.Address(), ethgo.Pending)
	if err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to get nonce of %s: %w", key.Address(), err)
	}

	chainID, err := t.client.Eth().ChainID()
	if err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to get chain id: %w", err)
	}

	gasPrice, err := t.client.Eth().GasPrice()
	if err != nil || gasPrice == 0 {
		gasPrice = defaultGasPrice
	}

	txn.Nonce = pendingNonce
	txn.GasPrice = gasPrice
	if txn.Gas, err = t.estimateGas(txn); err != nil {
		return ethgo.ZeroHash, err
	}

	signer := wallet.NewEIP155Signer(chainID.Uint64())
	if txn, err = signer.SignTx(txn, key); err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to sign transaction: %w", err)
	}

	data, err := txn.MarshalRLPTo(nil)
	if err != nil {
		return ethgo.ZeroHash, err
	}

	return t.client.Eth().SendRawTransaction(data)
}

func (t *txRelayer) WaitForReceipt(ctx context.Context, hash ethgo.Hash) (*ethgo.Receipt, error) {
	var receipt *ethgo.Receipt

	backoff := retry.WithMaxRetries(t.receiptAttempts, retry.NewConstant(t.receiptInterval))

	err := retry.Do(ctx, backoff, func(context.Context) error {
		r, err := t.client.Eth().GetTransactionReceipt(hash)
		if err != nil && err.Error() != "not found" {
			return err
		}

		if r == nil {
			return retry.RetryableError(errNoReceipt)
		}

		receipt = r

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt of %s: %w", hash, err)
	}

	return receipt, nil
}

func (t *txRelayer) Client() *jsonrpc.Client {
	return t.client
}

func (t *txRelayer) Close() error {
	return t.client.Close()
}

// estimateGas falls back to the default limit when the node cannot estimate,
// a transaction the node reports as reverting is not sent
func (t *txRelayer) estimateGas(txn *ethgo.Transaction) (uint64, error) {
	gas, err := t.client.Eth().EstimateGas(&ethgo.CallMsg{
		From:  txn.From,
		To:    txn.To,
		Data:  txn.Input,
		Value: txn.Value,
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "revert") {
			return 0, fmt.Errorf("%w: %w", ErrExecutionReverted, err)
		}

		return defaultGasLimit, nil
	}

	if gas == 0 {
		return defaultGasLimit, nil
	}

	return gas * gasLimitPercent / 100, nil
}

type TxRelayerOption func(*txRelayer)

func WithClient(client *jsonrpc.Client) TxRelayerOption {
	return func(t *txRelayer) {
		t.client = client
	}
}

func WithIPAddress(ipAddress string) TxRelayerOption {
	return func(t *txRelayer) {
		t.ipAddress = ipAddress
	}
}

// WithAuthToken sets the bearer token sent with every request
func WithAuthToken(token string) TxRelayerOption {
	return func(t *txRelayer) {
		if token != "" {
			t.headers["Authorization"] = "Bearer " + token
		}
	}
}

func WithReceiptPolling(interval time.Duration, attempts uint64) TxRelayerOption {
	return func(t *txRelayer) {
		t.receiptInterval = interval
		t.receiptAttempts = attempts
	}
}
