package txrelayer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/wallet"
)

const txHash = "0x4d9c2f1e35b3a7f1ef4e8a3bd1d9f8f0b3e1f2a8c6d7e9f0a1b2c3d4e5f60718"

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers json-rpc requests from a method table and records what it saw
type fakeNode struct {
	lock     sync.Mutex
	results  map[string]func(params []json.RawMessage) interface{}
	calls    map[string]int
	rawTxs   []string
	authSeen []string
}

func newFakeNode(t *testing.T) (*fakeNode, string) {
	t.Helper()

	node := &fakeNode{
		results: map[string]func([]json.RawMessage) interface{}{},
		calls:   map[string]int{},
	}

	srv := httptest.NewServer(http.HandlerFunc(node.serve))
	t.Cleanup(srv.Close)

	return node, srv.URL
}

func (n *fakeNode) handle(method string, fn func(params []json.RawMessage) interface{}) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.results[method] = fn
}

func (n *fakeNode) count(method string) int {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.calls[method]
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	n.lock.Lock()
	n.calls[req.Method]++
	n.authSeen = append(n.authSeen, r.Header.Get("Authorization"))
	fn, ok := n.results[req.Method]

	if req.Method == "eth_sendRawTransaction" && len(req.Params) > 0 {
		n.rawTxs = append(n.rawTxs, string(req.Params[0]))
	}
	n.lock.Unlock()

	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
	}

	if ok {
		result := fn(req.Params)
		if e, isErr := result.(rpcError); isErr {
			resp["error"] = e
		} else {
			resp["result"] = result
		}
	} else {
		resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// rpcError is answered as the json-rpc error of a request
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func constant(v interface{}) func([]json.RawMessage) interface{} {
	return func([]json.RawMessage) interface{} { return v }
}

func receiptJSON() map[string]interface{} {
	return map[string]interface{}{
		"transactionHash":   txHash,
		"transactionIndex":  "0x0",
		"contractAddress":   nil,
		"blockHash":         "0x" + strings.Repeat("ab", 32),
		"blockNumber":       "0x7d",
		"gasUsed":           "0x5208",
		"cumulativeGasUsed": "0x5208",
		"logsBloom":         "0x" + strings.Repeat("00", 256),
		"logs":              []interface{}{},
		"status":            "0x1",
		"from":              "0x1a79385ead0e873fe0c441c034636d3edf7014cc",
		"to":                "0x77aa40b105843728088c0132e43fc44348881da8",
	}
}

func newTestRelayer(t *testing.T, url string) TxRelayer {
	t.Helper()

	relayer, err := NewTxRelayer(
		WithIPAddress(url),
		WithAuthToken("tok"),
		WithReceiptPolling(10*time.Millisecond, 5),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = relayer.Close() })

	return relayer
}

func TestTxRelayer_Call(t *testing.T) {
	t.Parallel()

	node, url := newFakeNode(t)
	node.handle("eth_call", constant("0x000000000000000000000000000000000000000000000000000000000000000a"))

	relayer := newTestRelayer(t, url)

	out, err := relayer.Call(context.Background(),
		ethgo.HexToAddress("0x77aa40b105843728088c0132e43fc44348881da8"), []byte{0x01, 0x02}, ethgo.Latest)
	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(0x0a), out[31])

	node.lock.Lock()
	assert.Equal(t, "Bearer tok", node.authSeen[0])
	node.lock.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = relayer.Call(ctx, ethgo.ZeroAddress, nil, ethgo.Latest)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, node.count("eth_call"))
}

func TestTxRelayer_SendTransaction(t *testing.T) {
	t.Parallel()

	node, url := newFakeNode(t)
	node.handle("eth_getTransactionCount", constant("0x3"))
	node.handle("eth_chainId", constant("0x7a69"))
	node.handle("eth_gasPrice", constant("0x0"))
	node.handle("eth_estimateGas", constant("0x5208"))
	node.handle("eth_sendRawTransaction", constant(txHash))

	relayer := newTestRelayer(t, url)

	key, err := wallet.GenerateKey()
	require.NoError(t, err)

	to := ethgo.HexToAddress("0x77aa40b105843728088c0132e43fc44348881da8")

	hash, err := relayer.SendTransaction(context.Background(), &ethgo.Transaction{
		To:    &to,
		Input: []byte{0xde, 0xad},
	}, key)
	require.NoError(t, err)
	assert.Equal(t, ethgo.HexToHash(txHash), hash)

	node.lock.Lock()
	defer node.lock.Unlock()

	require.Len(t, node.rawTxs, 1)
	assert.True(t, strings.HasPrefix(node.rawTxs[0], `"0x`))
	assert.Equal(t, 1, node.calls["eth_estimateGas"])
}

func TestTxRelayer_SendTransactionGasEstimation(t *testing.T) {
	t.Parallel()

	send := func(t *testing.T, estimate interface{}) (*fakeNode, error) {
		t.Helper()

		node, url := newFakeNode(t)
		node.handle("eth_getTransactionCount", constant("0x3"))
		node.handle("eth_chainId", constant("0x7a69"))
		node.handle("eth_gasPrice", constant("0x0"))
		node.handle("eth_estimateGas", constant(estimate))
		node.handle("eth_sendRawTransaction", constant(txHash))

		key, err := wallet.GenerateKey()
		require.NoError(t, err)

		to := ethgo.HexToAddress("0x77aa40b105843728088c0132e43fc44348881da8")

		_, err = newTestRelayer(t, url).SendTransaction(context.Background(), &ethgo.Transaction{
			To:    &to,
			Input: []byte{0xde, 0xad},
		}, key)

		return node, err
	}

	t.Run("reverted estimation is not sent", func(t *testing.T) {
		t.Parallel()

		node, err := send(t, rpcError{Code: 3, Message: "execution reverted: checkpoint already committed"})
		require.ErrorIs(t, err, ErrExecutionReverted)
		assert.ErrorContains(t, err, "checkpoint already committed")
		assert.Equal(t, 0, node.count("eth_sendRawTransaction"))
	})

	t.Run("unsupported estimation falls back to the default limit", func(t *testing.T) {
		t.Parallel()

		node, err := send(t, rpcError{Code: -32000, Message: "gas estimation unavailable"})
		require.NoError(t, err)
		assert.Equal(t, 1, node.count("eth_sendRawTransaction"))
	})
}

func TestTxRelayer_WaitForReceipt(t *testing.T) {
	t.Parallel()

	node, url := newFakeNode(t)

	var polls int

	node.handle("eth_getTransactionReceipt", func([]json.RawMessage) interface{} {
		polls++
		if polls < 3 {
			return nil
		}

		return receiptJSON()
	})

	relayer := newTestRelayer(t, url)

	receipt, err := relayer.WaitForReceipt(context.Background(), ethgo.HexToHash(txHash))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, uint64(0x7d), receipt.BlockNumber)
	assert.Equal(t, 3, node.count("eth_getTransactionReceipt"))
}

func TestTxRelayer_WaitForReceiptExhausted(t *testing.T) {
	t.Parallel()

	node, url := newFakeNode(t)
	node.handle("eth_getTransactionReceipt", constant(nil))

	relayer := newTestRelayer(t, url)

	_, err := relayer.WaitForReceipt(context.Background(), ethgo.HexToHash(txHash))
	require.ErrorIs(t, err, errNoReceipt)
	// one attempt plus five retries
	assert.Equal(t, 6, node.count("eth_getTransactionReceipt"))
}
