package lotus

import (
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

func TestTokenAmountBytes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		amount   abi.TokenAmount
		expected []byte
	}{
		{amount: abi.TokenAmount{}, expected: []byte{}},
		{amount: big.Zero(), expected: []byte{}},
		{amount: big.NewInt(5), expected: []byte{0x00, 0x05}},
		{amount: big.NewInt(-256), expected: []byte{0x01, 0x01, 0x00}},
	}

	for _, c := range cases {
		b, err := tokenAmountBytes(c.amount)
		require.NoError(t, err)
		assert.Equal(t, c.expected, b)
	}
}

func TestEncodeParams(t *testing.T) {
	t.Parallel()

	child := types.SubnetID{Root: 31415926, Route: []types.Address{"t01002"}}
	root := types.NewRootID(31415926)

	msg := types.CrossMsg{
		From:  types.IPCAddress{Subnet: child, Address: "t01001"},
		To:    types.IPCAddress{Subnet: root, Address: "t01003"},
		Value: big.NewInt(1000),
		Nonce: 4,
	}

	t.Run("bottom-up checkpoint", func(t *testing.T) {
		t.Parallel()

		data, err := encodeParams(&types.BottomUpCheckpoint{
			Source:    child,
			Epoch:     110,
			PrevCheck: headCid,
			Children: []types.ChildCheck{{
				Source: types.SubnetID{Root: 31415926, Route: []types.Address{"t01002", "t01005"}},
				Checks: []cid.Cid{rootCid},
			}},
			CrossMsgs: types.CrossMsgBatch{Msgs: []types.CrossMsg{msg}, Fee: big.Zero()},
			Proof:     []byte{0x82, 0x80, 0x60},
		})
		require.NoError(t, err)

		var decoded bottomUpCheckpointTuple
		require.NoError(t, cbor.Unmarshal(data, &decoded))

		assert.Equal(t, int64(110), decoded.Data.Epoch)
		assert.Equal(t, uint64(31415926), decoded.Data.Source.Root)
		assert.Equal(t, [][]byte{{0x00, 0xea, 0x07}}, decoded.Data.Source.Route)
		require.NotNil(t, decoded.Data.PrevCheck)

		prev, err := types.CidFromLink(*decoded.Data.PrevCheck)
		require.NoError(t, err)
		assert.Equal(t, headCid, prev)

		content, ok := decoded.Data.PrevCheck.Content.([]byte)
		require.True(t, ok)
		// identity multibase prefix, cid version 1, dag-cbor codec
		assert.Equal(t, []byte{0x00, 0x01, 0x71}, content[:3])

		require.Len(t, decoded.Data.Children, 1)
		require.Len(t, decoded.Data.Children[0].Checks, 1)

		check, err := types.CidFromLink(decoded.Data.Children[0].Checks[0])
		require.NoError(t, err)
		assert.Equal(t, rootCid, check)

		require.Len(t, decoded.Data.CrossMsgs.CrossMsgs, 1)
		assert.Equal(t, uint64(4), decoded.Data.CrossMsgs.CrossMsgs[0].Msg.Nonce)
		assert.Equal(t, []byte{0x00, 0x03, 0xe8}, decoded.Data.CrossMsgs.CrossMsgs[0].Msg.Value)
		assert.Equal(t, []byte{0x82, 0x80, 0x60}, decoded.Data.Proof)
	})

	t.Run("genesis checkpoint has no previous link", func(t *testing.T) {
		t.Parallel()

		data, err := encodeParams(&types.BottomUpCheckpoint{Source: child, Epoch: 10})
		require.NoError(t, err)

		var decoded bottomUpCheckpointTuple
		require.NoError(t, cbor.Unmarshal(data, &decoded))
		assert.Nil(t, decoded.Data.PrevCheck)
	})

	t.Run("top-down checkpoint", func(t *testing.T) {
		t.Parallel()

		data, err := encodeParams(&types.TopDownCheckpoint{Epoch: 105, TopDownMsgs: []types.CrossMsg{msg, msg}})
		require.NoError(t, err)

		var decoded topDownCheckpointTuple
		require.NoError(t, cbor.Unmarshal(data, &decoded))
		assert.Equal(t, int64(105), decoded.Epoch)
		assert.Len(t, decoded.TopDownMsgs, 2)
	})

	t.Run("unknown params", func(t *testing.T) {
		t.Parallel()

		_, err := encodeParams("raw")
		require.Error(t, err)
	})
}
