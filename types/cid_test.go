package types

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testCid(t *testing.T, data string) cid.Cid {
	t.Helper()

	c, err := cid.V1Builder{Codec: cid.DagCBOR, MhType: mh.BLAKE2B_MIN + 31}.Sum([]byte(data))
	require.NoError(t, err)

	return c
}

func TestCidLink(t *testing.T) {
	t.Parallel()

	c := testCid(t, "block")

	link, err := CidLink(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(cidLinkTag), link.Number)

	content, ok := link.Content.([]byte)
	require.True(t, ok)
	assert.Equal(t, byte(0x00), content[0])

	// survives a cbor round trip as a tagged byte string
	data, err := cbor.Marshal(link)
	require.NoError(t, err)

	var decoded cbor.Tag
	require.NoError(t, cbor.Unmarshal(data, &decoded))

	back, err := CidFromLink(decoded)
	require.NoError(t, err)
	assert.True(t, c.Equals(back))

	_, err = CidLink(cid.Undef)
	require.Error(t, err)

	_, err = CidFromLink(cbor.Tag{Number: 43, Content: content})
	require.Error(t, err)
}

func TestProof_Encode(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(tt *rapid.T) {
		blocks := rapid.SliceOfN(rapid.StringN(1, 16, -1), 1, 5).Draw(tt, "blocks")

		proof := &Proof{StateRoot: testCid(t, "root")}
		for _, b := range blocks {
			proof.TipSet = append(proof.TipSet, testCid(t, b))
		}

		data, err := proof.Encode()
		if err != nil {
			tt.Fatalf("encode: %v", err)
		}

		decoded, err := DecodeProof(data)
		if err != nil {
			tt.Fatalf("decode: %v", err)
		}

		if len(decoded.TipSet) != len(proof.TipSet) || !decoded.StateRoot.Equals(proof.StateRoot) {
			tt.Fatalf("decoded proof %v differs from %v", decoded, proof)
		}

		for i := range proof.TipSet {
			if !decoded.TipSet[i].Equals(proof.TipSet[i]) {
				tt.Fatalf("tipset cid %d differs", i)
			}
		}
	})

	_, err := (&Proof{TipSet: []cid.Cid{testCid(t, "a")}}).Encode()
	require.Error(t, err)
}
