package types

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseAddress(t *testing.T) {
	t.Parallel()

	var eth [EthAddressLength]byte
	for i := range eth {
		eth[i] = byte(i + 1)
	}

	delegated := NewDelegatedAddress(TestnetPrefix, eth)

	corrupted := []byte(delegated)
	if corrupted[8] == 'a' {
		corrupted[8] = 'b'
	} else {
		corrupted[8] = 'a'
	}

	cases := []struct {
		name     string
		raw      string
		expected Address
		err      bool
	}{
		{name: "id address", raw: "t01002", expected: "t01002"},
		{name: "mainnet id address", raw: "f064", expected: "f064"},
		{name: "ethereum address is lower cased", raw: "0xABCDEF0123456789ABCDEF0123456789ABCDEF01",
			expected: "0xabcdef0123456789abcdef0123456789abcdef01"},
		{name: "delegated address", raw: string(delegated), expected: delegated},
		{name: "empty", raw: "", err: true},
		{name: "unknown network", raw: "x01002", err: true},
		{name: "unknown protocol", raw: "t91002", err: true},
		{name: "short ethereum address", raw: "0x1234", err: true},
		{name: "bad checksum", raw: string(corrupted), err: true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			addr, err := ParseAddress(c.raw)
			if c.err {
				require.ErrorIs(t, err, ErrInvalidAddress)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, c.expected, addr)
		})
	}
}

func TestAddress_Bytes(t *testing.T) {
	t.Parallel()

	b, err := MustParseAddress("t01002").Bytes()
	require.NoError(t, err)
	// protocol 0 followed by the uvarint of 1002
	assert.Equal(t, []byte{0x00, 0xea, 0x07}, b)

	payload, err := MustParseAddress("f064").Payload()
	require.NoError(t, err)
	assert.Equal(t, []byte{64}, payload)
}

func TestAddress_EthAddress(t *testing.T) {
	t.Parallel()

	t.Run("masked id address", func(t *testing.T) {
		t.Parallel()

		eth, err := MustParseAddress("f0100").EthAddress()
		require.NoError(t, err)
		assert.Equal(t, Address("0xff00000000000000000000000000000000000064"), EthAddressFromBytes(eth))
	})

	t.Run("secp address has no ethereum form", func(t *testing.T) {
		t.Parallel()

		secp, err := address.NewSecp256k1Address([]byte("validator public key"))
		require.NoError(t, err)

		_, err = FromFilecoin(MainnetPrefix, secp).EthAddress()
		require.ErrorIs(t, err, ErrInvalidAddress)
	})
}

func TestAddress_DelegatedRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(tt *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), EthAddressLength, EthAddressLength).Draw(tt, "eth")

		var eth [EthAddressLength]byte

		copy(eth[:], raw)

		delegated := NewDelegatedAddress(TestnetPrefix, eth)

		parsed, err := ParseAddress(string(delegated))
		if err != nil {
			tt.Fatalf("delegated address %s does not parse: %v", delegated, err)
		}

		back, err := parsed.EthAddress()
		if err != nil {
			tt.Fatalf("no ethereum form for %s: %v", parsed, err)
		}

		if back != eth {
			tt.Fatalf("round trip mismatch: %x != %x", back, eth)
		}

		if parsed.Protocol() != address.Delegated {
			tt.Fatalf("unexpected protocol %d", parsed.Protocol())
		}
	})
}

func TestMethodHash(t *testing.T) {
	t.Parallel()

	assert.GreaterOrEqual(t, uint64(MethodSubmitCheckpoint), uint64(firstExportedMethod))
	assert.GreaterOrEqual(t, uint64(MethodSubmitTopDownCheckpoint), uint64(firstExportedMethod))
	assert.NotEqual(t, MethodSubmitCheckpoint, MethodSubmitTopDownCheckpoint)
	assert.Equal(t, MethodHash("SubmitCheckpoint"), MethodSubmitCheckpoint)
}

func TestAddress_SameAccount(t *testing.T) {
	t.Parallel()

	var eth [EthAddressLength]byte

	eth[19] = 0x42

	ethAddr := EthAddressFromBytes(eth)
	delegated := NewDelegatedAddress(MainnetPrefix, eth)

	assert.True(t, ethAddr.SameAccount(delegated))
	assert.True(t, delegated.SameAccount(ethAddr))
	assert.True(t, Address("t01002").SameAccount("t01002"))
	assert.False(t, Address("t01002").SameAccount("t01003"))
	assert.False(t, ethAddr.SameAccount("t01002"))
	assert.False(t, Address("t01002").SameAccount("not an address"))

	subnet := &Subnet{Accounts: []Address{delegated}}
	local, ok := subnet.LocalAccount(ethAddr)
	require.True(t, ok)
	assert.Equal(t, delegated, local)
}

func TestNewAddressFromBytes(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"t01002", "f064"} {
		addr := MustParseAddress(raw)

		b, err := addr.Bytes()
		require.NoError(t, err)

		back, err := NewAddressFromBytes(raw[:1], b)
		require.NoError(t, err)
		assert.Equal(t, addr, back)
	}

	key, err := address.NewSecp256k1Address([]byte("account public key"))
	require.NoError(t, err)

	secp := FromFilecoin(TestnetPrefix, key)

	b, err := secp.Bytes()
	require.NoError(t, err)

	back, err := NewAddressFromBytes(TestnetPrefix, b)
	require.NoError(t, err)
	assert.Equal(t, secp, back)

	eth := MustParseAddress("0x1a79385ead0e873fe0c441c034636d3edf7014cc")

	b, err = eth.Bytes()
	require.NoError(t, err)

	back, err = NewAddressFromBytes(TestnetPrefix, b)
	require.NoError(t, err)
	assert.Equal(t, eth, back)

	_, err = NewAddressFromBytes(TestnetPrefix, []byte{byte(address.BLS), 0x01})
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddress_SameAccountAcrossNetworks(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(tt *rapid.T) {
		pub := rapid.SliceOfN(rapid.Byte(), 33, 65).Draw(tt, "pub")

		key, err := address.NewSecp256k1Address(pub)
		if err != nil {
			tt.Fatalf("secp address: %v", err)
		}

		mainnet, testnet := FromFilecoin(MainnetPrefix, key), FromFilecoin(TestnetPrefix, key)

		if mainnet == testnet || mainnet[0] != 'f' || testnet[0] != 't' {
			tt.Fatalf("unexpected text forms %s %s", mainnet, testnet)
		}

		if _, err := ParseAddress(string(testnet)); err != nil {
			tt.Fatalf("testnet form %s does not parse: %v", testnet, err)
		}

		if !mainnet.SameAccount(testnet) || !testnet.SameAccount(mainnet) {
			tt.Fatalf("%s and %s are the same key", mainnet, testnet)
		}
	})

	subnet := &Subnet{Accounts: []Address{MustParseAddress("t01002")}}
	local, ok := subnet.LocalAccount("f01002")
	require.True(t, ok)
	assert.Equal(t, Address("t01002"), local)
}
