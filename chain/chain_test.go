package chain

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/ipc-checkpointer/chain/evm"
	"github.com/consensus-shipyard/ipc-checkpointer/chain/lotus"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

func TestFactory_NewClient(t *testing.T) {
	t.Parallel()

	factory := NewFactory(hclog.NewNullLogger())

	cases := []struct {
		name        string
		networkType types.NetworkType
		gateway     types.Address
		check       func(t *testing.T, client interface{})
		err         bool
	}{
		{
			name:        "fvm",
			networkType: types.FVM,
			gateway:     "t064",
			check: func(t *testing.T, client interface{}) {
				t.Helper()
				assert.IsType(t, &lotus.Client{}, client)
			},
		},
		{
			name:        "fevm",
			networkType: types.FEVM,
			gateway:     "0x77aa40b105843728088c0132e43fc44348881da8",
			check: func(t *testing.T, client interface{}) {
				t.Helper()
				assert.IsType(t, &evm.Client{}, client)
			},
		},
		{
			name:        "fevm gateway without ethereum form",
			networkType: types.FEVM,
			gateway:     "t3vvmn62lofvhjd2ugzca6sof2j2ubwok6cj4xxbfzz4yuxfkgobpihhd2thlanmsh3w2ptld2gqkn2jvlss4a",
			err:         true,
		},
		{
			name:        "unknown",
			networkType: types.NetworkType("wasm"),
			gateway:     "t064",
			err:         true,
		},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			client, err := factory.NewClient(&types.Subnet{
				ID:          types.NewRootID(31415926),
				NetworkType: c.networkType,
				RPCAddr:     "http://127.0.0.1:1234/rpc/v1",
				GatewayAddr: c.gateway,
			})

			if c.err {
				require.Error(t, err)
				assert.Nil(t, client)

				return
			}

			require.NoError(t, err)
			c.check(t, client)
			assert.NoError(t, client.Close())
		})
	}
}
