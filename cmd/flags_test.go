package cmd

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

const (
	coreAddress   = "0x1111111111111111111111111111111111111111"
	bridgeAddress = "0x2222222222222222222222222222222222222222"
)

func targetCommand(t *testing.T, flags map[string]string) *cobra.Command {
	c := &cobra.Command{Use: "test"}
	addTargetFlags(c)
	for name, value := range flags {
		require.NoError(t, c.Flags().Set(name, value))
	}
	return c
}

func loadConfig(t *testing.T) *config.Config {
	v := viper.New()
	v.Set("base_wormhole19_core", coreAddress)
	v.Set("base_bridge_app", bridgeAddress)
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestTargetResolvesBridgeApp(t *testing.T) {
	c := targetCommand(t, map[string]string{"target-chain-id": "base", "method": "completeTransfer"})

	addr, method, err := target(c, loadConfig(t))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(bridgeAddress), addr)
	assert.Equal(t, "completeTransfer", method)
}

func TestTargetResolvesCore(t *testing.T) {
	c := targetCommand(t, map[string]string{"target-chain-id": "30", "method": coreMethod})

	addr, method, err := target(c, loadConfig(t))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(coreAddress), addr)
	assert.Equal(t, coreMethod, method)

	c = targetCommand(t, map[string]string{"target-chain-id": "30", "method": coreMethod, "verifier-type": "1"})
	_, _, err = target(c, loadConfig(t))
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
}

func TestHashFlag(t *testing.T) {
	want := common.HexToHash("0xab01")

	got, err := hashFlag(want.Hex(), nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = hashFlag(want.Hex()[2:], nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for _, bad := range []string{"", "0x12", "0xzz"} {
		_, err := hashFlag(bad, nil)
		assert.ErrorIs(t, err, config.ErrInvalidConfiguration, bad)
	}
}

func TestOptionalFlags(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	c.Flags().Uint32("nonce", 0, "")
	c.Flags().String("publisher-type", "", "")

	assert.Nil(t, optionalNonce(c, "nonce"))
	verifier, err := optionalVerifier(c, "publisher-type")
	require.NoError(t, err)
	assert.Nil(t, verifier)

	require.NoError(t, c.Flags().Set("nonce", "0"))
	require.NoError(t, c.Flags().Set("publisher-type", "1"))

	nonce := optionalNonce(c, "nonce")
	require.NotNil(t, nonce)
	assert.Equal(t, uint32(0), *nonce)
	verifier, err = optionalVerifier(c, "publisher-type")
	require.NoError(t, err)
	require.NotNil(t, verifier)
	assert.Equal(t, config.WHISK, *verifier)
}

func TestVAAView(t *testing.T) {
	var emitter vaa.Address
	emitter[31] = 0x04
	sig := vaa.Signature{GuardianIndex: 3, V: 28}
	sig.R[0] = 0xaa
	raw, err := vaa.Encode(&vaa.VAA{
		Version:          1,
		Signatures:       []vaa.Signature{sig},
		Timestamp:        1700000000,
		Nonce:            7,
		EmitterChainID:   2,
		EmitterAddress:   emitter,
		Sequence:         18446744073709551615,
		ConsistencyLevel: 15,
		Payload:          []byte{0x01, 0x02},
	})
	require.NoError(t, err)
	v, err := vaa.Decode(raw)
	require.NoError(t, err)

	view := newVAAView(v)
	assert.Equal(t, "18446744073709551615", view.Sequence)
	assert.Equal(t, "ethereum", view.EmitterChain)
	assert.Equal(t, "0x0102", view.Payload)
	assert.Equal(t, v.Hash.Hex(), view.Hash)
	require.Len(t, view.Signatures, 1)
	assert.Equal(t, uint8(3), view.Signatures[0].GuardianIndex)
	assert.Equal(t, uint8(28), view.Signatures[0].V)
	assert.Equal(t, "0xaa", view.Signatures[0].R[:4])
}
