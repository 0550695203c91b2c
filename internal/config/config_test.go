package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

const (
	govContract = "0x0290FB167208Af455bB137780163b7B7a9a10C16"
	coreAddress = "0xC89Ce4735882C9F0f0FE26686c53074E09B0D550"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, uint64(3), cfg.Confirmations)
	assert.Equal(t, 3, cfg.PollAttempts)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, vaa.EncodingBase64, cfg.Encoding)
	assert.Equal(t, DefaultSpyRPCHost, cfg.SpyRPCHost)
	assert.Len(t, cfg.Chains, 3)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GUARDIAN19_ENDPOINT", "https://guardian.example")
	t.Setenv("GUARDIAN19_CHAIN_PROXY_AUTH", "dXNlcjpwYXNz")
	t.Setenv("BRIDGE_GOVERNANCE_CONTRACT", govContract)
	t.Setenv("BRIDGE_GOVERNANCE_CHAIN", "13")
	t.Setenv("KLAYTN_WORMHOLE19_CORE", coreAddress)
	t.Setenv("BASE_BRIDGE_APP", govContract)

	v := viper.New()
	v.AutomaticEnv()
	cfg, err := Load(v)
	require.NoError(t, err)

	g, err := cfg.Guardian(WH19)
	require.NoError(t, err)
	assert.Equal(t, "https://guardian.example", g.Endpoint)
	assert.Equal(t, "dXNlcjpwYXNz", g.Auth)

	_, err = cfg.Guardian(WHISK)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	chainID, emitter, err := cfg.GovernanceEmitter()
	require.NoError(t, err)
	assert.Equal(t, uint16(13), chainID)
	assert.Equal(t, vaa.AddressFromEVM(common.HexToAddress(govContract)), emitter)

	core, err := cfg.Wormhole(13, WH19)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(coreAddress), core)

	bridge, err := cfg.BridgeApp(30, AppBridge)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(govContract), bridge)
}

func TestLoadAggregatesProblems(t *testing.T) {
	v := viper.New()
	v.Set("bridge_governance_contract", "not-an-address")
	v.Set("ethereum_bridge_app", "0x1234")
	v.Set("poll_attempts", 0)
	v.Set("poll_interval", "0s")
	v.Set("encoding", "rlp")

	_, err := Load(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "BRIDGE_GOVERNANCE_CONTRACT")
	assert.Contains(t, err.Error(), "ETHEREUM_BRIDGE_APP")
	assert.Contains(t, err.Error(), "poll attempts")
	assert.Contains(t, err.Error(), "poll interval")
	assert.Contains(t, err.Error(), "rlp")
}

func TestLookups(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	_, err = cfg.Wormhole(99, WH19)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = cfg.Wormhole(2, WH19)
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "unset core")

	_, err = cfg.Wormhole(2, Verifier(7))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = cfg.BridgeApp(2, App("dex"))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = cfg.Governance()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	assert.ErrorIs(t, cfg.RequireSigner(), ErrInvalidConfiguration)
}

func TestParseVerifier(t *testing.T) {
	for in, want := range map[string]Verifier{"0": WH19, "WH_19": WH19, "1": WHISK, "wh_isk": WHISK} {
		got, err := ParseVerifier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseVerifier("2")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, "WH_ISK", WHISK.String())
}

func TestChainIDs(t *testing.T) {
	for name, want := range map[string]uint16{
		"cypress": 13, "baobab": 13, "ethereum": 2, "goerli": 2, "base": 30, "baseGoerli": 30,
	} {
		got, err := ChainIDByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	id, err := ParseChainID("30")
	require.NoError(t, err)
	assert.Equal(t, uint16(30), id)

	_, err = ParseChainID("mars")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
