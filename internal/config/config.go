// Package config builds the single configuration struct handed to every
// bridgeops component.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// ErrInvalidConfiguration reports missing or malformed settings.
var ErrInvalidConfiguration = errors.New("invalid configuration")

const (
	DefaultConfirmations = 3
	DefaultPollAttempts  = 3
	DefaultPollInterval  = 5 * time.Second
	DefaultSpyRPCHost    = "localhost:7073"
	DefaultJournalPath   = ".bridgeops/pending"
)

// Verifier selects one of the two guardian networks and its core contract.
type Verifier uint8

const (
	WH19  Verifier = 0
	WHISK Verifier = 1
)

func ParseVerifier(s string) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "wh19", "wh_19":
		return WH19, nil
	case "1", "whisk", "wh_isk":
		return WHISK, nil
	}
	return 0, fmt.Errorf("%w: verifier type %q (valid: 0 for WH_19, 1 for WH_ISK)", ErrInvalidConfiguration, s)
}

func (v Verifier) String() string {
	switch v {
	case WH19:
		return "WH_19"
	case WHISK:
		return "WH_ISK"
	}
	return "Verifier(" + strconv.Itoa(int(v)) + ")"
}

// App is a bridge application deployed per chain.
type App string

const (
	AppBridge           App = "bridge"
	AppNFTBridge        App = "nftbridge"
	AppMultiTokenBridge App = "multitokenbridge"
)

// GuardianNetwork is the REST endpoint of one guardian network.
type GuardianNetwork struct {
	Endpoint string
	// Auth is sent as "Authorization: Basic <Auth>" when set.
	Auth string
}

// ChainContracts are the deployed addresses on one chain. Empty means unset.
type ChainContracts struct {
	Wormhole19       string
	WormholeISK      string
	BridgeApp        string
	NFTBridgeApp     string
	MultiTokenBridge string
}

// chains maps wormhole chain ids to the env prefix of their contracts.
var chains = map[uint16]string{
	2:  "ETHEREUM",
	13: "KLAYTN",
	30: "BASE",
}

var chainNames = map[string]uint16{
	"ethereum":   2,
	"goerli":     2,
	"cypress":    13,
	"baobab":     13,
	"base":       30,
	"basegoerli": 30,
}

// ChainIDByName maps a network name to its wormhole chain id.
func ChainIDByName(name string) (uint16, error) {
	id, ok := chainNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown network %q", ErrInvalidConfiguration, name)
	}
	return id, nil
}

// ParseChainID accepts a wormhole chain id or a network name.
func ParseChainID(s string) (uint16, error) {
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return uint16(n), nil
	}
	return ChainIDByName(s)
}

type Config struct {
	RPCURL     string
	PrivateKey string

	Confirmations uint64
	PollAttempts  int
	PollInterval  time.Duration
	Encoding      vaa.Encoding

	Guardians map[Verifier]GuardianNetwork

	GovernanceChainID  uint16
	GovernanceContract string

	Chains map[uint16]ChainContracts

	JournalPath string
	SpyRPCHost  string
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("confirmations", DefaultConfirmations)
	v.SetDefault("poll_attempts", DefaultPollAttempts)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("encoding", string(vaa.EncodingBase64))
	v.SetDefault("journal_path", DefaultJournalPath)
	v.SetDefault("spy_rpc_host", DefaultSpyRPCHost)

	var result *multierror.Error

	encoding, err := vaa.ParseEncoding(v.GetString("encoding"))
	if err != nil {
		result = multierror.Append(result, err)
	}

	cfg := &Config{
		RPCURL:        v.GetString("rpc_url"),
		PrivateKey:    v.GetString("private_key"),
		Confirmations: v.GetUint64("confirmations"),
		PollAttempts:  v.GetInt("poll_attempts"),
		PollInterval:  v.GetDuration("poll_interval"),
		Encoding:      encoding,
		Guardians: map[Verifier]GuardianNetwork{
			WH19:  {Endpoint: v.GetString("guardian19_endpoint"), Auth: v.GetString("guardian19_chain_proxy_auth")},
			WHISK: {Endpoint: v.GetString("guardian_isk_endpoint"), Auth: v.GetString("guardian_isk_chain_proxy_auth")},
		},
		GovernanceContract: v.GetString("bridge_governance_contract"),
		Chains:             make(map[uint16]ChainContracts),
		JournalPath:        v.GetString("journal_path"),
		SpyRPCHost:         v.GetString("spy_rpc_host"),
	}

	if s := v.GetString("bridge_governance_chain"); s != "" {
		id, err := ParseChainID(s)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("BRIDGE_GOVERNANCE_CHAIN: %w", err))
		}
		cfg.GovernanceChainID = id
	}

	for id, prefix := range chains {
		p := strings.ToLower(prefix)
		cfg.Chains[id] = ChainContracts{
			Wormhole19:       v.GetString(p + "_wormhole19_core"),
			WormholeISK:      v.GetString(p + "_wormhole_isk_core"),
			BridgeApp:        v.GetString(p + "_bridge_app"),
			NFTBridgeApp:     v.GetString(p + "_nftbridge_app"),
			MultiTokenBridge: v.GetString(p + "_multitokenbridge_app"),
		}
	}

	if err := cfg.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

// Validate checks every set value. Settings only some commands need are
// checked by the lookups below.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Confirmations == 0 {
		result = multierror.Append(result, errors.New("confirmations must be positive"))
	}
	if c.PollAttempts <= 0 {
		result = multierror.Append(result, errors.New("poll attempts must be positive"))
	}
	if c.PollInterval <= 0 {
		result = multierror.Append(result, errors.New("poll interval must be positive"))
	}
	if c.GovernanceContract != "" && !isAddress(c.GovernanceContract) {
		result = multierror.Append(result, fmt.Errorf("BRIDGE_GOVERNANCE_CONTRACT %q is not an address", c.GovernanceContract))
	}

	for id, contracts := range c.Chains {
		prefix := chains[id]
		for name, addr := range map[string]string{
			"WORMHOLE19_CORE":      contracts.Wormhole19,
			"WORMHOLE_ISK_CORE":    contracts.WormholeISK,
			"BRIDGE_APP":           contracts.BridgeApp,
			"NFTBRIDGE_APP":        contracts.NFTBridgeApp,
			"MULTITOKENBRIDGE_APP": contracts.MultiTokenBridge,
		} {
			if addr != "" && !isAddress(addr) {
				result = multierror.Append(result, fmt.Errorf("%s_%s %q is not an address", prefix, name, addr))
			}
		}
	}

	return result.ErrorOrNil()
}

// RequireSigner checks the settings needed to send transactions.
func (c *Config) RequireSigner() error {
	var result *multierror.Error
	if c.RPCURL == "" {
		result = multierror.Append(result, errors.New("rpc url is not set"))
	}
	if c.PrivateKey == "" {
		result = multierror.Append(result, errors.New("private key is not set"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return nil
}

// Guardian returns the configured endpoint of a guardian network.
func (c *Config) Guardian(v Verifier) (GuardianNetwork, error) {
	g, ok := c.Guardians[v]
	if !ok || g.Endpoint == "" {
		return GuardianNetwork{}, fmt.Errorf("%w: no guardian endpoint for %s", ErrInvalidConfiguration, v)
	}
	return g, nil
}

// Governance returns the governance multisig address.
func (c *Config) Governance() (common.Address, error) {
	if c.GovernanceContract == "" {
		return common.Address{}, fmt.Errorf("%w: BRIDGE_GOVERNANCE_CONTRACT is not set", ErrInvalidConfiguration)
	}
	return common.HexToAddress(c.GovernanceContract), nil
}

// GovernanceEmitter returns the chain and emitter of governance messages.
func (c *Config) GovernanceEmitter() (uint16, vaa.Address, error) {
	addr, err := c.Governance()
	if err != nil {
		return 0, vaa.Address{}, err
	}
	if c.GovernanceChainID == 0 {
		return 0, vaa.Address{}, fmt.Errorf("%w: BRIDGE_GOVERNANCE_CHAIN is not set", ErrInvalidConfiguration)
	}
	return c.GovernanceChainID, vaa.AddressFromEVM(addr), nil
}

// Wormhole returns the core contract of verifier on chainID.
func (c *Config) Wormhole(chainID uint16, v Verifier) (common.Address, error) {
	contracts, err := c.chain(chainID)
	if err != nil {
		return common.Address{}, err
	}
	var addr string
	switch v {
	case WH19:
		addr = contracts.Wormhole19
	case WHISK:
		addr = contracts.WormholeISK
	default:
		return common.Address{}, fmt.Errorf("%w: invalid wormhole type %d", ErrInvalidConfiguration, v)
	}
	return required(addr, "%s core on chain %d", v, chainID)
}

// BridgeApp returns the address of app on chainID.
func (c *Config) BridgeApp(chainID uint16, app App) (common.Address, error) {
	contracts, err := c.chain(chainID)
	if err != nil {
		return common.Address{}, err
	}
	var addr string
	switch app {
	case AppBridge:
		addr = contracts.BridgeApp
	case AppNFTBridge:
		addr = contracts.NFTBridgeApp
	case AppMultiTokenBridge:
		addr = contracts.MultiTokenBridge
	default:
		return common.Address{}, fmt.Errorf("%w: unknown bridge app %q", ErrInvalidConfiguration, app)
	}
	return required(addr, "%s on chain %d", app, chainID)
}

func (c *Config) chain(id uint16) (ChainContracts, error) {
	contracts, ok := c.Chains[id]
	if !ok {
		return ChainContracts{}, fmt.Errorf("%w: unsupported chain id %d", ErrInvalidConfiguration, id)
	}
	return contracts, nil
}

func required(addr, format string, args ...interface{}) (common.Address, error) {
	if addr == "" {
		return common.Address{}, fmt.Errorf("%w: %s is not set", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}
	if !isAddress(addr) {
		return common.Address{}, fmt.Errorf("%w: %s is malformed: %q", ErrInvalidConfiguration, fmt.Sprintf(format, args...), addr)
	}
	return common.HexToAddress(addr), nil
}

func isAddress(s string) bool {
	return common.IsHexAddress(s)
}
