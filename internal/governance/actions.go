package governance

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/contracts"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// Module names the bridge application a governance message targets.
type Module string

const (
	TokenBridge      Module = "TokenBridge"
	NFTBridge        Module = "NFTBridge"
	MultiTokenBridge Module = "MultiTokenBridge"
)

// ModuleForApp maps a bridge app name (bridge, nftbridge, multitokenbridge)
// to its governance module.
func ModuleForApp(app string) (Module, error) {
	switch app {
	case "bridge":
		return TokenBridge, nil
	case "nftbridge":
		return NFTBridge, nil
	case "multitokenbridge":
		return MultiTokenBridge, nil
	}
	return "", fmt.Errorf("unknown bridge app %q (valid: bridge, nftbridge, multitokenbridge)", app)
}

// Action is a call proposed through the multisig.
type Action struct {
	Method string
	Args   []interface{}
	// PublishesMessage is set when executing the proposal makes the
	// governance contract publish a wormhole message.
	PublishesMessage bool

	fields []zap.Field
}

// Pack encodes the proposal call data.
func (a Action) Pack() ([]byte, error) {
	data, err := contracts.Governance.Pack(a.Method, a.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", a.Method, err)
	}
	return data, nil
}

// LogFields describes the action inputs for logging.
func (a Action) LogFields() []zap.Field {
	return append([]zap.Field{zap.String("method", a.Method)}, a.fields...)
}

func RegisterChain(module Module, targetChainID, chainID uint16, bridge, verifier vaa.Address) Action {
	return Action{
		Method:           "registerChain",
		Args:             []interface{}{string(module), targetChainID, chainID, [32]byte(bridge), [32]byte(verifier)},
		PublishesMessage: true,
		fields: []zap.Field{
			zap.String("module", string(module)),
			zap.Uint16("targetChainId", targetChainID),
			zap.Uint16("chainId", chainID),
			zap.String("bridgeAddress", bridge.Hex()),
			zap.String("verifierAddress", verifier.Hex()),
		},
	}
}

func UpgradeBridge(module Module, targetChainID uint16, implementation vaa.Address) Action {
	return Action{
		Method:           "upgradeBridgeContract",
		Args:             []interface{}{string(module), targetChainID, [32]byte(implementation)},
		PublishesMessage: true,
		fields: []zap.Field{
			zap.String("module", string(module)),
			zap.Uint16("targetChainId", targetChainID),
			zap.String("implementation", implementation.Hex()),
		},
	}
}

// CreateWrapped proposes creating a wrapped token from an asset meta VAA.
func CreateWrapped(assetMetaVM []byte, name, symbol string, targetChainID uint16) Action {
	return Action{
		Method:           "createWrapped",
		Args:             []interface{}{assetMetaVM, name, symbol, targetChainID},
		PublishesMessage: true,
		fields: []zap.Field{
			zap.String("assetMetaVm", vaa.EncodingHex.Format(assetMetaVM)),
			zap.String("name", name),
			zap.String("symbol", symbol),
			zap.Uint16("targetChainId", targetChainID),
		},
	}
}

// CreateAdapter proposes wrapping an existing token on the target chain.
func CreateAdapter(assetMetaVM []byte, targetChainID uint16, token vaa.Address) Action {
	return Action{
		Method:           "createAdapter",
		Args:             []interface{}{assetMetaVM, targetChainID, [32]byte(token)},
		PublishesMessage: true,
		fields: []zap.Field{
			zap.String("assetMetaVm", vaa.EncodingHex.Format(assetMetaVM)),
			zap.Uint16("targetChainId", targetChainID),
			zap.String("tokenAddress", token.Hex()),
		},
	}
}

// UpdateServiceFeePolicy targets the token bridge only.
func UpdateServiceFeePolicy(targetChainID uint16, policy vaa.Address) Action {
	return Action{
		Method:           "updateServiceFeePolicy",
		Args:             []interface{}{string(TokenBridge), targetChainID, [32]byte(policy)},
		PublishesMessage: true,
		fields: []zap.Field{
			zap.Uint16("targetChainId", targetChainID),
			zap.String("newPolicy", policy.Hex()),
		},
	}
}

func SetVerifier(emitterChain uint16, verifier common.Address) Action {
	return Action{
		Method: "setVerifier",
		Args:   []interface{}{emitterChain, verifier},
		fields: []zap.Field{
			zap.Uint16("emitterChain", emitterChain),
			zap.String("verifier", verifier.Hex()),
		},
	}
}

func SetConsistencyLevel(level uint8) Action {
	return Action{
		Method: "setConsistencyLevel",
		Args:   []interface{}{level},
		fields: []zap.Field{zap.Uint8("newConsistencyLevel", level)},
	}
}

func AddVoter(voter common.Address) Action {
	return memberAction("proposeAddVoter", "newVoter", voter)
}

func RemoveVoter(voter common.Address) Action {
	return memberAction("proposeRemoveVoter", "target", voter)
}

func AddProposer(proposer common.Address) Action {
	return memberAction("proposeAddProposer", "newProposer", proposer)
}

func RemoveProposer(proposer common.Address) Action {
	return memberAction("proposeRemoveProposer", "target", proposer)
}

func memberAction(method, field string, member common.Address) Action {
	return Action{
		Method: method,
		Args:   []interface{}{member},
		fields: []zap.Field{zap.String(field, member.Hex())},
	}
}

func ChangeQuorumSize(size uint64) Action {
	return Action{
		Method: "proposeChangeQuorumSize",
		Args:   []interface{}{new(big.Int).SetUint64(size)},
		fields: []zap.Field{zap.Uint64("newQuorumSize", size)},
	}
}

// Checkpoint proposes invalidating every transaction id below id.
func Checkpoint(id TxID) Action {
	return Action{
		Method: "proposeCheckpoint",
		Args:   []interface{}{id.Big()},
		fields: []zap.Field{zap.String("checkPoint", id.String())},
	}
}
