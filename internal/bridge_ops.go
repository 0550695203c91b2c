package internal

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/chain"
	"github.com/wormhole-demo/bridgeops/internal/clients"
	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/contracts"
	"github.com/wormhole-demo/bridgeops/internal/sequence"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// nonceRange is the width of randomly drawn message nonces. Destination
// contracts deduplicate by (chain, emitter, sequence), the nonce is a hint.
const nonceRange = 10000

// RandomNonce draws a message nonce in [0, 10000).
func RandomNonce() uint32 {
	return uint32(rand.Intn(nonceRange))
}

// NonceOrRandom returns *nonce, or a random one when nonce is nil.
func NonceOrRandom(nonce *uint32) uint32 {
	if nonce != nil {
		return *nonce
	}
	return RandomNonce()
}

// Published is the result of a message producing bridge call.
type Published struct {
	Receipt *types.Receipt
	Message *sequence.MessagePublished
	Nonce   uint32
	// VAA is nil when no publisher was given or the VAA is not available yet.
	VAA *clients.FetchedVAA
}

// BridgeOperator sends message producing calls to the token bridge of one
// chain.
type BridgeOperator struct {
	client        chain.Client
	bridge        common.Address
	chainID       uint16
	confirmations uint64
	attestor      *Attestor
	logger        *zap.Logger
}

func NewBridgeOperator(logger *zap.Logger, client chain.Client, bridge common.Address, chainID uint16, confirmations uint64, attestor *Attestor) *BridgeOperator {
	return &BridgeOperator{
		client:        client,
		bridge:        bridge,
		chainID:       chainID,
		confirmations: confirmations,
		attestor:      attestor,
		logger: logger.With(
			zap.String("component", "BridgeOperator"),
			zap.Uint16("chainId", chainID),
			zap.String("bridge", bridge.Hex())),
	}
}

// AttestToken publishes the metadata of token. The VAA is fetched only when
// publisher is set.
func (b *BridgeOperator) AttestToken(ctx context.Context, token common.Address, nonce uint32, publisher *config.Verifier) (*Published, error) {
	b.logger.Info("Attesting token", zap.String("tokenAddress", token.Hex()), zap.Uint32("nonce", nonce))
	return b.publish(ctx, "attestToken", nonce, publisher, token, nonce)
}

// CreateWrapped creates a wrapped token from an asset meta VAA and fetches
// the resulting VAA from WH_19.
func (b *BridgeOperator) CreateWrapped(ctx context.Context, assetMetaVM []byte, nonce uint32) (*Published, error) {
	b.logger.Info("Creating wrapped token", zap.Int("vaaLength", len(assetMetaVM)), zap.Uint32("nonce", nonce))
	publisher := config.WH19
	return b.publish(ctx, "createWrapped", nonce, &publisher, assetMetaVM, nonce)
}

// CreateAdapter wraps an existing token with an initial amount and fetches
// the resulting VAA from WH_19.
func (b *BridgeOperator) CreateAdapter(ctx context.Context, assetMetaVM []byte, initial *big.Int, nonce uint32) (*Published, error) {
	if initial == nil || initial.Sign() < 0 {
		return nil, fmt.Errorf("%w: initial amount must not be negative", config.ErrInvalidConfiguration)
	}
	b.logger.Info("Creating adapter",
		zap.Int("vaaLength", len(assetMetaVM)),
		zap.String("init", initial.String()),
		zap.Uint32("nonce", nonce))
	publisher := config.WH19
	return b.publish(ctx, "createAdapter", nonce, &publisher, assetMetaVM, initial, nonce)
}

func (b *BridgeOperator) publish(ctx context.Context, method string, nonce uint32, publisher *config.Verifier, args ...interface{}) (*Published, error) {
	data, err := contracts.Bridge.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %v", method, err)
	}

	receipt, err := chain.SubmitAndWait(ctx, b.client, chain.Call{To: b.bridge, Data: data}, b.confirmations)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, err)
	}

	msg, err := sequence.Extract(receipt.Logs)
	if err != nil {
		return nil, err
	}
	b.logger.Info("Message published",
		zap.String("method", method),
		zap.String("emitterAddress", b.bridge.Hex()),
		zap.String("sequence", msg.Sequence),
		zap.String("txHash", receipt.TxHash.Hex()))

	out := &Published{Receipt: receipt, Message: msg, Nonce: nonce}
	if publisher == nil {
		return out, nil
	}
	out.VAA, err = b.attestor.Await(ctx, Message{
		Verifier:  *publisher,
		ChainID:   b.chainID,
		Emitter:   vaa.AddressFromEVM(b.bridge),
		Sequence:  msg.Sequence,
		Operation: method,
		TxHash:    receipt.TxHash.Hex(),
	})
	return out, err
}
