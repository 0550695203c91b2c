package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/submitter"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

const processTimeout = 5 * time.Minute

type VAAProcessor interface {
	// ProcessVAA handles one VAA and returns the transaction hash, or "" when it was skipped
	ProcessVAA(ctx context.Context, vaaData VAAData) (string, error)
}

type RelayProcessorConfig struct {
	ChainID uint16
	// Emitter restricts relaying to one emitter; nil relays every emitter of ChainID.
	Emitter *vaa.Address
}

// RelayProcessor submits VAAs from the configured source to a destination
// contract, each at most once per process.
type RelayProcessor struct {
	config    RelayProcessorConfig
	submitter submitter.VAASubmitter
	logger    *zap.Logger

	mu   sync.Mutex
	seen map[common.Hash]bool
}

func NewRelayProcessor(logger *zap.Logger, config RelayProcessorConfig, submitter submitter.VAASubmitter) *RelayProcessor {
	return &RelayProcessor{
		config:    config,
		submitter: submitter,
		logger:    logger.With(zap.String("component", "RelayProcessor")),
		seen:      make(map[common.Hash]bool),
	}
}

func (p *RelayProcessor) ProcessVAA(ctx context.Context, vaaData VAAData) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	LogVAA(p.logger, vaaData.VAA)

	if vaaData.ChainID != p.config.ChainID {
		p.logger.Debug("Skipping VAA (not from configured chain)",
			zap.Uint64("sequence", vaaData.Sequence),
			zap.Uint16("chain", vaaData.ChainID))
		return "", nil
	}

	if p.config.Emitter != nil && vaaData.Emitter != *p.config.Emitter {
		p.logger.Debug("Skipping VAA (not from configured emitter)",
			zap.Uint64("sequence", vaaData.Sequence),
			zap.String("emitter", vaaData.Emitter.Hex()),
			zap.String("expectedEmitter", p.config.Emitter.Hex()))
		return "", nil
	}

	if !p.claim(vaaData.VAA.Hash) {
		p.logger.Debug("Skipping VAA (already relayed)", zap.String("hash", vaaData.VAA.Hash.Hex()))
		return "", nil
	}

	p.logger.Info("Relaying VAA",
		zap.Uint16("chainId", vaaData.ChainID),
		zap.String("emitter", vaaData.Emitter.Hex()),
		zap.Uint64("sequence", vaaData.Sequence))

	txHash, err := p.submitter.SubmitVAA(ctx, vaaData.RawBytes)
	if err != nil {
		p.release(vaaData.VAA.Hash)
		if ctx.Err() != nil {
			p.logger.Warn("Transaction sending cancelled or timed out", zap.Error(ctx.Err()))
			return "", fmt.Errorf("transaction interrupted: %v", ctx.Err())
		}

		p.logger.Error("Failed to relay VAA",
			zap.Uint64("sequence", vaaData.Sequence),
			zap.Error(err))
		return "", fmt.Errorf("transaction failed: %w", err)
	}

	p.logger.Info("VAA relayed",
		zap.Uint64("sequence", vaaData.Sequence),
		zap.String("txHash", txHash))

	return txHash, nil
}

func (p *RelayProcessor) claim(hash common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[hash] {
		return false
	}
	p.seen[hash] = true
	return true
}

func (p *RelayProcessor) release(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen, hash)
}
