package submitter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/chain"
	"github.com/wormhole-demo/bridgeops/internal/contracts"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

const submitTimeout = 5 * time.Minute

// EVMSubmitter calls a single-VAA method of an EVM contract.
type EVMSubmitter struct {
	targetContract common.Address
	method         string
	parsed         abi.ABI
	client         chain.Client
	confirmations  uint64
	logger         *zap.Logger
}

var _ VAASubmitter = (*EVMSubmitter)(nil)

// Methods lists the method names NewEVMSubmitter accepts.
func Methods() []string {
	names := make([]string, 0, len(contracts.VAAMethods))
	for name := range contracts.VAAMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEVMSubmitter creates a submitter calling method on targetContract.
func NewEVMSubmitter(logger *zap.Logger, client chain.Client, targetContract common.Address, method string, confirmations uint64) (*EVMSubmitter, error) {
	parsed, ok := contracts.VAAMethods[method]
	if !ok {
		return nil, fmt.Errorf("unsupported VAA method %q (valid: %s)", method, strings.Join(Methods(), ", "))
	}
	return &EVMSubmitter{
		targetContract: targetContract,
		method:         method,
		parsed:         parsed,
		client:         client,
		confirmations:  confirmations,
		logger: logger.With(
			zap.String("component", "EVMSubmitter"),
			zap.String("method", method)),
	}, nil
}

// SubmitVAA rejects malformed VAAs before sending, then waits for the
// transaction to be confirmed.
func (s *EVMSubmitter) SubmitVAA(ctx context.Context, vaaBytes []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	v, err := vaa.Decode(vaaBytes)
	if err != nil {
		return "", err
	}

	s.logger.Info("Submitting VAA to EVM",
		zap.Int("vaaLength", len(vaaBytes)),
		zap.Uint16("emitterChain", v.EmitterChainID),
		zap.Uint64("sequence", v.Sequence),
		zap.String("vaaHash", v.Hash.Hex()),
		zap.String("targetContract", s.targetContract.Hex()),
		zap.String("fromAddress", s.client.Address().Hex()))

	data, err := s.parsed.Pack(s.method, vaaBytes)
	if err != nil {
		return "", fmt.Errorf("ABI pack error: %v", err)
	}

	receipt, err := chain.SubmitAndWait(ctx, s.client, chain.Call{To: s.targetContract, Data: data}, s.confirmations)
	if err != nil {
		return "", fmt.Errorf("failed to submit VAA to EVM: %w", err)
	}

	s.logger.Info("VAA successfully submitted to EVM",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.String("targetContract", s.targetContract.Hex()))

	return receipt.TxHash.Hex(), nil
}
