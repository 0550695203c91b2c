package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/chain"
)

const (
	defaultGasLimit = 3000000
	// tip added on top of twice the base fee
	priorityFee = 100000000 // 0.1 gwei
)

// ErrReadOnly is returned when a client without a signing key is asked to
// send a transaction.
var ErrReadOnly = errors.New("client has no signing key")

// EVMBackend is the subset of ethclient.Client the EVM client uses.
type EVMBackend interface {
	ethereum.TransactionReader
	ethereum.TransactionSender
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EVMClient signs and submits transactions to an EVM-compatible chain.
type EVMClient struct {
	backend      EVMBackend
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

var _ chain.Client = (*EVMClient)(nil)

// NewEVMClient dials rpcURL and signs with privateKeyHex.
func NewEVMClient(logger *zap.Logger, rpcURL, privateKeyHex string) (*EVMClient, error) {
	logger.With(zap.String("component", "EVMClient")).Info("Connecting to EVM chain", zap.String("rpcURL", rpcURL))
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %v", err)
	}
	return NewEVMClientWithBackend(logger, ethClient, privateKeyHex)
}

// NewEVMClientWithBackend builds a client on an already connected backend.
// An empty privateKeyHex yields a read-only client.
func NewEVMClientWithBackend(logger *zap.Logger, backend EVMBackend, privateKeyHex string) (*EVMClient, error) {
	if privateKeyHex == "" {
		return &EVMClient{
			backend:      backend,
			pollInterval: 2 * time.Second,
			logger:       logger.With(zap.String("component", "EVMClient")),
		}, nil
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &EVMClient{
		backend:      backend,
		privateKey:   privateKey,
		address:      crypto.PubkeyToAddress(*publicKeyECDSA),
		pollInterval: 2 * time.Second,
		logger:       logger.With(zap.String("component", "EVMClient")),
	}, nil
}

// Address returns the public address for this client.
func (c *EVMClient) Address() common.Address {
	return c.address
}

// SubmitTransaction signs call and broadcasts it. Chains with a base fee get
// an EIP-1559 transaction, others a legacy one.
func (c *EVMClient) SubmitTransaction(ctx context.Context, call chain.Call) (common.Hash, error) {
	if c.privateKey == nil {
		return common.Hash{}, ErrReadOnly
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %v", err)
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get chain ID: %v", err)
	}

	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get latest block header: %v", err)
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	to := call.To

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.address, To: &to, Value: value, Data: call.Data})
	if err != nil {
		c.logger.Debug("Gas estimation failed, using default limit", zap.Error(err), zap.Uint64("gas", defaultGasLimit))
		gas = defaultGasLimit
	}

	var tx *types.Transaction
	if header.BaseFee != nil {
		tip := big.NewInt(priorityFee)
		feeCap := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)

		c.logger.Debug("Gas fees calculated",
			zap.String("baseFee", header.BaseFee.String()),
			zap.String("maxFeePerGas", feeCap.String()),
			zap.String("maxPriorityFeePerGas", tip.String()))

		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      call.Data,
		})
	} else {
		gasPrice, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to get gas price: %v", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     call.Data,
		})
	}

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %v", err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %v", err)
	}

	c.logger.Info("Transaction sent",
		zap.String("txHash", signedTx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce))
	return signedTx.Hash(), nil
}

// WaitForConfirmations polls for the receipt, then for the chain head to be
// confirmations-1 blocks past the receipt's block.
func (c *EVMClient) WaitForConfirmations(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error) {
	backoff := retry.NewConstant(c.pollInterval)

	var receipt *types.Receipt
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := c.backend.TransactionReceipt(ctx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return fmt.Errorf("failed to get receipt: %v", err)
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &chain.TxFailureError{TxHash: txHash, Receipt: receipt}
	}

	if confirmations > 1 {
		target := receipt.BlockNumber.Uint64() + confirmations - 1
		err = retry.Do(ctx, backoff, func(ctx context.Context) error {
			head, err := c.backend.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("failed to get block number: %v", err)
			}
			if head < target {
				return retry.RetryableError(fmt.Errorf("block %d has not reached %d", head, target))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Transaction confirmed",
		zap.String("txHash", txHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("confirmations", confirmations))
	return receipt, nil
}

// CallContract runs call as the client's account at block.
func (c *EVMClient) CallContract(ctx context.Context, call chain.Call, block *big.Int) ([]byte, error) {
	to := call.To
	return c.backend.CallContract(ctx, ethereum.CallMsg{From: c.address, To: &to, Value: call.Value, Data: call.Data}, block)
}

// Receipt returns the receipt of a mined transaction.
func (c *EVMClient) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %v", err)
	}
	return receipt, nil
}

// TransactionCall rebuilds the call and sender of a mined transaction so it
// can be replayed.
func (c *EVMClient) TransactionCall(ctx context.Context, txHash common.Hash) (chain.Call, common.Address, error) {
	tx, _, err := c.backend.TransactionByHash(ctx, txHash)
	if err != nil {
		return chain.Call{}, common.Address{}, fmt.Errorf("failed to get transaction: %v", err)
	}
	if tx.To() == nil {
		return chain.Call{}, common.Address{}, fmt.Errorf("transaction %s is a contract creation", txHash.Hex())
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return chain.Call{}, common.Address{}, fmt.Errorf("failed to recover sender: %v", err)
	}
	return chain.Call{To: *tx.To(), Data: tx.Data(), Value: tx.Value()}, from, nil
}

// Close closes the backend connection if it has one.
func (c *EVMClient) Close() {
	if closer, ok := c.backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

// ReplayTransaction re-executes a mined transaction as its sender at the
// block it was mined in and returns the call result.
func (c *EVMClient) ReplayTransaction(ctx context.Context, txHash common.Hash) ([]byte, error) {
	call, from, err := c.TransactionCall(ctx, txHash)
	if err != nil {
		return nil, err
	}
	receipt, err := c.Receipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	to := call.To
	return c.backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Value: call.Value, Data: call.Data}, receipt.BlockNumber)
}

// SetPollInterval sets how often receipts and the chain head are polled.
func (c *EVMClient) SetPollInterval(d time.Duration) {
	c.pollInterval = d
}
