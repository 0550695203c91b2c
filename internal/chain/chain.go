// Package chain defines the capability bridgeops needs from an EVM chain:
// submit a call, wait for it to be buried, read its logs.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrTxFailure reports a transaction that was mined with a failed status.
	ErrTxFailure = errors.New("transaction failed")
	// ErrEventNotFound reports a receipt that lacks an expected event.
	ErrEventNotFound = errors.New("event not found")
)

// Call is a contract invocation.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Client submits signed transactions from a single account.
type Client interface {
	// Address is the account that signs submitted transactions.
	Address() common.Address
	SubmitTransaction(ctx context.Context, call Call) (common.Hash, error)
	// WaitForConfirmations blocks until the transaction has the given number
	// of confirmations. A reverted transaction yields a *TxFailureError.
	WaitForConfirmations(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error)
	// CallContract executes call without creating a transaction. A nil block
	// means the latest block.
	CallContract(ctx context.Context, call Call, block *big.Int) ([]byte, error)
}

// TxFailureError carries the receipt of a reverted transaction.
type TxFailureError struct {
	TxHash  common.Hash
	Receipt *types.Receipt
}

func (e *TxFailureError) Error() string {
	if e.Receipt != nil && e.Receipt.BlockNumber != nil {
		return fmt.Sprintf("%v: %s in block %s", ErrTxFailure, e.TxHash.Hex(), e.Receipt.BlockNumber)
	}
	return fmt.Sprintf("%v: %s", ErrTxFailure, e.TxHash.Hex())
}

func (e *TxFailureError) Unwrap() error { return ErrTxFailure }

// SubmitAndWait submits call and waits for the receipt.
func SubmitAndWait(ctx context.Context, c Client, call Call, confirmations uint64) (*types.Receipt, error) {
	hash, err := c.SubmitTransaction(ctx, call)
	if err != nil {
		return nil, err
	}
	return c.WaitForConfirmations(ctx, hash, confirmations)
}

// GetLogs returns the logs emitted by a transaction.
func GetLogs(receipt *types.Receipt) []*types.Log {
	if receipt == nil {
		return nil
	}
	return receipt.Logs
}

// FindLogs returns every log whose first topic is topic, in emission order.
func FindLogs(logs []*types.Log, topic common.Hash) []*types.Log {
	var found []*types.Log
	for _, l := range logs {
		if len(l.Topics) > 0 && l.Topics[0] == topic {
			found = append(found, l)
		}
	}
	return found
}

// FindLogsFrom is FindLogs restricted to logs emitted by emitter.
func FindLogsFrom(logs []*types.Log, emitter common.Address, topic common.Hash) []*types.Log {
	var found []*types.Log
	for _, l := range FindLogs(logs, topic) {
		if l.Address == emitter {
			found = append(found, l)
		}
	}
	return found
}

// FirstLog returns the first log with the given topic or ErrEventNotFound.
func FirstLog(logs []*types.Log, topic common.Hash) (*types.Log, error) {
	found := FindLogs(logs, topic)
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no log with topic %s among %d logs", ErrEventNotFound, topic.Hex(), len(logs))
	}
	return found[0], nil
}
