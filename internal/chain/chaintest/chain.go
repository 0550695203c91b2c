// Package chaintest provides an in-memory chain with fixture contracts for
// exercising governance and bridge flows without a node.
package chaintest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wormhole-demo/bridgeops/internal/chain"
)

// Contract is a fixture contract. Transact returns the logs emitted by a
// state-changing call or a *RevertError. Call must not change state; for
// state-changing methods it reports whether Transact would revert.
type Contract interface {
	Transact(from common.Address, data []byte) ([]*types.Log, error)
	Call(from common.Address, data []byte) ([]byte, error)
}

// Chain is a single-node chain that mines each transaction into its own block.
type Chain struct {
	mu        sync.Mutex
	contracts map[common.Address]Contract
	receipts  map[common.Hash]*types.Receipt
	calls     map[common.Hash]chain.Call
	senders   map[common.Hash]common.Address
	block     uint64
	nonce     uint64
}

func New() *Chain {
	return &Chain{
		contracts: make(map[common.Address]Contract),
		receipts:  make(map[common.Hash]*types.Receipt),
		calls:     make(map[common.Hash]chain.Call),
		senders:   make(map[common.Hash]common.Address),
	}
}

// Deploy places contract at addr.
func (c *Chain) Deploy(addr common.Address, contract Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[addr] = contract
}

// Client returns a chain.Client signing as from.
func (c *Chain) Client(from common.Address) *Client {
	return &Client{chain: c, from: from}
}

// Receipt returns the receipt of a mined transaction.
func (c *Chain) Receipt(hash common.Hash) (*types.Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	return r, ok
}

// Transaction returns the call and sender of a mined transaction.
func (c *Chain) Transaction(hash common.Hash) (chain.Call, common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[hash]
	return call, c.senders[hash], ok
}

// RevertError is returned by fixture calls that revert. Like a node's
// JSON-RPC error it exposes the ABI encoded Error(string) as ErrorData.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string { return "execution reverted: " + e.Reason }

func (e *RevertError) ErrorCode() int { return 3 }

func (e *RevertError) ErrorData() interface{} {
	stringType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringType}}.Pack(e.Reason)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

// Revertf builds a RevertError.
func Revertf(format string, args ...interface{}) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

func (c *Chain) mine(from common.Address, call chain.Call) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.contracts[call.To]
	if !ok {
		return common.Hash{}, fmt.Errorf("no contract at %s", call.To.Hex())
	}

	c.nonce++
	c.block++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], c.nonce)
	hash := crypto.Keccak256Hash(from.Bytes(), nonce[:], call.Data)

	logs, err := target.Transact(from, call.Data)

	receipt := &types.Receipt{
		Type:        types.DynamicFeeTxType,
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(c.block),
		GasUsed:     21000,
	}
	if err != nil {
		var revert *RevertError
		if !errors.As(err, &revert) {
			return common.Hash{}, err
		}
		receipt.Status = types.ReceiptStatusFailed
		logs = nil
	}
	for i, l := range logs {
		l.TxHash = hash
		l.BlockNumber = c.block
		l.Index = uint(i)
	}
	receipt.Logs = logs

	c.receipts[hash] = receipt
	c.calls[hash] = call
	c.senders[hash] = from
	return hash, nil
}

// Client implements chain.Client against a Chain.
type Client struct {
	chain *Chain
	from  common.Address
}

var _ chain.Client = (*Client)(nil)

func (c *Client) Address() common.Address { return c.from }

func (c *Client) SubmitTransaction(ctx context.Context, call chain.Call) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	return c.chain.mine(c.from, call)
}

func (c *Client) WaitForConfirmations(ctx context.Context, txHash common.Hash, _ uint64) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	receipt, ok := c.chain.Receipt(txHash)
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", txHash.Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &chain.TxFailureError{TxHash: txHash, Receipt: receipt}
	}
	return receipt, nil
}

// CallContract ignores the block and runs against current state.
func (c *Client) CallContract(ctx context.Context, call chain.Call, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.chain.mu.Lock()
	target, ok := c.chain.contracts[call.To]
	c.chain.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no contract at %s", call.To.Hex())
	}
	return target.Call(c.from, call.Data)
}

// Account derives a deterministic test account address.
func Account(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name))[12:])
}
