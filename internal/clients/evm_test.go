package clients

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/chain"
)

type fakeBackend struct {
	mu sync.Mutex

	chainID     *big.Int
	baseFee     *big.Int
	gasPrice    *big.Int
	estimateErr error
	head        uint64

	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	// misses is the number of receipt lookups answered with NotFound.
	misses int
	calls  []ethereum.CallMsg
	blocks []*big.Int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:  big.NewInt(1001),
		baseFee:  big.NewInt(25000000000),
		gasPrice: big.NewInt(750000000000),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (b *fakeBackend) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.sent {
		if tx.Hash() == hash {
			return tx, false, nil
		}
	}
	return nil, false, ethereum.NotFound
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.misses > 0 {
		b.misses--
		return nil, ethereum.NotFound
	}
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	b.blocks = append(b.blocks, block)
	return []byte{0x01}, nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return 120000, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return b.gasPrice, nil }

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: new(big.Int).SetUint64(b.head), BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) { return b.chainID, nil }

// BlockNumber advances the head by one block per query.
func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head++
	return b.head, nil
}

func newTestEVMClient(t *testing.T, backend *fakeBackend) *EVMClient {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	client, err := NewEVMClientWithBackend(zap.NewNop(), backend, "0x"+hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	client.SetPollInterval(time.Millisecond)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), client.Address())
	return client
}

func TestSubmitDynamicFeeTransaction(t *testing.T) {
	backend := newFakeBackend()
	client := newTestEVMClient(t, backend)
	to := common.HexToAddress("0x0290FB167208Af455bB137780163b7B7a9a10C16")

	hash, err := client.SubmitTransaction(context.Background(), chain.Call{To: to, Data: []byte{0xca, 0xfe}})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, big.NewInt(100000000), tx.GasTipCap())
	assert.Equal(t, big.NewInt(50100000000), tx.GasFeeCap())
	assert.Equal(t, uint64(120000), tx.Gas())
	assert.Equal(t, to, *tx.To())
	assert.Equal(t, 0, tx.Value().Sign())

	from, err := types.Sender(types.LatestSignerForChainID(backend.chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, client.Address(), from)
}

func TestSubmitLegacyTransaction(t *testing.T) {
	backend := newFakeBackend()
	backend.baseFee = nil
	backend.estimateErr = errors.New("execution reverted")
	client := newTestEVMClient(t, backend)

	_, err := client.SubmitTransaction(context.Background(), chain.Call{To: common.HexToAddress("0x01"), Value: big.NewInt(5)})
	require.NoError(t, err)

	tx := backend.sent[0]
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Equal(t, backend.gasPrice, tx.GasPrice())
	assert.Equal(t, uint64(defaultGasLimit), tx.Gas())
	assert.Equal(t, big.NewInt(5), tx.Value())
}

func TestWaitForConfirmations(t *testing.T) {
	backend := newFakeBackend()
	client := newTestEVMClient(t, backend)

	hash := common.HexToHash("0xabc")
	backend.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(10)}
	backend.misses = 2
	backend.head = 5

	receipt, err := client.WaitForConfirmations(context.Background(), hash, 3)
	require.NoError(t, err)
	assert.Equal(t, hash, receipt.TxHash)
	assert.GreaterOrEqual(t, backend.head, uint64(12))
}

func TestWaitForConfirmationsFailedReceipt(t *testing.T) {
	backend := newFakeBackend()
	client := newTestEVMClient(t, backend)

	hash := common.HexToHash("0xdef")
	backend.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash, BlockNumber: big.NewInt(3)}

	_, err := client.WaitForConfirmations(context.Background(), hash, 3)
	require.ErrorIs(t, err, chain.ErrTxFailure)
	var failure *chain.TxFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, hash, failure.TxHash)
	assert.Equal(t, types.ReceiptStatusFailed, failure.Receipt.Status)
}

func TestWaitForConfirmationsCancelled(t *testing.T) {
	client := newTestEVMClient(t, newFakeBackend())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.WaitForConfirmations(ctx, common.HexToHash("0x404"), 1)
	assert.Error(t, err)
}

func TestReplayTransaction(t *testing.T) {
	backend := newFakeBackend()
	client := newTestEVMClient(t, backend)
	to := common.HexToAddress("0x0290FB167208Af455bB137780163b7B7a9a10C16")

	hash, err := client.SubmitTransaction(context.Background(), chain.Call{To: to, Data: []byte{0x01, 0x02}})
	require.NoError(t, err)
	backend.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash, BlockNumber: big.NewInt(77)}

	_, err = client.ReplayTransaction(context.Background(), hash)
	require.NoError(t, err)
	require.Len(t, backend.calls, 1)
	assert.Equal(t, client.Address(), backend.calls[0].From)
	assert.Equal(t, to, *backend.calls[0].To)
	assert.Equal(t, []byte{0x01, 0x02}, backend.calls[0].Data)
	assert.Equal(t, big.NewInt(77), backend.blocks[0])
}

func TestReadOnlyClientRefusesToSend(t *testing.T) {
	backend := newFakeBackend()
	client, err := NewEVMClientWithBackend(zap.NewNop(), backend, "")
	require.NoError(t, err)

	assert.Equal(t, common.Address{}, client.Address())
	_, err = client.SubmitTransaction(context.Background(), chain.Call{To: common.HexToAddress("0x01")})
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Empty(t, backend.sent)
}
