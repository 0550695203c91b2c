package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

var emitter = vaa.AddressFromEVM(common.HexToAddress("0x0290FB167208Af455bB137780163b7B7a9a10C16"))

func memJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenStorage(storage.NewMemStorage())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordPendingResolve(t *testing.T) {
	j := memJournal(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	first := Entry{Verifier: config.WH19, ChainID: 13, Emitter: emitter, Sequence: "10", Operation: "registerChain", TxHash: "0xabc"}
	second := Entry{Verifier: config.WH19, ChainID: 13, Emitter: emitter, Sequence: "9"}
	require.NoError(t, j.Record(first))
	require.NoError(t, j.Record(second))

	pending, err := j.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "9", pending[0].Sequence, "ordered by numeric sequence")
	assert.Equal(t, "10", pending[1].Sequence)
	assert.Equal(t, emitter, pending[1].Emitter)
	assert.Equal(t, "registerChain", pending[1].Operation)
	assert.Equal(t, fixed, pending[1].RecordedAt)

	ok, err := j.Has(first)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, j.Resolve(first))
	require.NoError(t, j.Resolve(first))

	pending, err = j.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "9", pending[0].Sequence)
}

func TestRecordReplacesSameMessage(t *testing.T) {
	j := memJournal(t)
	e := Entry{Verifier: config.WHISK, ChainID: 2, Emitter: emitter, Sequence: "1", Operation: "attestToken"}
	require.NoError(t, j.Record(e))
	e.Operation = "createWrapped"
	require.NoError(t, j.Record(e))

	pending, err := j.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "createWrapped", pending[0].Operation)
	assert.Equal(t, config.WHISK, pending[0].Verifier)
}

func TestRecordRejectsBadSequence(t *testing.T) {
	j := memJournal(t)
	assert.Error(t, j.Record(Entry{Sequence: "seven"}))
}

func TestOpenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pending")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(Entry{ChainID: 30, Emitter: emitter, Sequence: "3"}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	pending, err := j.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint16(30), pending[0].ChainID)
}
