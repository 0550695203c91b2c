package governance

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func voterAddress(i int) common.Address {
	return common.HexToAddress(fmt.Sprintf("0x%040x", i+1))
}

func TestTransactionLifecycle(t *testing.T) {
	tx := NewTransaction(NewTxID(4), voterAddress(0), []byte{1})

	require.NoError(t, tx.Confirm(voterAddress(0)))
	assert.ErrorIs(t, tx.Confirm(voterAddress(0)), ErrAlreadyConfirmed)
	assert.ErrorIs(t, tx.Execute(2), ErrNotConfirmed)
	assert.False(t, tx.Executed())

	require.NoError(t, tx.Confirm(voterAddress(1)))
	require.NoError(t, tx.Execute(2))
	assert.True(t, tx.Executed())

	assert.ErrorIs(t, tx.Execute(2), ErrAlreadyExecuted)
	assert.ErrorIs(t, tx.Confirm(voterAddress(2)), ErrAlreadyExecuted)
	assert.Len(t, tx.Confirmations(), 2)
}

func TestTransactionRevoke(t *testing.T) {
	tx := NewTransaction(NewTxID(0), voterAddress(0), nil)
	require.NoError(t, tx.Confirm(voterAddress(0)))
	require.NoError(t, tx.Confirm(voterAddress(1)))

	tx.Revoke(voterAddress(0))
	assert.False(t, tx.ConfirmedBy(voterAddress(0)))
	assert.False(t, tx.IsConfirmed(2))
	assert.ErrorIs(t, tx.Execute(2), ErrNotConfirmed)
}

// Execution succeeds exactly when distinct confirmations reach quorum, and
// never more than once.
func TestProperty_Quorum(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		voters := rapid.IntRange(1, 7).Draw(tt, "voters")
		required := rapid.IntRange(1, voters).Draw(tt, "required")
		votes := rapid.SliceOfN(rapid.IntRange(0, voters-1), 0, 20).Draw(tt, "votes")

		tx := NewTransaction(NewTxID(0), voterAddress(0), nil)
		distinct := map[int]bool{}
		executions := 0

		for _, v := range votes {
			err := tx.Confirm(voterAddress(v))
			if tx.Executed() {
				require.ErrorIs(tt, err, ErrAlreadyExecuted)
				continue
			}
			if distinct[v] {
				require.ErrorIs(tt, err, ErrAlreadyConfirmed)
			} else {
				require.NoError(tt, err)
				distinct[v] = true
			}

			if rapid.Bool().Draw(tt, "execute") {
				err := tx.Execute(required)
				if len(distinct) >= required {
					require.NoError(tt, err)
					executions++
				} else {
					require.ErrorIs(tt, err, ErrNotConfirmed)
				}
			}
		}

		require.LessOrEqual(tt, executions, 1)
		if tx.Executed() {
			require.GreaterOrEqual(tt, len(tx.Confirmations()), required)
		}
	})
}

func TestTxID(t *testing.T) {
	id, err := ParseTxID("42")
	require.NoError(t, err)
	assert.Equal(t, "42", id.String())
	assert.Equal(t, id, TxIDFromTopic(id.Topic()))
	assert.Equal(t, int64(42), id.Big().Int64())
	assert.Equal(t, "43", id.Next().String())
	assert.Equal(t, -1, id.Cmp(id.Next()))

	hexID, err := ParseTxID("0x2a")
	require.NoError(t, err)
	assert.Equal(t, 0, id.Cmp(hexID))

	_, err = ParseTxID("forty-two")
	assert.Error(t, err)

	maxID := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	largest, err := ParseTxID(maxID)
	require.NoError(t, err)
	assert.Equal(t, maxID, largest.String())
	assert.Equal(t, common.HexToHash("0x"+strings.Repeat("ff", 32)), largest.Topic())
}
