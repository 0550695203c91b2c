package governance

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TxID is a multisig transaction id as assigned by the contract.
type TxID struct {
	v uint256.Int
}

func NewTxID(n uint64) TxID {
	var id TxID
	id.v.SetUint64(n)
	return id
}

// ParseTxID parses a decimal or 0x-prefixed hex transaction id.
func ParseTxID(s string) (TxID, error) {
	var id TxID
	if err := id.v.SetFromDecimal(s); err == nil {
		return id, nil
	}
	if err := id.v.SetFromHex(s); err != nil {
		return TxID{}, fmt.Errorf("invalid transaction id %q", s)
	}
	return id, nil
}

// TxIDFromTopic reads an indexed uint256 event argument.
func TxIDFromTopic(topic common.Hash) TxID {
	var id TxID
	id.v.SetBytes32(topic[:])
	return id
}

func TxIDFromBig(b *big.Int) (TxID, error) {
	var id TxID
	if overflow := id.v.SetFromBig(b); overflow {
		return TxID{}, fmt.Errorf("transaction id %s overflows 256 bits", b)
	}
	return id, nil
}

func (id TxID) String() string { return id.v.Dec() }

func (id TxID) Big() *big.Int { return id.v.ToBig() }

// Topic returns the id as it appears in event topics.
func (id TxID) Topic() common.Hash { return common.Hash(id.v.Bytes32()) }

// Next returns id+1.
func (id TxID) Next() TxID {
	var next TxID
	next.v.AddUint64(&id.v, 1)
	return next
}

func (id TxID) Cmp(other TxID) int { return id.v.Cmp(&other.v) }
