package governance

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAlreadyConfirmed = errors.New("transaction already confirmed by voter")
	ErrAlreadyExecuted  = errors.New("transaction already executed")
	ErrNotConfirmed     = errors.New("transaction lacks quorum")
)

// Transaction models the lifecycle of one multisig proposal:
// proposed, confirmed by zero or more voters, executed once.
type Transaction struct {
	ID       TxID
	Proposer common.Address
	Data     []byte

	confirmations []common.Address
	executed      bool
}

func NewTransaction(id TxID, proposer common.Address, data []byte) *Transaction {
	return &Transaction{ID: id, Proposer: proposer, Data: data}
}

// Confirm records a vote. Each voter counts once.
func (t *Transaction) Confirm(voter common.Address) error {
	if t.executed {
		return fmt.Errorf("%w: %s", ErrAlreadyExecuted, t.ID)
	}
	if t.ConfirmedBy(voter) {
		return fmt.Errorf("%w: %s on %s", ErrAlreadyConfirmed, voter.Hex(), t.ID)
	}
	t.confirmations = append(t.confirmations, voter)
	return nil
}

// Revoke drops a voter's confirmation. Voters removed from the set lose
// their pending votes this way.
func (t *Transaction) Revoke(voter common.Address) {
	for i, v := range t.confirmations {
		if v == voter {
			t.confirmations = append(t.confirmations[:i], t.confirmations[i+1:]...)
			return
		}
	}
}

func (t *Transaction) ConfirmedBy(voter common.Address) bool {
	for _, v := range t.confirmations {
		if v == voter {
			return true
		}
	}
	return false
}

func (t *Transaction) Confirmations() []common.Address {
	return append([]common.Address(nil), t.confirmations...)
}

func (t *Transaction) Executed() bool { return t.executed }

func (t *Transaction) IsConfirmed(required int) bool {
	return len(t.confirmations) >= required
}

// Execute marks the transaction executed if it has quorum.
func (t *Transaction) Execute(required int) error {
	if t.executed {
		return fmt.Errorf("%w: %s", ErrAlreadyExecuted, t.ID)
	}
	if !t.IsConfirmed(required) {
		return fmt.Errorf("%w: %s has %d of %d confirmations", ErrNotConfirmed, t.ID, len(t.confirmations), required)
	}
	t.executed = true
	return nil
}
