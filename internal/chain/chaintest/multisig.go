package chaintest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wormhole-demo/bridgeops/internal/contracts"
	"github.com/wormhole-demo/bridgeops/internal/governance"
)

// PreambleTopic tags the unrelated log a Multisig with Preamble set emits
// ahead of its own events.
var PreambleTopic = crypto.Keccak256Hash([]byte("Preamble()"))

// messageMethods are executed by publishing a governance message.
var messageMethods = map[string]bool{
	"registerChain":          true,
	"upgradeBridgeContract":  true,
	"createWrapped":          true,
	"createAdapter":          true,
	"updateServiceFeePolicy": true,
}

// Multisig is a bridge governance fixture. Proposals need an explicit
// confirmation from Required distinct voters before they execute; executing
// an under-confirmed proposal is a no-op, re-executing reverts.
type Multisig struct {
	Address          common.Address
	Core             *Core
	Required         int
	ConsistencyLevel uint8
	// Verifiers records setVerifier proposals by emitter chain.
	Verifiers map[uint16]common.Address
	// Preamble makes every state change emit an unrelated log first.
	Preamble bool

	voters     []common.Address
	proposers  []common.Address
	txs        []*governance.Transaction
	validStart uint64
}

func NewMultisig(addr common.Address, core *Core, required int, voters, proposers []common.Address) *Multisig {
	return &Multisig{
		Address:          addr,
		Core:             core,
		Required:         required,
		ConsistencyLevel: 1,
		Verifiers:        make(map[uint16]common.Address),
		voters:           append([]common.Address(nil), voters...),
		proposers:        append([]common.Address(nil), proposers...),
	}
}

// Transaction returns the proposal with the given id, or nil.
func (m *Multisig) Transaction(id uint64) *governance.Transaction {
	if id >= uint64(len(m.txs)) {
		return nil
	}
	return m.txs[id]
}

func (m *Multisig) Voters() []common.Address { return append([]common.Address(nil), m.voters...) }
func (m *Multisig) Proposers() []common.Address { return append([]common.Address(nil), m.proposers...) }

func (m *Multisig) Transact(from common.Address, data []byte) ([]*types.Log, error) {
	logs, err := m.run(from, data, true)
	if err != nil || len(logs) == 0 || !m.Preamble {
		return logs, err
	}
	return append([]*types.Log{{Address: m.Address, Topics: []common.Hash{PreambleTopic}}}, logs...), nil
}

func (m *Multisig) Call(from common.Address, data []byte) ([]byte, error) {
	method, _, err := decodeCall(contracts.Governance, data)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "getVoters":
		return method.Outputs.Pack(m.voters)
	case "getProposers":
		return method.Outputs.Pack(m.proposers)
	case "required":
		return method.Outputs.Pack(big.NewInt(int64(m.Required)))
	case "consistencyLevel":
		return method.Outputs.Pack(m.ConsistencyLevel)
	case "validTransactionIdStart":
		return method.Outputs.Pack(new(big.Int).SetUint64(m.validStart))
	}
	_, err = m.run(from, data, false)
	return nil, err
}

func (m *Multisig) run(from common.Address, data []byte, commit bool) ([]*types.Log, error) {
	method, args, err := decodeCall(contracts.Governance, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "getVoters", "getProposers", "required", "consistencyLevel", "validTransactionIdStart":
		return nil, Revertf("%s is a view", method.Name)

	case "confirmTransaction":
		if !contains(m.voters, from) {
			return nil, Revertf("caller is not a voter")
		}
		tx, err := m.lookup(args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		if tx.Executed() {
			return nil, Revertf("transaction already executed")
		}
		if tx.ConfirmedBy(from) {
			return nil, Revertf("transaction already confirmed")
		}
		if !commit {
			return nil, nil
		}
		if err := tx.Confirm(from); err != nil {
			return nil, Revertf("%v", err)
		}
		return []*types.Log{m.log(contracts.ConfirmationTopic, common.BytesToHash(from.Bytes()), tx.ID.Topic())}, nil

	case "executeTransaction":
		tx, err := m.lookup(args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		if tx.Executed() {
			return nil, Revertf("transaction already executed")
		}
		if !tx.IsConfirmed(m.Required) {
			return nil, nil
		}
		apply, err := m.effect(tx)
		if err != nil {
			return nil, err
		}
		if !commit {
			return nil, nil
		}
		if err := tx.Execute(m.Required); err != nil {
			return nil, Revertf("%v", err)
		}
		logs := apply()
		return append(logs, m.log(contracts.ExecutionTopic, tx.ID.Topic())), nil
	}

	if !contains(m.proposers, from) {
		return nil, Revertf("caller is not a proposer")
	}
	if !commit {
		return nil, nil
	}
	id := governance.NewTxID(uint64(len(m.txs)))
	m.txs = append(m.txs, governance.NewTransaction(id, from, data))
	return []*types.Log{m.log(contracts.SubmissionTopic, id.Topic())}, nil
}

// effect validates an executable proposal and returns the closure that
// applies it.
func (m *Multisig) effect(tx *governance.Transaction) (func() []*types.Log, error) {
	method, args, err := decodeCall(contracts.Governance, tx.Data)
	if err != nil {
		return nil, err
	}

	if messageMethods[method.Name] {
		if m.Core == nil {
			return nil, Revertf("no wormhole core")
		}
		return func() []*types.Log {
			l, _ := m.Core.Publish(m.Address, 0, tx.Data[4:], m.ConsistencyLevel)
			return []*types.Log{l}
		}, nil
	}

	none := func() []*types.Log { return nil }
	switch method.Name {
	case "setVerifier":
		chainID, verifier := args[0].(uint16), args[1].(common.Address)
		return func() []*types.Log { m.Verifiers[chainID] = verifier; return nil }, nil

	case "setConsistencyLevel":
		level := args[0].(uint8)
		return func() []*types.Log { m.ConsistencyLevel = level; return nil }, nil

	case "proposeAddVoter":
		voter := args[0].(common.Address)
		if contains(m.voters, voter) {
			return nil, Revertf("voter exists")
		}
		return func() []*types.Log { m.voters = append(m.voters, voter); return nil }, nil

	case "proposeRemoveVoter":
		voter := args[0].(common.Address)
		if !contains(m.voters, voter) {
			return nil, Revertf("not a voter")
		}
		if len(m.voters)-1 < m.Required {
			return nil, Revertf("removing voter breaks quorum")
		}
		return func() []*types.Log {
			m.voters = remove(m.voters, voter)
			for _, pending := range m.txs {
				if !pending.Executed() {
					pending.Revoke(voter)
				}
			}
			return nil
		}, nil

	case "proposeAddProposer":
		proposer := args[0].(common.Address)
		if contains(m.proposers, proposer) {
			return nil, Revertf("proposer exists")
		}
		return func() []*types.Log { m.proposers = append(m.proposers, proposer); return nil }, nil

	case "proposeRemoveProposer":
		proposer := args[0].(common.Address)
		if !contains(m.proposers, proposer) {
			return nil, Revertf("not a proposer")
		}
		return func() []*types.Log { m.proposers = remove(m.proposers, proposer); return nil }, nil

	case "proposeChangeQuorumSize":
		size := args[0].(*big.Int)
		if size.Sign() <= 0 || size.Cmp(big.NewInt(int64(len(m.voters)))) > 0 {
			return nil, Revertf("invalid quorum size %s", size)
		}
		return func() []*types.Log { m.Required = int(size.Int64()); return nil }, nil

	case "proposeCheckpoint":
		start := args[0].(*big.Int)
		if !start.IsUint64() || start.Uint64() > uint64(len(m.txs)) {
			return nil, Revertf("invalid checkpoint %s", start)
		}
		return func() []*types.Log { m.validStart = start.Uint64(); return nil }, nil
	}
	return none, nil
}

func (m *Multisig) lookup(id *big.Int) (*governance.Transaction, error) {
	if !id.IsUint64() || id.Uint64() >= uint64(len(m.txs)) {
		return nil, Revertf("unknown transaction %s", id)
	}
	if id.Uint64() < m.validStart {
		return nil, Revertf("transaction %s is below checkpoint", id)
	}
	return m.txs[id.Uint64()], nil
}

func (m *Multisig) log(topics ...common.Hash) *types.Log {
	return &types.Log{Address: m.Address, Topics: topics}
}

func contains(set []common.Address, a common.Address) bool {
	for _, v := range set {
		if v == a {
			return true
		}
	}
	return false
}

func remove(set []common.Address, a common.Address) []common.Address {
	out := make([]common.Address, 0, len(set))
	for _, v := range set {
		if v != a {
			out = append(out, v)
		}
	}
	return out
}
