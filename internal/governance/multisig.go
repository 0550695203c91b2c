// Package governance drives proposals through the bridge governance multisig.
package governance

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/chain"
	"github.com/wormhole-demo/bridgeops/internal/contracts"
)

var (
	// ErrQuorumAssertionFailed reports a vote whose receipt lacks the
	// Confirmation event for the voted transaction.
	ErrQuorumAssertionFailed = errors.New("quorum assertion failed")
	// ErrExecutionNotConfirmed reports an execute call that reverted or did
	// not emit exactly one Execution event.
	ErrExecutionNotConfirmed = errors.New("execution not confirmed")
	// ErrTxReverted is returned by Propose and Vote for reverted calls.
	ErrTxReverted = chain.ErrTxFailure
)

// Multisig submits governance transitions from the account of its client.
type Multisig struct {
	client        chain.Client
	address       common.Address
	confirmations uint64
	logger        *zap.Logger
}

func NewMultisig(logger *zap.Logger, client chain.Client, address common.Address, confirmations uint64) *Multisig {
	return &Multisig{
		client:        client,
		address:       address,
		confirmations: confirmations,
		logger:        logger.With(zap.String("component", "Multisig")),
	}
}

func (m *Multisig) Address() common.Address { return m.address }

// Propose submits action and returns the transaction id from the Submission event.
func (m *Multisig) Propose(ctx context.Context, action Action) (TxID, *types.Receipt, error) {
	data, err := action.Pack()
	if err != nil {
		return TxID{}, nil, err
	}

	m.logger.Info("Proposing governance action",
		append(action.LogFields(),
			zap.String("governance", m.address.Hex()),
			zap.String("proposer", m.client.Address().Hex()))...)

	receipt, err := m.send(ctx, data)
	if err != nil {
		return TxID{}, receipt, fmt.Errorf("failed to propose %s: %w", action.Method, err)
	}

	submissions := chain.FindLogsFrom(chain.GetLogs(receipt), m.address, contracts.SubmissionTopic)
	if len(submissions) == 0 || len(submissions[0].Topics) < 2 {
		return TxID{}, receipt, fmt.Errorf("%w: no Submission in receipt of %s", chain.ErrEventNotFound, receipt.TxHash.Hex())
	}
	id := TxIDFromTopic(submissions[0].Topics[1])

	m.logger.Info("Proposal submitted",
		zap.String("method", action.Method),
		zap.String("txId", id.String()),
		zap.String("txHash", receipt.TxHash.Hex()))

	return id, receipt, nil
}

// Vote confirms transaction id with the client's account.
func (m *Multisig) Vote(ctx context.Context, id TxID) (*types.Receipt, error) {
	data, err := contracts.Governance.Pack("confirmTransaction", id.Big())
	if err != nil {
		return nil, fmt.Errorf("failed to pack confirmTransaction: %w", err)
	}

	voter := m.client.Address()
	receipt, err := m.send(ctx, data)
	if err != nil {
		return receipt, fmt.Errorf("failed to vote on %s: %w", id, err)
	}

	voterTopic := common.BytesToHash(voter.Bytes())
	confirmed := false
	for _, l := range chain.FindLogsFrom(chain.GetLogs(receipt), m.address, contracts.ConfirmationTopic) {
		if len(l.Topics) == 3 && l.Topics[1] == voterTopic && l.Topics[2] == id.Topic() {
			confirmed = true
			break
		}
	}
	if !confirmed {
		return receipt, fmt.Errorf("%w: no Confirmation of %s by %s in %s",
			ErrQuorumAssertionFailed, id, voter.Hex(), receipt.TxHash.Hex())
	}

	m.logger.Info("Voted",
		zap.String("voter", voter.Hex()),
		zap.String("txId", id.String()),
		zap.String("txHash", receipt.TxHash.Hex()))

	return receipt, nil
}

// Execute triggers execution of transaction id. The receipt must carry
// exactly one Execution event, for id, among any other events the executed
// call emits.
func (m *Multisig) Execute(ctx context.Context, id TxID) (*types.Receipt, error) {
	data, err := contracts.Governance.Pack("executeTransaction", id.Big())
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeTransaction: %w", err)
	}

	receipt, err := m.send(ctx, data)
	if err != nil {
		if errors.Is(err, chain.ErrTxFailure) {
			return receipt, fmt.Errorf("%w: %w", ErrExecutionNotConfirmed, err)
		}
		return receipt, fmt.Errorf("failed to execute %s: %w", id, err)
	}

	executions := chain.FindLogsFrom(chain.GetLogs(receipt), m.address, contracts.ExecutionTopic)
	if len(executions) != 1 {
		return receipt, fmt.Errorf("%w: %d Execution events in %s", ErrExecutionNotConfirmed, len(executions), receipt.TxHash.Hex())
	}
	if len(executions[0].Topics) < 2 || executions[0].Topics[1] != id.Topic() {
		return receipt, fmt.Errorf("%w: Execution in %s is not for %s", ErrExecutionNotConfirmed, receipt.TxHash.Hex(), id)
	}

	m.logger.Info("Executed",
		zap.String("executor", m.client.Address().Hex()),
		zap.String("txId", id.String()),
		zap.String("txHash", receipt.TxHash.Hex()))

	return receipt, nil
}

func (m *Multisig) send(ctx context.Context, data []byte) (*types.Receipt, error) {
	receipt, err := chain.SubmitAndWait(ctx, m.client, chain.Call{To: m.address, Data: data}, m.confirmations)
	if err != nil {
		var failure *chain.TxFailureError
		if errors.As(err, &failure) {
			return failure.Receipt, err
		}
		return nil, err
	}
	return receipt, nil
}

// Status is a snapshot of the multisig configuration.
type Status struct {
	Voters                  []common.Address
	Proposers               []common.Address
	QuorumSize              *big.Int
	ConsistencyLevel        uint8
	ValidTransactionIDStart *big.Int
}

func (m *Multisig) Status(ctx context.Context) (*Status, error) {
	s := &Status{}
	var err error

	if s.Voters, err = callView[[]common.Address](ctx, m, "getVoters"); err != nil {
		return nil, err
	}
	if s.Proposers, err = callView[[]common.Address](ctx, m, "getProposers"); err != nil {
		return nil, err
	}
	if s.QuorumSize, err = callView[*big.Int](ctx, m, "required"); err != nil {
		return nil, err
	}
	if s.ConsistencyLevel, err = callView[uint8](ctx, m, "consistencyLevel"); err != nil {
		return nil, err
	}
	if s.ValidTransactionIDStart, err = callView[*big.Int](ctx, m, "validTransactionIdStart"); err != nil {
		return nil, err
	}
	return s, nil
}

func callView[T any](ctx context.Context, m *Multisig, method string) (T, error) {
	var zero T
	data, err := contracts.Governance.Pack(method)
	if err != nil {
		return zero, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	ret, err := m.client.CallContract(ctx, chain.Call{To: m.address, Data: data}, nil)
	if err != nil {
		return zero, fmt.Errorf("failed to call %s: %w", method, err)
	}
	out, err := contracts.Governance.Unpack(method, ret)
	if err != nil {
		return zero, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return zero, fmt.Errorf("%s returned %d values", method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s returned %T", method, out[0])
	}
	return v, nil
}
