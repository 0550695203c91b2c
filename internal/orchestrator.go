package internal

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/clients"
	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/governance"
	"github.com/wormhole-demo/bridgeops/internal/sequence"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// GovernanceVerifier is the guardian network that attests governance
// messages.
const GovernanceVerifier = config.WH19

// Outcome collects what a governance pipeline produced. Fields of steps
// that did not run are zero.
type Outcome struct {
	TxID           governance.TxID
	ProposeReceipt *types.Receipt
	ExecuteReceipt *types.Receipt
	Message        *sequence.MessagePublished
	// VAA is nil when the message was not attested within the poll budget.
	VAA *clients.FetchedVAA
}

// Orchestrator runs governance proposals through propose, vote, execute,
// sequence extraction and attestation retrieval.
type Orchestrator struct {
	multisig     *governance.Multisig
	attestor     *Attestor
	emitterChain uint16
	emitter      vaa.Address
	logger       *zap.Logger
}

// NewOrchestrator creates an orchestrator for governance messages emitted
// by emitter on emitterChain.
func NewOrchestrator(logger *zap.Logger, multisig *governance.Multisig, attestor *Attestor, emitterChain uint16, emitter vaa.Address) *Orchestrator {
	return &Orchestrator{
		multisig:     multisig,
		attestor:     attestor,
		emitterChain: emitterChain,
		emitter:      emitter,
		logger:       logger.With(zap.String("component", "Orchestrator")),
	}
}

// Propose submits action. With execute set, the proposer also votes and
// executes it, which only passes when the quorum is one.
func (o *Orchestrator) Propose(ctx context.Context, action governance.Action, execute bool) (*Outcome, error) {
	o.logger.Info("Proposing", action.LogFields()...)

	id, receipt, err := o.multisig.Propose(ctx, action)
	if err != nil {
		return nil, err
	}
	out := &Outcome{TxID: id, ProposeReceipt: receipt}
	o.logger.Info("Proposal submitted",
		zap.String("method", action.Method),
		zap.String("txId", id.String()),
		zap.String("txHash", receipt.TxHash.Hex()))

	if !execute {
		return out, nil
	}

	if _, err := o.multisig.Vote(ctx, id); err != nil {
		return out, fmt.Errorf("proposal %s submitted but vote failed: %w", id, err)
	}

	var verifier *config.Verifier
	if action.PublishesMessage {
		v := GovernanceVerifier
		verifier = &v
	}
	executed, err := o.ExecuteAndFetch(ctx, id, verifier)
	if executed != nil {
		out.ExecuteReceipt = executed.ExecuteReceipt
		out.Message = executed.Message
		out.VAA = executed.VAA
	}
	if err != nil {
		return out, fmt.Errorf("proposal %s submitted but execution failed: %w", id, err)
	}
	return out, nil
}

// Vote confirms proposal id as the client's account.
func (o *Orchestrator) Vote(ctx context.Context, id governance.TxID) (*types.Receipt, error) {
	receipt, err := o.multisig.Vote(ctx, id)
	if err != nil {
		return nil, err
	}
	o.logger.Info("Voted", zap.String("txId", id.String()), zap.String("txHash", receipt.TxHash.Hex()))
	return receipt, nil
}

// ExecuteAndFetch executes proposal id. When verifier is set the execution
// is treated as publishing a governance message: its sequence is extracted
// and the VAA fetched from that guardian network.
func (o *Orchestrator) ExecuteAndFetch(ctx context.Context, id governance.TxID, verifier *config.Verifier) (*Outcome, error) {
	receipt, err := o.multisig.Execute(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &Outcome{TxID: id, ExecuteReceipt: receipt}
	o.logger.Info("Executed", zap.String("txId", id.String()), zap.String("txHash", receipt.TxHash.Hex()))

	if verifier == nil {
		return out, nil
	}

	msg, err := sequence.Extract(receipt.Logs)
	if err != nil {
		return out, err
	}
	out.Message = msg
	o.logger.Info("Sequence", zap.String("sequence", msg.Sequence))

	out.VAA, err = o.attestor.Await(ctx, Message{
		Verifier:  *verifier,
		ChainID:   o.emitterChain,
		Emitter:   o.emitter,
		Sequence:  msg.Sequence,
		Operation: "governance:" + id.String(),
		TxHash:    receipt.TxHash.Hex(),
	})
	return out, err
}

// Status reads the multisig configuration.
func (o *Orchestrator) Status(ctx context.Context) (*governance.Status, error) {
	return o.multisig.Status(ctx)
}
