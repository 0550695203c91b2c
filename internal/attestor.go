package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/clients"
	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/journal"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// AttestationPoller fetches a signed VAA within a bounded number of
// attempts. A nil result with a nil error means it is not available yet.
type AttestationPoller interface {
	FetchVAAWithRetry(ctx context.Context, times int, req clients.VAARequest) (*clients.FetchedVAA, error)
}

// PendingJournal remembers attestations that ran out of attempts.
type PendingJournal interface {
	Record(e journal.Entry) error
	Pending() ([]journal.Entry, error)
	Resolve(e journal.Entry) error
}

// Message identifies a published wormhole message.
type Message struct {
	Verifier  config.Verifier
	ChainID   uint16
	Emitter   vaa.Address
	Sequence  string
	Operation string
	TxHash    string
}

func (m Message) request(encoding vaa.Encoding) clients.VAARequest {
	return clients.VAARequest{
		Verifier: m.Verifier,
		ChainID:  m.ChainID,
		Emitter:  m.Emitter,
		Sequence: m.Sequence,
		Encoding: encoding,
	}
}

func (m Message) entry() journal.Entry {
	return journal.Entry{
		Verifier:  m.Verifier,
		ChainID:   m.ChainID,
		Emitter:   m.Emitter,
		Sequence:  m.Sequence,
		Operation: m.Operation,
		TxHash:    m.TxHash,
	}
}

func messageFromEntry(e journal.Entry) Message {
	return Message{
		Verifier:  e.Verifier,
		ChainID:   e.ChainID,
		Emitter:   e.Emitter,
		Sequence:  e.Sequence,
		Operation: e.Operation,
		TxHash:    e.TxHash,
	}
}

// Attestor polls for the VAA of a published message and journals the
// message when the poll budget runs out.
type Attestor struct {
	poller   AttestationPoller
	journal  PendingJournal
	attempts int
	encoding vaa.Encoding
	logger   *zap.Logger
}

// NewAttestor creates an Attestor. j may be nil to disable journaling.
func NewAttestor(logger *zap.Logger, poller AttestationPoller, j PendingJournal, attempts int, encoding vaa.Encoding) *Attestor {
	return &Attestor{
		poller:   poller,
		journal:  j,
		attempts: attempts,
		encoding: encoding,
		logger:   logger.With(zap.String("component", "Attestor")),
	}
}

// Await returns the signed VAA of m, or nil when it is still unavailable.
func (a *Attestor) Await(ctx context.Context, m Message) (*clients.FetchedVAA, error) {
	fetched, err := a.poller.FetchVAAWithRetry(ctx, a.attempts, m.request(a.encoding))
	if err != nil {
		return nil, err
	}
	if fetched != nil {
		a.logger.Info("VAA retrieved",
			zap.String("operation", m.Operation),
			zap.String("sequence", m.Sequence),
			zap.String("vaa", fetched.Encoded))
		return fetched, nil
	}

	a.logger.Warn("VAA not available yet, fetch it later",
		zap.String("operation", m.Operation),
		zap.Stringer("verifier", m.Verifier),
		zap.Uint16("chainId", m.ChainID),
		zap.String("emitter", m.Emitter.Hex()),
		zap.String("sequence", m.Sequence))
	if a.journal != nil {
		if err := a.journal.Record(m.entry()); err != nil {
			return nil, fmt.Errorf("failed to journal pending VAA: %v", err)
		}
	}
	return nil, nil
}

// PendingResult is the outcome of re-polling one journaled message.
type PendingResult struct {
	Message Message
	VAA     *clients.FetchedVAA
}

// FetchPending polls every journaled message once through the poll budget
// and removes those that resolved.
func (a *Attestor) FetchPending(ctx context.Context) ([]PendingResult, error) {
	if a.journal == nil {
		return nil, fmt.Errorf("no journal configured")
	}
	entries, err := a.journal.Pending()
	if err != nil {
		return nil, err
	}

	a.logger.Info("Fetching pending VAAs", zap.Int("count", len(entries)))
	results := make([]PendingResult, 0, len(entries))
	for _, e := range entries {
		m := messageFromEntry(e)
		fetched, err := a.poller.FetchVAAWithRetry(ctx, a.attempts, m.request(a.encoding))
		if err != nil {
			return results, err
		}
		if fetched != nil {
			if err := a.journal.Resolve(e); err != nil {
				return results, fmt.Errorf("failed to resolve journal entry: %v", err)
			}
		}
		results = append(results, PendingResult{Message: m, VAA: fetched})
	}
	return results, nil
}
