package governance_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/wormhole-demo/bridgeops/internal/chain"
	"github.com/wormhole-demo/bridgeops/internal/chain/chaintest"
	"github.com/wormhole-demo/bridgeops/internal/contracts"
	"github.com/wormhole-demo/bridgeops/internal/governance"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

var (
	govAddress  = chaintest.Account("governance")
	coreAddress = chaintest.Account("core")
)

type fixture struct {
	chain    *chaintest.Chain
	core     *chaintest.Core
	multisig *chaintest.Multisig
	voters   []common.Address
}

// newFixture deploys a multisig with required=2 and three voters; the first
// voter is also the only proposer.
func newFixture() *fixture {
	voters := []common.Address{
		chaintest.Account("voter-0"),
		chaintest.Account("voter-1"),
		chaintest.Account("voter-2"),
	}
	c := chaintest.New()
	core := chaintest.NewCore(coreAddress)
	ms := chaintest.NewMultisig(govAddress, core, 2, voters, voters[:1])
	c.Deploy(govAddress, ms)
	c.Deploy(coreAddress, core)
	return &fixture{chain: c, core: core, multisig: ms, voters: voters}
}

func (f *fixture) as(i int) *governance.Multisig {
	return governance.NewMultisig(zap.NewNop(), f.chain.Client(f.voters[i]), govAddress, 3)
}

func registerChain() governance.Action {
	bridge, _ := vaa.ParseAddress("0x0290FB167208Af455bB137780163b7B7a9a10C16")
	verifier, _ := vaa.ParseAddress("0xC89Ce4735882C9F0f0FE26686c53074E09B0D550")
	return governance.RegisterChain(governance.TokenBridge, 13, 2, bridge, verifier)
}

func TestProposeAssignsIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, receipt, err := f.as(0).Propose(ctx, registerChain())
	require.NoError(t, err)
	assert.Equal(t, "0", id.String())
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	id, _, err = f.as(0).Propose(ctx, governance.SetConsistencyLevel(15))
	require.NoError(t, err)
	assert.Equal(t, "1", id.String())

	tx := f.multisig.Transaction(0)
	require.NotNil(t, tx)
	assert.Equal(t, f.voters[0], tx.Proposer)
}

func TestProposeByNonProposerReverts(t *testing.T) {
	f := newFixture()

	_, receipt, err := f.as(1).Propose(context.Background(), registerChain())
	require.Error(t, err)
	assert.ErrorIs(t, err, governance.ErrTxReverted)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
}

func TestExecuteRequiresQuorum(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, _, err := f.as(0).Propose(ctx, registerChain())
	require.NoError(t, err)

	_, err = f.as(0).Vote(ctx, id)
	require.NoError(t, err)

	_, err = f.as(0).Execute(ctx, id)
	assert.ErrorIs(t, err, governance.ErrExecutionNotConfirmed)
	assert.False(t, f.multisig.Transaction(0).Executed())

	_, err = f.as(2).Vote(ctx, id)
	require.NoError(t, err)

	receipt, err := f.as(1).Execute(ctx, id)
	require.NoError(t, err)
	assert.True(t, f.multisig.Transaction(0).Executed())
	assert.Len(t, chain.FindLogs(receipt.Logs, contracts.MessagePublishedTopic), 1)

	_, err = f.as(1).Execute(ctx, id)
	assert.ErrorIs(t, err, governance.ErrExecutionNotConfirmed)
	assert.ErrorIs(t, err, chain.ErrTxFailure)
}

func TestVoteTwiceReverts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, _, err := f.as(0).Propose(ctx, registerChain())
	require.NoError(t, err)
	_, err = f.as(1).Vote(ctx, id)
	require.NoError(t, err)

	_, err = f.as(1).Vote(ctx, id)
	assert.ErrorIs(t, err, governance.ErrTxReverted)
	assert.Len(t, f.multisig.Transaction(0).Confirmations(), 1)
}

func TestEventLookupIgnoresPosition(t *testing.T) {
	f := newFixture()
	f.multisig.Preamble = true
	ctx := context.Background()

	id, receipt, err := f.as(0).Propose(ctx, registerChain())
	require.NoError(t, err)
	assert.Equal(t, chaintest.PreambleTopic, receipt.Logs[0].Topics[0])
	assert.Equal(t, "0", id.String())

	_, err = f.as(0).Vote(ctx, id)
	require.NoError(t, err)
	_, err = f.as(1).Vote(ctx, id)
	require.NoError(t, err)
	_, err = f.as(2).Execute(ctx, id)
	require.NoError(t, err)
}

// silentMultisig drops the Confirmation event.
type silentMultisig struct {
	*chaintest.Multisig
}

func (s silentMultisig) Transact(from common.Address, data []byte) ([]*types.Log, error) {
	logs, err := s.Multisig.Transact(from, data)
	if err != nil {
		return nil, err
	}
	var kept []*types.Log
	for _, l := range logs {
		if l.Topics[0] != contracts.ConfirmationTopic {
			kept = append(kept, l)
		}
	}
	return kept, nil
}

func TestVoteWithoutConfirmationEvent(t *testing.T) {
	f := newFixture()
	f.chain.Deploy(govAddress, silentMultisig{f.multisig})
	ctx := context.Background()

	id, _, err := f.as(0).Propose(ctx, registerChain())
	require.NoError(t, err)

	_, err = f.as(1).Vote(ctx, id)
	assert.ErrorIs(t, err, governance.ErrQuorumAssertionFailed)
}

func TestStatus(t *testing.T) {
	f := newFixture()
	f.multisig.ConsistencyLevel = 200

	status, err := f.as(1).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.voters, status.Voters)
	assert.Equal(t, f.voters[:1], status.Proposers)
	assert.Equal(t, int64(2), status.QuorumSize.Int64())
	assert.Equal(t, uint8(200), status.ConsistencyLevel)
	assert.Equal(t, int64(0), status.ValidTransactionIDStart.Int64())
}

func TestAdminProposals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	newcomer := chaintest.Account("voter-3")

	passed := func(action governance.Action) {
		t.Helper()
		id, _, err := f.as(0).Propose(ctx, action)
		require.NoError(t, err)
		_, err = f.as(0).Vote(ctx, id)
		require.NoError(t, err)
		_, err = f.as(1).Vote(ctx, id)
		require.NoError(t, err)
		receipt, err := f.as(0).Execute(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, chain.FindLogs(receipt.Logs, contracts.MessagePublishedTopic))
	}

	passed(governance.AddVoter(newcomer))
	passed(governance.AddProposer(newcomer))
	passed(governance.SetConsistencyLevel(15))
	passed(governance.ChangeQuorumSize(3))

	status, err := f.as(0).Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, status.Voters, newcomer)
	assert.Contains(t, status.Proposers, newcomer)
	assert.Equal(t, int64(3), status.QuorumSize.Int64())
	assert.Equal(t, uint8(15), status.ConsistencyLevel)
}

func TestCheckpointInvalidatesOlderProposals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	stale, _, err := f.as(0).Propose(ctx, registerChain())
	require.NoError(t, err)

	id, _, err := f.as(0).Propose(ctx, governance.Checkpoint(stale.Next()))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.as(i).Vote(ctx, id)
		require.NoError(t, err)
	}
	_, err = f.as(2).Execute(ctx, id)
	require.NoError(t, err)

	_, err = f.as(1).Vote(ctx, stale)
	assert.ErrorIs(t, err, governance.ErrTxReverted)
}

// With required=2 of three voters, Execute succeeds only once two distinct
// voters have confirmed.
func TestProperty_QuorumOnFixture(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		f := newFixture()
		ctx := context.Background()

		id, _, err := f.as(0).Propose(ctx, registerChain())
		require.NoError(tt, err)

		confirmed := map[int]bool{}
		executed := false
		steps := rapid.IntRange(1, 10).Draw(tt, "steps")
		for i := 0; i < steps; i++ {
			who := rapid.IntRange(0, 2).Draw(tt, "voter")
			if rapid.Bool().Draw(tt, "vote") {
				_, err := f.as(who).Vote(ctx, id)
				if confirmed[who] || executed {
					require.ErrorIs(tt, err, governance.ErrTxReverted)
				} else {
					require.NoError(tt, err)
					confirmed[who] = true
				}
				continue
			}

			_, err := f.as(who).Execute(ctx, id)
			if err == nil {
				require.False(tt, executed, "executed twice")
				require.GreaterOrEqual(tt, len(confirmed), 2)
				executed = true
			} else {
				require.True(tt, errors.Is(err, governance.ErrExecutionNotConfirmed), fmt.Sprint(err))
				if !executed {
					require.Less(tt, len(confirmed), 2)
				}
			}
		}
		require.Equal(tt, executed, f.multisig.Transaction(0).Executed())
	})
}
