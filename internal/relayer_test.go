package internal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/clients"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

var emitterA = vaa.Address{31: 0xaa}

func rawVAA(t *testing.T, chainID uint16, emitter vaa.Address, seq uint64) []byte {
	t.Helper()
	raw, err := vaa.Encode(&vaa.VAA{Version: 1, EmitterChainID: chainID, EmitterAddress: emitter, Sequence: seq, Payload: []byte{1}})
	require.NoError(t, err)
	return raw
}

// chanStream delivers queued VAAs and then blocks until ctx is done, or
// fails with err once drained when err is set.
type chanStream struct {
	ctx   context.Context
	items chan []byte
	err   error
}

func (s *chanStream) Recv() (*spyv1.SubscribeSignedVAAResponse, error) {
	select {
	case raw := <-s.items:
		return &spyv1.SubscribeSignedVAAResponse{VaaBytes: raw}, nil
	default:
	}
	if s.err != nil {
		return nil, s.err
	}
	select {
	case raw := <-s.items:
		return &spyv1.SubscribeSignedVAAResponse{VaaBytes: raw}, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

type fakeSubscriber struct {
	mu      sync.Mutex
	batches [][][]byte
	errs    []error
	calls   int
}

func (f *fakeSubscriber) SubscribeSignedVAA(ctx context.Context) (clients.VAAStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.batches) {
		return nil, errors.New("spy unavailable")
	}
	items := make(chan []byte, len(f.batches[i]))
	for _, raw := range f.batches[i] {
		items <- raw
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return &chanStream{ctx: ctx, items: items, err: err}, nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted [][]byte
	fail      error
	done      chan struct{}
}

func (f *fakeSubmitter) SubmitVAA(_ context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.submitted = append(f.submitted, raw)
	if f.done != nil {
		f.done <- struct{}{}
	}
	return "0xfeed", nil
}

func vaaData(t *testing.T, chainID uint16, emitter vaa.Address, seq uint64) VAAData {
	data, err := NewVAAData(rawVAA(t, chainID, emitter, seq))
	require.NoError(t, err)
	return *data
}

func TestRelayProcessorFilters(t *testing.T) {
	sub := &fakeSubmitter{}
	p := NewRelayProcessor(zap.NewNop(), RelayProcessorConfig{ChainID: 2, Emitter: &emitterA}, sub)
	ctx := context.Background()

	hash, err := p.ProcessVAA(ctx, vaaData(t, 3, emitterA, 1))
	require.NoError(t, err)
	assert.Empty(t, hash, "other chain")

	hash, err = p.ProcessVAA(ctx, vaaData(t, 2, vaa.Address{31: 0xbb}, 1))
	require.NoError(t, err)
	assert.Empty(t, hash, "other emitter")

	hash, err = p.ProcessVAA(ctx, vaaData(t, 2, emitterA, 1))
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", hash)

	hash, err = p.ProcessVAA(ctx, vaaData(t, 2, emitterA, 1))
	require.NoError(t, err)
	assert.Empty(t, hash, "duplicate")
	assert.Len(t, sub.submitted, 1)
}

func TestRelayProcessorAnyEmitter(t *testing.T) {
	sub := &fakeSubmitter{}
	p := NewRelayProcessor(zap.NewNop(), RelayProcessorConfig{ChainID: 2}, sub)

	for _, e := range []vaa.Address{emitterA, {31: 0xbb}} {
		hash, err := p.ProcessVAA(context.Background(), vaaData(t, 2, e, 7))
		require.NoError(t, err)
		assert.Equal(t, "0xfeed", hash)
	}
}

func TestRelayProcessorRetriesAfterFailure(t *testing.T) {
	sub := &fakeSubmitter{fail: errors.New("out of gas")}
	p := NewRelayProcessor(zap.NewNop(), RelayProcessorConfig{ChainID: 2}, sub)
	data := vaaData(t, 2, emitterA, 1)

	_, err := p.ProcessVAA(context.Background(), data)
	require.ErrorContains(t, err, "out of gas")

	sub.fail = nil
	hash, err := p.ProcessVAA(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", hash)
}

func TestWatcherStartRelays(t *testing.T) {
	subscriber := &fakeSubscriber{batches: [][][]byte{{
		rawVAA(t, 2, emitterA, 1),
		[]byte("garbage"),
		rawVAA(t, 2, emitterA, 2),
	}}}
	sub := &fakeSubmitter{done: make(chan struct{}, 2)}
	w := NewWatcher(zap.NewNop(), subscriber)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Start(ctx, NewRelayProcessor(zap.NewNop(), RelayProcessorConfig{ChainID: 2}, sub)) }()

	for i := 0; i < 2; i++ {
		select {
		case <-sub.done:
		case <-time.After(5 * time.Second):
			t.Fatal("VAA not relayed")
		}
	}
	cancel()
	require.NoError(t, <-errc)
	assert.Len(t, sub.submitted, 2)
}

func TestWatcherWaitForResubscribes(t *testing.T) {
	subscriber := &fakeSubscriber{
		batches: [][][]byte{
			{rawVAA(t, 2, emitterA, 1)},
			{rawVAA(t, 2, emitterA, 2), rawVAA(t, 2, emitterA, 3)},
		},
		errs: []error{errors.New("stream reset")},
	}
	w := NewWatcher(zap.NewNop(), subscriber)
	w.reconnectDelay = time.Millisecond

	data, err := w.WaitFor(context.Background(), 2, emitterA, 3)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, uint64(3), data.Sequence)
	assert.Equal(t, 2, subscriber.calls)
}

func TestWatcherWaitForCancelled(t *testing.T) {
	subscriber := &fakeSubscriber{batches: [][][]byte{{rawVAA(t, 2, emitterA, 1)}}}
	w := NewWatcher(zap.NewNop(), subscriber)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	data, err := w.WaitFor(ctx, 2, emitterA, 9)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestWatcherSubscribeFailure(t *testing.T) {
	w := NewWatcher(zap.NewNop(), &fakeSubscriber{})
	_, err := w.WaitFor(context.Background(), 2, emitterA, 1)
	assert.ErrorContains(t, err, "spy unavailable")
}
