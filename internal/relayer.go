package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/clients"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

const reconnectDelay = 5 * time.Second

// Watcher reads signed VAAs from the spy stream, resubscribing when the
// stream breaks.
type Watcher struct {
	subscriber     clients.VAASubscriber
	reconnectDelay time.Duration
	logger         *zap.Logger
}

func NewWatcher(logger *zap.Logger, subscriber clients.VAASubscriber) *Watcher {
	return &Watcher{
		subscriber:     subscriber,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(zap.String("component", "Watcher")),
	}
}

// each calls handle for every parseable VAA until handle returns false or
// ctx is done.
func (w *Watcher) each(ctx context.Context, handle func(*VAAData) bool) error {
	stream, err := w.subscriber.SubscribeSignedVAA(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to VAA stream: %v", err)
	}
	w.logger.Info("Listening for VAAs")

	for {
		resp, err := stream.Recv()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			w.logger.Warn("Stream error, resubscribing", zap.Error(err), zap.Duration("retryIn", w.reconnectDelay))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.reconnectDelay):
			}
			stream, err = w.subscriber.SubscribeSignedVAA(ctx)
			if err != nil {
				return fmt.Errorf("subscribe to VAA stream after retry: %v", err)
			}
			continue
		}

		data, err := NewVAAData(resp.VaaBytes)
		if err != nil {
			w.logger.Error("Failed to parse VAA", zap.Error(err))
			continue
		}
		if !handle(data) {
			return nil
		}
	}
}

// Start hands every VAA to processor, each in its own goroutine, until ctx
// is done. In-flight processing is cancelled and awaited before returning.
func (w *Watcher) Start(ctx context.Context, processor VAAProcessor) error {
	var wg sync.WaitGroup
	processingCtx, cancelProcessing := context.WithCancel(context.Background())
	defer func() {
		cancelProcessing()
		w.logger.Info("Waiting for all VAA processing to complete")
		wg.Wait()
		w.logger.Info("Shutdown complete")
	}()

	return w.each(ctx, func(data *VAAData) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if processingCtx.Err() != nil {
				return
			}
			if _, err := processor.ProcessVAA(processingCtx, *data); err != nil {
				w.logger.Error("Error processing VAA", zap.Error(err))
			}
		}()
		return true
	})
}

// WaitFor blocks until the spy delivers the VAA of (chainID, emitter,
// sequence). It returns nil when ctx ends first.
func (w *Watcher) WaitFor(ctx context.Context, chainID uint16, emitter vaa.Address, sequence uint64) (*VAAData, error) {
	w.logger.Info("Waiting for VAA",
		zap.Uint16("chainId", chainID),
		zap.String("emitter", emitter.Hex()),
		zap.Uint64("sequence", sequence))

	var found *VAAData
	err := w.each(ctx, func(data *VAAData) bool {
		if data.Matches(chainID, emitter, sequence) {
			found = data
			return false
		}
		return true
	})
	return found, err
}
