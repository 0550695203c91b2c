package clients

import (
	"context"
	"iter"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller repeats guardian fetches on a fixed interval. Running out of
// attempts is not an error.
type Poller struct {
	fetcher  VAAFetcher
	interval time.Duration
	sleep    SleepFunc
	logger   *zap.Logger
}

func NewPoller(logger *zap.Logger, fetcher VAAFetcher, interval time.Duration) *Poller {
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		sleep:    sleepContext,
		logger:   logger.With(zap.String("component", "Poller")),
	}
}

// WithSleep replaces the wait between attempts.
func (p *Poller) WithSleep(sleep SleepFunc) *Poller {
	cp := *p
	cp.sleep = sleep
	return &cp
}

// Attempts yields one result per attempt, at most times. Every attempt is
// preceded by the poll interval. A nil VAA with a nil error means that
// attempt found nothing; an error ends the sequence.
func (p *Poller) Attempts(ctx context.Context, times int, req VAARequest) iter.Seq2[*FetchedVAA, error] {
	return func(yield func(*FetchedVAA, error) bool) {
		if times <= 0 {
			return
		}
		backoff := retry.WithMaxRetries(uint64(times), retry.NewConstant(p.interval))
		for attempt := 1; ; attempt++ {
			wait, stop := backoff.Next()
			if stop {
				return
			}
			if err := p.sleep(ctx, wait); err != nil {
				yield(nil, err)
				return
			}

			p.logger.Debug("Polling guardian", append(req.fields(), zap.Int("attempt", attempt), zap.Int("of", times))...)
			fetched, err := p.fetcher.FetchVAA(ctx, req)
			if !yield(fetched, err) || err != nil {
				return
			}
		}
	}
}

// FetchVAAWithRetry stops at the first VAA found. It returns nil, nil when
// every attempt came back empty.
func (p *Poller) FetchVAAWithRetry(ctx context.Context, times int, req VAARequest) (*FetchedVAA, error) {
	for fetched, err := range p.Attempts(ctx, times, req) {
		if err != nil {
			return nil, err
		}
		if fetched != nil {
			return fetched, nil
		}
	}
	p.logger.Warn("Signed VAA still unavailable", append(req.fields(), zap.Int("attempts", times))...)
	return nil, nil
}
