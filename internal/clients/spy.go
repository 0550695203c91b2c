package clients

import (
	"context"
	"fmt"
	"time"

	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	subscribeAttempts   = 5
	subscribeRetryDelay = 2 * time.Second
)

// VAAStream yields signed VAAs as the spy observes them.
type VAAStream interface {
	Recv() (*spyv1.SubscribeSignedVAAResponse, error)
}

// VAASubscriber opens a stream of signed VAAs.
type VAASubscriber interface {
	SubscribeSignedVAA(ctx context.Context) (VAAStream, error)
}

// SpyClient handles connections to the Wormhole spy service.
type SpyClient struct {
	conn   *grpc.ClientConn
	client spyv1.SpyRPCServiceClient
	delay  time.Duration
	logger *zap.Logger
}

var _ VAASubscriber = (*SpyClient)(nil)

// NewSpyClient creates a client for the spy at endpoint. The connection is
// established lazily on the first subscription.
func NewSpyClient(logger *zap.Logger, endpoint string) (*SpyClient, error) {
	client := &SpyClient{
		delay:  subscribeRetryDelay,
		logger: logger.With(zap.String("component", "SpyClient")),
	}

	client.logger.Info("Connecting to spy service", zap.String("endpoint", endpoint))
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to spy: %v", err)
	}

	client.conn = conn
	client.client = spyv1.NewSpyRPCServiceClient(conn)
	return client, nil
}

// Close closes the connection to the spy service.
func (c *SpyClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// SubscribeSignedVAA subscribes to all signed VAAs, retrying a few times
// while the spy is unreachable.
func (c *SpyClient) SubscribeSignedVAA(ctx context.Context) (VAAStream, error) {
	c.logger.Debug("Subscribing to signed VAAs")

	var stream spyv1.SpyRPCService_SubscribeSignedVAAClient
	attempt := 0
	backoff := retry.WithMaxRetries(subscribeAttempts-1, retry.NewConstant(c.delay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		s, err := c.client.SubscribeSignedVAA(ctx, &spyv1.SubscribeSignedVAARequest{})
		if err != nil {
			c.logger.Warn("Subscribe attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
				zap.Duration("retryIn", c.delay))
			return retry.RetryableError(err)
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe after %d attempts: %v", attempt, err)
	}
	return stream, nil
}
