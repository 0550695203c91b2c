package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// VAARequest identifies a signed VAA on one guardian network.
type VAARequest struct {
	Verifier config.Verifier
	ChainID  uint16
	Emitter  vaa.Address
	// Sequence is decimal.
	Sequence string
	Encoding vaa.Encoding
}

func (r VAARequest) fields() []zap.Field {
	return []zap.Field{
		zap.Stringer("verifier", r.Verifier),
		zap.Uint16("chainId", r.ChainID),
		zap.String("emitter", r.Emitter.Hex()),
		zap.String("sequence", r.Sequence),
	}
}

// FetchedVAA is a signed VAA returned by a guardian network.
type FetchedVAA struct {
	Raw []byte
	// Encoded is Raw rendered in the requested encoding.
	Encoded string
}

// VAAFetcher fetches a signed VAA. A nil result with a nil error means the
// VAA is not available yet.
type VAAFetcher interface {
	FetchVAA(ctx context.Context, req VAARequest) (*FetchedVAA, error)
}

type signedVAAResponse struct {
	VAABytes string `json:"vaaBytes"`
}

// GuardianClient reads signed VAAs from the guardian REST endpoints.
type GuardianClient struct {
	networks   map[config.Verifier]config.GuardianNetwork
	httpClient *http.Client
	logger     *zap.Logger
}

var _ VAAFetcher = (*GuardianClient)(nil)

func NewGuardianClient(logger *zap.Logger, networks map[config.Verifier]config.GuardianNetwork) *GuardianClient {
	return &GuardianClient{
		networks: networks,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.With(zap.String("component", "GuardianClient")),
	}
}

// URL builds the signed VAA path for req.
func (c *GuardianClient) URL(req VAARequest) (string, error) {
	network, ok := c.networks[req.Verifier]
	if !ok || network.Endpoint == "" {
		return "", fmt.Errorf("%w: no guardian endpoint for %s", config.ErrInvalidConfiguration, req.Verifier)
	}
	return fmt.Sprintf("%s/v1/signed_vaa/%d/%s/%s",
		strings.TrimSuffix(network.Endpoint, "/"),
		req.ChainID,
		strings.TrimPrefix(req.Emitter.Hex(), "0x"),
		req.Sequence), nil
}

// FetchVAA performs a single request. Transport failures, non-2xx responses
// and unreadable bodies are logged and reported as not available.
func (c *GuardianClient) FetchVAA(ctx context.Context, req VAARequest) (*FetchedVAA, error) {
	url, err := c.URL(req)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With(req.fields()...)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %v", err)
	}
	if auth := c.networks[req.Verifier].Auth; auth != "" {
		httpReq.Header.Set("Authorization", "Basic "+auth)
	}

	logger.Debug("Fetching signed VAA", zap.String("url", url))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Warn("Guardian request failed", zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("Failed to read guardian response", zap.Error(err))
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("Signed VAA not available",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)))
		return nil, nil
	}

	var response signedVAAResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logger.Warn("Failed to unmarshal guardian response", zap.Error(err))
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(response.VAABytes)
	if err != nil || len(raw) == 0 {
		logger.Warn("Guardian response has no usable vaaBytes", zap.Error(err))
		return nil, nil
	}

	encoding := req.Encoding
	if encoding == "" {
		encoding = vaa.EncodingBase64
	}
	fetched := &FetchedVAA{Raw: raw, Encoded: response.VAABytes}
	if encoding != vaa.EncodingBase64 {
		fetched.Encoded = encoding.Format(raw)
	}

	logger.Info("Fetched signed VAA", zap.Int("vaaLength", len(raw)))
	return fetched, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
