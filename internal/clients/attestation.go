package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// ErrAttestationTimeout is returned when the oracle never reports a complete
// attestation within the poll budget. The message may still become attestable
// later; callers can re-run the relay.
var ErrAttestationTimeout = errors.New("attestation polling timed out")

// Oracle status values. Anything other than complete is treated as
// non-terminal and retried within the budget.
const (
	AttestationStatusComplete = "complete"
	AttestationStatusPending  = "pending_confirmations"
)

// AttestationResponse is the oracle's JSON body for a content-hash lookup.
type AttestationResponse struct {
	Status      string `json:"status"`
	Attestation string `json:"attestation,omitempty"`
}

// AttestationClient polls the attestation oracle for a message's attestation,
// keyed by the message's content hash.
type AttestationClient struct {
	baseURL      string
	pollInterval time.Duration
	maxAttempts  int
	httpClient   *http.Client
	logger       *zap.Logger
}

// AttestationConfig carries the poll cadence. Defaults: 10s interval, 30
// attempts, a 300 second ceiling matched to the oracle's median latency.
type AttestationConfig struct {
	BaseURL      string
	PollInterval time.Duration
	MaxAttempts  int
}

func NewAttestationClient(logger *zap.Logger, cfg AttestationConfig) *AttestationClient {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 30
	}
	return &AttestationClient{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(zap.String("component", "AttestationClient")),
	}
}

// FetchAttestation polls the oracle until the attestation is complete or the
// attempt budget runs out. Transport errors and non-terminal statuses are
// retry fuel, not failures; each consumes one attempt and waits the same
// fixed interval.
func (c *AttestationClient) FetchAttestation(ctx context.Context, contentHash common.Hash) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, contentHash.Hex())

	c.logger.Info("Polling for attestation",
		zap.String("contentHash", contentHash.Hex()),
		zap.Duration("interval", c.pollInterval),
		zap.Int("maxAttempts", c.maxAttempts))

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.poll(ctx, url)
		if err != nil {
			c.logger.Warn("Attestation poll failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if resp.Status == AttestationStatusComplete {
			attestation, err := hexutil.Decode(resp.Attestation)
			if err != nil {
				return nil, fmt.Errorf("oracle returned malformed attestation: %v", err)
			}
			c.logger.Info("Attestation complete",
				zap.Int("attempt", attempt),
				zap.Int("attestationLength", len(attestation)))
			return attestation, nil
		} else {
			if resp.Status != AttestationStatusPending {
				// Unrecognized statuses stay inside the retry budget but
				// are surfaced loudly so an oracle API change is noticed.
				c.logger.Warn("Unrecognized attestation status",
					zap.String("status", resp.Status),
					zap.Int("attempt", attempt))
			} else {
				c.logger.Debug("Attestation pending",
					zap.Int("attempt", attempt))
			}
		}

		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf("attestation polling cancelled: %v", ctx.Err())
		}
	}

	c.logger.Warn("Attestation poll budget exhausted",
		zap.String("contentHash", contentHash.Hex()))
	return nil, ErrAttestationTimeout
}

func (c *AttestationClient) poll(ctx context.Context, url string) (*AttestationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create attestation request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach oracle: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read oracle response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var parsed AttestationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oracle response: %v", err)
	}

	return &parsed, nil
}

// CheckHealth probes the oracle's health endpoint. Used before starting a
// watch loop so a misconfigured URL fails at startup, not on the first relay.
func (c *AttestationClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("attestation oracle unhealthy: status %d", resp.StatusCode)
	}

	return nil
}
