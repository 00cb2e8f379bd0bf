// Package ingest implements the HTTP client boundary to the remote batch
// ingestion endpoint. The endpoint treats batchId as an idempotency token
// and accepts or rejects the whole batch atomically.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkhov/sessionkit/internal/telemetry"
)

// DefaultTimeout bounds one batch submission.
const DefaultTimeout = 10 * time.Second

// Client posts telemetry batches. It implements telemetry.Sender.
type Client struct {
	endpoint string
	hc       *http.Client
	log      zerolog.Logger
}

// New creates a Client for the given endpoint URL. A zero timeout selects
// the default.
func New(endpoint string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("ingest: endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "ingest").Logger(),
	}, nil
}

// Send submits one batch. Any transport or non-2xx failure is returned to
// the batcher unmodified; retry policy lives there, not here.
func (c *Client) Send(ctx context.Context, batch telemetry.Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("ingest: encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ingest: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("ingest: submit batch %s: %w", batch.BatchID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest: batch %s rejected with status %d", batch.BatchID, resp.StatusCode)
	}

	c.log.Debug().Str("batch_id", batch.BatchID).Int("events", len(batch.Events)).Msg("batch accepted")
	return nil
}
