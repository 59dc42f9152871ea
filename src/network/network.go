package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"signal-hub/src/helpers"
	"signal-hub/src/logger"
	"signal-hub/src/models"
)

// -----------------------------------------------------------------------------

// HTTPNotifier pushes broadcast payloads to a remote hub's /ws/notify.
type HTTPNotifier struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger

	url     string
	backoff time.Duration
}

// -----------------------------------------------------------------------------

func NewHTTPNotifier(cfg *models.MConfig, log *logger.Logger) *HTTPNotifier {
	timeout := time.Duration(cfg.Hub.PushTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPNotifier{
		Config:  cfg,
		Client:  &http.Client{Timeout: timeout},
		Logger:  log,
		url:     cfg.Hub.PushURL,
		backoff: 250 * time.Millisecond,
	}
}

// -----------------------------------------------------------------------------

type pushResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// -----------------------------------------------------------------------------

// Notify POSTs payload, retrying transport errors, 429 and 5xx responses.
func (n *HTTPNotifier) Notify(ctx context.Context, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	maxRetries := n.Config.Hub.PushRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i*i) * n.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retry, err := n.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		n.Logger.Info("Push failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
		if !retry {
			break
		}
	}

	return helpers.NewNetworkError("push to "+n.url+" failed", lastErr)
}

// -----------------------------------------------------------------------------

func (n *HTTPNotifier) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return true, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, fmt.Errorf("bad status: %d %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("bad status: %d %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var ack pushResponse
	if err := json.Unmarshal(data, &ack); err != nil {
		return false, fmt.Errorf("unexpected push response: %w", err)
	}
	if !ack.OK {
		return false, fmt.Errorf("hub rejected push: %s", ack.Error)
	}
	return false, nil
}
