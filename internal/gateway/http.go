package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway talks JSON to the provider's adapter service.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTP(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type chargeRequest struct {
	Key    string `json:"idempotency_key"`
	Amount int64  `json:"amount"`
	UserID string `json:"user_id"`
}

type chargeResponse struct {
	Status ChargeStatus `json:"status"`
}

type refundRequest struct {
	Key       string `json:"idempotency_key"`
	ChargeKey string `json:"charge_key"`
	Amount    int64  `json:"amount"`
}

func (g *HTTPGateway) Charge(ctx context.Context, key string, amount int64, userID string) (ChargeStatus, error) {
	var out chargeResponse

	err := g.post(ctx, "/charges", chargeRequest{Key: key, Amount: amount, UserID: userID}, &out)
	if err != nil {
		return "", fmt.Errorf("charge: %w", err)
	}

	switch out.Status {
	case StatusConfirmed, StatusDeclined, StatusPending:
		return out.Status, nil
	default:
		return "", fmt.Errorf("charge: %w: unknown status %q", ErrRejected, out.Status)
	}
}

func (g *HTTPGateway) Refund(ctx context.Context, key, chargeKey string, amount int64) error {
	err := g.post(ctx, "/refunds", refundRequest{Key: key, ChargeKey: chargeKey, Amount: amount}, nil)
	if err != nil {
		return fmt.Errorf("refund: %w", err)
	}

	return nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
