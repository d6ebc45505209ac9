package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tixly/internal/shared/config"
)

// ExternalOrder is the gateway-side order a payment settles against.
type ExternalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Gateway is the payment collaborator boundary. Card handling and checkout
// UI live entirely on the gateway's side; this core only creates the
// external order and later verifies the settlement notification.
type Gateway interface {
	CreateExternalOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*ExternalOrder, error)
}

type httpGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

// NewHTTPGateway creates a REST client for the payment gateway.
func NewHTTPGateway(cfg config.PaymentConfig) Gateway {
	return &httpGateway{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (g *httpGateway) CreateExternalOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*ExternalOrder, error) {
	body := map[string]interface{}{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var order ExternalOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &order, nil
}

// MockGateway settles everything locally; used in development when no
// gateway credentials are configured.
type MockGateway struct{}

func (MockGateway) CreateExternalOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*ExternalOrder, error) {
	return &ExternalOrder{
		ID:     fmt.Sprintf("mock_order_%d", time.Now().UnixNano()),
		Status: "created",
	}, nil
}

// NewGateway picks the HTTP gateway when credentials are configured and the
// mock otherwise.
func NewGateway(cfg config.PaymentConfig) Gateway {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return MockGateway{}
	}
	return NewHTTPGateway(cfg)
}
