package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-insurance/heron/internal/domain"
)

// HTTPPaymentGateway processes payouts through an external payment provider
// over HTTP. Used in the Pro tier.
type HTTPPaymentGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPPaymentGateway creates a payment gateway against the provider URL.
func NewHTTPPaymentGateway(baseURL, apiKey string) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Process submits one payout and returns the provider's decision.
func (g *HTTPPaymentGateway) Process(ctx context.Context, tenantID string, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payouts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var result domain.PaymentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode payment response: %w", err)
	}

	return &result, nil
}

// LocalPaymentGateway settles payouts synchronously without an external
// provider. Used in the Community tier and in tests.
type LocalPaymentGateway struct{}

// NewLocalPaymentGateway creates the in-process payment gateway.
func NewLocalPaymentGateway() *LocalPaymentGateway {
	return &LocalPaymentGateway{}
}

// Process settles the payout immediately.
func (g *LocalPaymentGateway) Process(ctx context.Context, tenantID string, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	return &domain.PaymentResult{
		TransactionID: uuid.New().String(),
		Succeeded:     true,
	}, nil
}
