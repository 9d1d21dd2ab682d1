package domain

import "context"

// DocumentStore validates uploaded claim documents and extracts structured
// fields. Failures are non-fatal to the core: the documents-present guard
// simply stays unmet.
type DocumentStore interface {
	Validate(ctx context.Context, tenantID string, claim *Claim, doc *Document) (*DocumentResult, error)
	RequiredDocuments(claimType ClaimType) []string
}

// Document is an uploaded artifact attached to a claim.
type Document struct {
	ID      string `json:"id"`
	ClaimID string `json:"claimId"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// DocumentResult is the extraction outcome for one document.
type DocumentResult struct {
	Valid   bool              `json:"valid"`
	Fields  map[string]string `json:"fields,omitempty"`
	Missing []string          `json:"missing,omitempty"`
}

// InsurerGateway pushes claim events to the upstream insurer. Calls are
// fire-and-observe; retries belong to the caller, not the core.
type InsurerGateway interface {
	NotifySubmission(ctx context.Context, tenantID string, claim *Claim) error
	PushStatus(ctx context.Context, tenantID string, claim *Claim) error
}

// PaymentGateway processes claim payouts. Failures surface as errors to the
// caller; the core does not retry.
type PaymentGateway interface {
	Process(ctx context.Context, tenantID string, req *PaymentRequest) (*PaymentResult, error)
}

// PaymentRequest describes one payout.
type PaymentRequest struct {
	ClaimID  string  `json:"claimId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Method   string  `json:"method"`
}

// PaymentResult is the gateway response for a payout.
type PaymentResult struct {
	TransactionID string `json:"transactionId"`
	Succeeded     bool   `json:"succeeded"`
}

// NotificationGateway delivers best-effort notifications to claim parties.
type NotificationGateway interface {
	Send(ctx context.Context, tenantID string, n *Notification) error
}

// Notification is one multi-channel message.
type Notification struct {
	ClaimID  string `json:"claimId"`
	Channel  string `json:"channel"` // email, sms, push
	Template string `json:"template"`
	Message  string `json:"message,omitempty"`
}
