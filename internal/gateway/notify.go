package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-insurance/heron/internal/domain"
)

// BusNotificationGateway publishes notifications onto the event bus, where
// delivery workers (email, sms, push) pick them up.
type BusNotificationGateway struct {
	bus domain.EventBus
}

// NewBusNotificationGateway creates a bus-backed notification gateway.
func NewBusNotificationGateway(bus domain.EventBus) *BusNotificationGateway {
	return &BusNotificationGateway{bus: bus}
}

// Send publishes the notification to the notify topic.
func (g *BusNotificationGateway) Send(ctx context.Context, tenantID string, n *domain.Notification) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return g.bus.Publish(ctx, tenantID, domain.TopicNotify, payload)
}

// BusInsurerGateway publishes claim events to the insurer integration topic,
// where the upstream connector forwards them.
type BusInsurerGateway struct {
	bus domain.EventBus
}

// NewBusInsurerGateway creates a bus-backed insurer gateway.
func NewBusInsurerGateway(bus domain.EventBus) *BusInsurerGateway {
	return &BusInsurerGateway{bus: bus}
}

type insurerEvent struct {
	Kind  string        `json:"kind"`
	Claim *domain.Claim `json:"claim"`
}

// NotifySubmission reports a newly submitted claim to the insurer.
func (g *BusInsurerGateway) NotifySubmission(ctx context.Context, tenantID string, claim *domain.Claim) error {
	return g.publish(ctx, tenantID, "submission", claim)
}

// PushStatus reports a claim state change to the insurer.
func (g *BusInsurerGateway) PushStatus(ctx context.Context, tenantID string, claim *domain.Claim) error {
	return g.publish(ctx, tenantID, "status", claim)
}

func (g *BusInsurerGateway) publish(ctx context.Context, tenantID, kind string, claim *domain.Claim) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	payload, err := json.Marshal(insurerEvent{Kind: kind, Claim: claim})
	if err != nil {
		return fmt.Errorf("failed to marshal insurer event: %w", err)
	}
	return g.bus.Publish(ctx, tenantID, domain.TopicInsurer, payload)
}
