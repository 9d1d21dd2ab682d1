// Package worker provides async claim processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/service"
)

// Worker drains submitted claims from the EventBus and runs the automated
// pipeline over them. It also owns the periodic sweeps: stuck-claim
// escalation and approval expiry.
type Worker struct {
	bus     domain.EventBus
	service *service.ClaimService

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// SweepInterval is how often the maintenance sweeps run. Zero disables them.
	SweepInterval time.Duration

	// StuckThresholdDays is how long a claim may sit in one state before the
	// sweep escalates it.
	StuckThresholdDays int
}

// DefaultStuckThresholdDays applies when Config leaves the threshold unset.
const DefaultStuckThresholdDays = 7

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, svc *service.ClaimService) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: svc,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing claims for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.StuckThresholdDays <= 0 {
		cfg.StuckThresholdDays = DefaultStuckThresholdDays
	}

	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		if cfg.SweepInterval > 0 {
			w.startSweeper(tenantID, cfg.SweepInterval, cfg.StuckThresholdDays)
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
		"sweep_interval", cfg.SweepInterval,
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicClaimReceived, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicClaimReceived, func(ctx context.Context, msg *domain.Message) error {
		return w.processClaim(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicClaimReceived,
	)

	return nil
}

// startSweeper runs the periodic maintenance sweeps for one tenant until the
// worker stops.
func (w *Worker) startSweeper(tenantID string, interval time.Duration, stuckDays int) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runSweeps(tenantID, stuckDays)
			}
		}
	}()
}

// runSweeps executes one round of maintenance for a tenant.
func (w *Worker) runSweeps(tenantID string, stuckDays int) {
	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	expired, err := w.service.ExpireApprovals(ctx, tenantID)
	if err != nil {
		slog.Error("approval expiry sweep failed",
			"tenant_id", tenantID,
			"error", err,
		)
	} else if expired > 0 {
		slog.Info("approval requests expired",
			"tenant_id", tenantID,
			"count", expired,
		)
	}

	escalated, err := w.service.SweepStuckClaims(ctx, tenantID, stuckDays)
	if err != nil {
		slog.Error("stuck claim sweep failed",
			"tenant_id", tenantID,
			"error", err,
		)
	} else if escalated > 0 {
		slog.Info("stuck claims escalated",
			"tenant_id", tenantID,
			"count", escalated,
		)
	}
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processClaim(ctx, msg.TenantID, msg)
}

// ClaimMessage is the message payload announcing a claim to process.
type ClaimMessage struct {
	ClaimID  string `json:"claimId"`
	TenantID string `json:"tenantId,omitempty"`
}

// processClaim runs the automated pipeline over one announced claim.
func (w *Worker) processClaim(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var claimMsg ClaimMessage
	if err := json.Unmarshal(msg.Payload, &claimMsg); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if claimMsg.TenantID != "" {
		tenantID = claimMsg.TenantID
	}

	slog.Debug("processing claim",
		"claim_id", claimMsg.ClaimID,
		"tenant_id", tenantID,
	)

	result, err := w.service.AutoProcess(ctx, tenantID, claimMsg.ClaimID)
	if err != nil {
		slog.Error("claim auto-processing failed",
			"claim_id", claimMsg.ClaimID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	slog.Info("claim processed",
		"claim_id", claimMsg.ClaimID,
		"tenant_id", tenantID,
		"rules_applied", len(result.RulesApplied),
		"success", result.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
