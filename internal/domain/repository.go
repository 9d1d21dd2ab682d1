package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Claim operations
	SaveClaim(ctx context.Context, tenantID string, claim *Claim) error
	GetClaim(ctx context.Context, tenantID string, claimID string) (*Claim, error)
	ListClaimsByCustomer(ctx context.Context, tenantID string, customerID string, since time.Time) ([]*Claim, error)
	ListClaimsByState(ctx context.Context, tenantID string, state ClaimState) ([]*Claim, error)

	// Transition audit log
	AppendHistory(ctx context.Context, tenantID string, entry *HistoryEntry) error
	ListHistory(ctx context.Context, tenantID string, claimID string) ([]*HistoryEntry, error)

	// Approval request lifecycle
	SaveApprovalRequest(ctx context.Context, tenantID string, req *ApprovalRequest) error
	GetApprovalRequest(ctx context.Context, tenantID string, requestID string) (*ApprovalRequest, error)
	ListPendingApprovalRequests(ctx context.Context, tenantID string) ([]*ApprovalRequest, error)

	// Automation rule configuration
	SaveAutomationRule(ctx context.Context, tenantID string, rule *AutomationRule) error
	GetAutomationRule(ctx context.Context, tenantID string, ruleID string) (*AutomationRule, error)
	ListAutomationRules(ctx context.Context, tenantID string) ([]*AutomationRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
