package claimstats

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-insurance/heron/internal/cache"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/repository"
)

func TestClaimStatsService(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "claimstats-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	lruCache := cache.NewLRUCache(100)
	defer lruCache.Close()

	svc := NewService(repo, lruCache)

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("EmptyDatabase", func(t *testing.T) {
		count, err := svc.CountPeerClaims(ctx, tenantID, "cust-001", "claim-new", 365)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for empty database, got %d", count)
		}
	})

	t.Run("WithClaims", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			claim := &domain.Claim{
				ID:              fmt.Sprintf("claim-%d", i),
				TenantID:        tenantID,
				ClaimNumber:     fmt.Sprintf("CLM-2026-%04d", i),
				CustomerID:      "cust-001",
				PolicyID:        "pol-001",
				Type:            domain.TypeAutoAccident,
				Priority:        domain.PriorityNormal,
				State:           domain.StateUnderReview,
				EstimatedAmount: 1_000,
				IncidentDate:    time.Now().UTC().AddDate(0, 0, -5),
				ReportedDate:    time.Now().UTC().AddDate(0, 0, -4),
				CreatedAt:       time.Now().UTC(),
				UpdatedAt:       time.Now().UTC(),
				LastStateChange: time.Now().UTC(),
			}
			if err := repo.SaveClaim(ctx, tenantID, claim); err != nil {
				t.Fatalf("failed to save claim: %v", err)
			}
		}

		// The claim being scored is excluded from its own peer count.
		count, err := svc.CountPeerClaims(ctx, tenantID, "cust-001", "claim-0", 365)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 3 {
			t.Errorf("expected count 3 excluding the scored claim, got %d", count)
		}

		count, err = svc.CountPeerClaims(ctx, tenantID, "cust-001", "claim-new", 365)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 4 {
			t.Errorf("expected count 4, got %d", count)
		}

		count, err = svc.CountPeerClaims(ctx, tenantID, "cust-unknown", "claim-new", 365)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for unknown customer, got %d", count)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		count, err := svc.CountPeerClaims(ctx, "other-tenant", "cust-001", "claim-new", 365)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for different tenant, got %d", count)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		_, err := svc.CountPeerClaims(ctx, "", "cust-001", "", 365)
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("RequiresCustomerID", func(t *testing.T) {
		_, err := svc.CountPeerClaims(ctx, tenantID, "", "", 365)
		if err == nil {
			t.Error("expected error for empty customerID")
		}
	})

	t.Run("CustomerExposure", func(t *testing.T) {
		total, err := svc.CustomerExposure(ctx, tenantID, "cust-001", 365)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 4_000 {
			t.Errorf("expected exposure 4000, got %.2f", total)
		}
	})

	t.Run("PeerCounter", func(t *testing.T) {
		counter := svc.PeerCounter()
		if counter == nil {
			t.Fatal("PeerCounter returned nil")
		}

		count, err := counter(ctx, tenantID, "cust-001", "claim-new", 365)
		if err != nil {
			t.Fatalf("PeerCounter failed: %v", err)
		}
		if count != 4 {
			t.Errorf("expected count 4, got %d", count)
		}
	})
}

func TestNoDataSource(t *testing.T) {
	svc := &Service{} // No repo or db

	ctx := context.Background()
	_, err := svc.CountPeerClaims(ctx, "tenant", "customer", "", 365)
	if err == nil {
		t.Error("expected error with no data source")
	}
}
