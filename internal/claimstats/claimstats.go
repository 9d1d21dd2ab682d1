// Package claimstats provides claim-frequency statistics for a customer,
// feeding the fraud scorer's frequent-claimant indicator.
package claimstats

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

// DefaultWindowDays is the lookback window for peer-claim counting.
const DefaultWindowDays = 365

// Service counts a customer's prior claims within a time window.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new claim statistics service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// CountPeerClaims returns the number of other claims the customer filed
// within the window, excluding the claim being scored. This is the
// PeerClaimCounter signature expected by the fraud pipeline.
func (s *Service) CountPeerClaims(ctx context.Context, tenantID, customerID, excludeClaimID string, windowDays int) (int64, error) {
	if tenantID == "" || customerID == "" {
		return 0, fmt.Errorf("tenantID and customerID are required")
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	if s.repo != nil {
		return s.countFromRepo(ctx, tenantID, customerID, excludeClaimID, since)
	}

	return 0, fmt.Errorf("no data source available")
}

// countFromRepo uses the repository to list claims and count them.
func (s *Service) countFromRepo(ctx context.Context, tenantID, customerID, excludeClaimID string, since time.Time) (int64, error) {
	claims, err := s.repo.ListClaimsByCustomer(ctx, tenantID, customerID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list claims: %w", err)
	}

	var count int64
	for _, c := range claims {
		if c.ID != excludeClaimID {
			count++
		}
	}
	return count, nil
}

// CustomerExposure sums the estimated amounts of the customer's open claims
// within the window. Terminal states do not count toward exposure.
func (s *Service) CustomerExposure(ctx context.Context, tenantID, customerID string, windowDays int) (float64, error) {
	if tenantID == "" || customerID == "" {
		return 0, fmt.Errorf("tenantID and customerID are required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	claims, err := s.repo.ListClaimsByCustomer(ctx, tenantID, customerID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list claims: %w", err)
	}

	var total float64
	for _, c := range claims {
		switch c.State {
		case domain.StateRejected, domain.StateClosed, domain.StatePaid:
		default:
			total += c.EstimatedAmount
		}
	}
	return total, nil
}

// PeerCounter returns the counting function in the shape the fraud
// pipeline consumes.
func (s *Service) PeerCounter() func(ctx context.Context, tenantID, customerID, excludeClaimID string, windowDays int) (int64, error) {
	return s.CountPeerClaims
}
