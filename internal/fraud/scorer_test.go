package fraud

import (
	"reflect"
	"testing"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

func baseClaim() *domain.Claim {
	reported := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	policyStart := reported.AddDate(-2, 0, 0)
	return &domain.Claim{
		ID:              "claim-001",
		EstimatedAmount: 5_000,
		ReportedDate:    reported,
		PolicyStart:     &policyStart,
		DocumentCount:   2,
	}
}

func TestScoreCleanClaim(t *testing.T) {
	s := NewScorer()

	analysis := s.Score(baseClaim(), 0)
	if analysis.Score != 0 {
		t.Errorf("expected score 0, got %.1f", analysis.Score)
	}
	if analysis.RiskLevel != domain.RiskLow {
		t.Errorf("expected low risk, got %s", analysis.RiskLevel)
	}
	if analysis.Recommendation != domain.RecommendApprove {
		t.Errorf("expected APPROVE, got %s", analysis.Recommendation)
	}
}

func TestIndicators(t *testing.T) {
	s := NewScorer()

	t.Run("HighAmount", func(t *testing.T) {
		claim := baseClaim()
		claim.EstimatedAmount = 60_000
		analysis := s.Score(claim, 0)
		if analysis.Score != 30 {
			t.Errorf("expected 30, got %.1f", analysis.Score)
		}
		if analysis.Flags[0] != FlagHighAmount {
			t.Errorf("expected HIGH_AMOUNT flag, got %v", analysis.Flags)
		}
	})

	t.Run("NewPolicy", func(t *testing.T) {
		claim := baseClaim()
		start := claim.ReportedDate.AddDate(0, 0, -10)
		claim.PolicyStart = &start
		analysis := s.Score(claim, 0)
		if analysis.Score != 40 {
			t.Errorf("expected 40, got %.1f", analysis.Score)
		}
	})

	t.Run("FrequentClaimant", func(t *testing.T) {
		analysis := s.Score(baseClaim(), 4)
		if analysis.Score != 25 {
			t.Errorf("expected 25, got %.1f", analysis.Score)
		}
		// Exactly 3 peers does not trigger.
		analysis = s.Score(baseClaim(), 3)
		if analysis.Score != 0 {
			t.Errorf("expected 0 at threshold, got %.1f", analysis.Score)
		}
	})

	t.Run("NoDocuments", func(t *testing.T) {
		claim := baseClaim()
		claim.DocumentCount = 0
		analysis := s.Score(claim, 0)
		if analysis.Score != 15 {
			t.Errorf("expected 15, got %.1f", analysis.Score)
		}
	})

	t.Run("MissingPolicyStartContributesZero", func(t *testing.T) {
		claim := baseClaim()
		claim.PolicyStart = nil
		analysis := s.Score(claim, 0)
		if analysis.Score != 0 {
			t.Errorf("expected 0, got %.1f", analysis.Score)
		}
	})
}

func TestRiskTiers(t *testing.T) {
	s := NewScorer()

	cases := []struct {
		name      string
		mutate    func(*domain.Claim)
		peers     int64
		wantScore float64
		wantLevel domain.RiskLevel
		wantRec   string
	}{
		{
			name:      "MediumTier",
			mutate:    func(c *domain.Claim) { c.EstimatedAmount = 75_000 },
			wantScore: 30, wantLevel: domain.RiskMedium, wantRec: domain.RecommendReview,
		},
		{
			name: "HighTier",
			mutate: func(c *domain.Claim) {
				c.EstimatedAmount = 75_000
				start := c.ReportedDate.AddDate(0, 0, -5)
				c.PolicyStart = &start
			},
			wantScore: 70, wantLevel: domain.RiskHigh, wantRec: domain.RecommendInvestigate,
		},
		{
			name: "CriticalTier",
			mutate: func(c *domain.Claim) {
				c.EstimatedAmount = 75_000
				start := c.ReportedDate.AddDate(0, 0, -5)
				c.PolicyStart = &start
				c.DocumentCount = 0
			},
			peers:     5,
			wantScore: 100, wantLevel: domain.RiskCritical, wantRec: domain.RecommendReject,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claim := baseClaim()
			tc.mutate(claim)
			analysis := s.Score(claim, tc.peers)
			if analysis.Score != tc.wantScore {
				t.Errorf("expected score %.0f, got %.1f", tc.wantScore, analysis.Score)
			}
			if analysis.RiskLevel != tc.wantLevel {
				t.Errorf("expected level %s, got %s", tc.wantLevel, analysis.RiskLevel)
			}
			if analysis.Recommendation != tc.wantRec {
				t.Errorf("expected %s, got %s", tc.wantRec, analysis.Recommendation)
			}
		})
	}
}

// Identical attributes and peer set must always yield the identical result.
func TestScoringIsDeterministic(t *testing.T) {
	s := NewScorer()

	claim := baseClaim()
	claim.EstimatedAmount = 55_000
	claim.DocumentCount = 0

	first := s.Score(claim, 4)
	for i := 0; i < 10; i++ {
		again := s.Score(claim, 4)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("scoring not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestApply(t *testing.T) {
	claim := baseClaim()
	claim.EstimatedAmount = 60_000
	analysis := NewScorer().Score(claim, 0)

	Apply(claim, analysis)
	if claim.FraudScore != analysis.Score || claim.FraudRiskLevel != analysis.RiskLevel {
		t.Error("apply did not copy fraud fields onto claim")
	}
}
