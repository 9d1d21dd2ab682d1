// Package fraud implements the deterministic fraud risk scorer.
// Scoring is additive over independent indicators and never fails:
// missing inputs contribute zero to their term.
package fraud

import (
	"fmt"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

// Indicator weights and thresholds. Policy-tunable, deterministic.
const (
	highAmountThreshold = 50_000.0
	highAmountPoints    = 30.0

	newPolicyWindowDays = 30
	newPolicyPoints     = 40.0

	peerClaimThreshold = 3
	peerClaimPoints    = 25.0

	noDocumentsPoints = 15.0
)

// Risk tier cut-offs on the clamped 0-100 score.
const (
	mediumCutoff   = 20.0
	highCutoff     = 50.0
	criticalCutoff = 80.0
)

// Indicator flag names carried on the analysis and the claim.
const (
	FlagHighAmount       = "HIGH_AMOUNT"
	FlagNewPolicy        = "NEW_POLICY"
	FlagFrequentClaimant = "FREQUENT_CLAIMANT"
	FlagNoDocuments      = "NO_DOCUMENTS"
)

// Scorer computes fraud risk from claim attributes and a peer-claim count.
// It is a pure function of its inputs: identical attributes and peer set
// always yield the identical score and level.
type Scorer struct{}

// NewScorer creates a fraud scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score analyses a claim given the number of other claims filed by the same
// customer. Policy age is measured from inception to the reported date so
// the result does not depend on evaluation time.
func (s *Scorer) Score(claim *domain.Claim, peerClaims int64) *domain.FraudAnalysis {
	analysis := &domain.FraudAnalysis{ClaimID: claim.ID}

	var score float64

	if claim.EstimatedAmount > highAmountThreshold {
		score += highAmountPoints
		analysis.Flags = append(analysis.Flags, FlagHighAmount)
		analysis.Reasons = append(analysis.Reasons,
			fmt.Sprintf("estimated amount %.2f exceeds %.0f", claim.EstimatedAmount, highAmountThreshold))
	}

	if claim.PolicyStart != nil {
		age := claim.ReportedDate.Sub(*claim.PolicyStart)
		if age < time.Duration(newPolicyWindowDays)*24*time.Hour {
			score += newPolicyPoints
			analysis.Flags = append(analysis.Flags, FlagNewPolicy)
			analysis.Reasons = append(analysis.Reasons,
				fmt.Sprintf("claim filed %.0f days after policy inception", age.Hours()/24))
		}
	}

	if peerClaims > peerClaimThreshold {
		score += peerClaimPoints
		analysis.Flags = append(analysis.Flags, FlagFrequentClaimant)
		analysis.Reasons = append(analysis.Reasons,
			fmt.Sprintf("customer has %d other claims", peerClaims))
	}

	if claim.DocumentCount == 0 {
		score += noDocumentsPoints
		analysis.Flags = append(analysis.Flags, FlagNoDocuments)
		analysis.Reasons = append(analysis.Reasons, "no documents attached")
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	analysis.Score = score
	analysis.RiskLevel, analysis.Recommendation = tier(score)
	return analysis
}

// tier maps a score to its risk level and recommendation.
func tier(score float64) (domain.RiskLevel, string) {
	switch {
	case score < mediumCutoff:
		return domain.RiskLow, domain.RecommendApprove
	case score < highCutoff:
		return domain.RiskMedium, domain.RecommendReview
	case score < criticalCutoff:
		return domain.RiskHigh, domain.RecommendInvestigate
	default:
		return domain.RiskCritical, domain.RecommendReject
	}
}

// Apply copies an analysis onto the claim's fraud fields.
func Apply(claim *domain.Claim, analysis *domain.FraudAnalysis) {
	claim.FraudScore = analysis.Score
	claim.FraudRiskLevel = analysis.RiskLevel
	claim.FraudFlags = analysis.Flags
}
