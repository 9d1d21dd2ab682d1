// Package gateway holds the adapters between the claim core and the outside
// world: document validation, payout processing, insurer callbacks, and
// notifications.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-insurance/heron/internal/domain"
)

// requiredDocuments maps claim types to the document kinds a complete claim
// must carry.
var requiredDocuments = map[domain.ClaimType][]string{
	domain.TypeAutoAccident:   {"police_report", "photos", "repair_estimate"},
	domain.TypePropertyDamage: {"photos", "repair_estimate"},
	domain.TypeTheft:          {"police_report", "proof_of_ownership"},
	domain.TypeFire:           {"fire_report", "photos", "repair_estimate"},
	domain.TypeWaterDamage:    {"photos", "repair_estimate"},
	domain.TypeHealth:         {"medical_report", "invoice"},
	domain.TypeLife:           {"death_certificate", "beneficiary_id"},
	domain.TypeLiability:      {"incident_report", "third_party_statement"},
	domain.TypeOther:          {"supporting_evidence"},
}

// RuleDocumentStore validates documents against the per-type requirement
// table. It keeps no document content; claims track only validation state.
type RuleDocumentStore struct{}

// NewDocumentStore creates the standard document validator.
func NewDocumentStore() *RuleDocumentStore {
	return &RuleDocumentStore{}
}

// RequiredDocuments returns the document kinds a claim type requires.
func (s *RuleDocumentStore) RequiredDocuments(claimType domain.ClaimType) []string {
	if docs, ok := requiredDocuments[claimType]; ok {
		return docs
	}
	return requiredDocuments[domain.TypeOther]
}

// Validate checks one uploaded document and reports which required kinds the
// claim still lacks after accepting it.
func (s *RuleDocumentStore) Validate(ctx context.Context, tenantID string, claim *domain.Claim, doc *domain.Document) (*domain.DocumentResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}

	result := &domain.DocumentResult{
		Fields: map[string]string{
			"name": doc.Name,
			"kind": doc.Kind,
		},
	}

	kind := strings.ToLower(strings.TrimSpace(doc.Kind))
	if kind == "" || len(doc.Content) == 0 {
		result.Valid = false
		result.Missing = s.missingAfter(claim, "")
		return result, nil
	}

	recognized := false
	for _, required := range s.RequiredDocuments(claim.Type) {
		if required == kind {
			recognized = true
			break
		}
	}

	result.Valid = recognized
	if recognized {
		result.Missing = s.missingAfter(claim, kind)
	} else {
		result.Missing = s.missingAfter(claim, "")
	}

	return result, nil
}

// missingAfter computes the outstanding required kinds assuming the claim's
// current missing list, minus the kind just accepted.
func (s *RuleDocumentStore) missingAfter(claim *domain.Claim, accepted string) []string {
	outstanding := claim.MissingDocuments
	if outstanding == nil {
		outstanding = s.RequiredDocuments(claim.Type)
	}

	var missing []string
	for _, kind := range outstanding {
		if kind != accepted {
			missing = append(missing, kind)
		}
	}
	return missing
}
