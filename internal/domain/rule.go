package domain

import "time"

// ConditionField names a claim attribute an automation condition reads.
type ConditionField string

const (
	FieldEstimatedAmount   ConditionField = "estimated_amount"
	FieldClaimedAmount     ConditionField = "claimed_amount"
	FieldHasDocuments      ConditionField = "has_documents"
	FieldFraudScore        ConditionField = "fraud_score"
	FieldDaysSinceIncident ConditionField = "days_since_incident"
	FieldState             ConditionField = "state"
	FieldClaimType         ConditionField = "claim_type"
	FieldPriority          ConditionField = "priority"
)

// ConditionOp is a comparison operator.
type ConditionOp string

const (
	OpEq  ConditionOp = "eq"
	OpNe  ConditionOp = "ne"
	OpGt  ConditionOp = "gt"
	OpGte ConditionOp = "gte"
	OpLt  ConditionOp = "lt"
	OpLte ConditionOp = "lte"
)

// Condition compares one claim field against a literal. All conditions of a
// rule must hold for the rule to match.
type Condition struct {
	Field ConditionField `json:"field"`
	Op    ConditionOp    `json:"op"`
	Value any            `json:"value"`
}

// ActionKind tags an automation action.
type ActionKind string

const (
	ActionApprove  ActionKind = "approve"
	ActionReject   ActionKind = "reject"
	ActionClose    ActionKind = "close"
	ActionEscalate ActionKind = "escalate"
	ActionFlag     ActionKind = "flag"
	ActionAssign   ActionKind = "assign"
	ActionNotify   ActionKind = "notify"
)

// Action is one side effect executed when a rule matches.
type Action struct {
	Kind   ActionKind        `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// AutomationRule is a declarative condition/action pair evaluated against a
// claim on each automation pass. Rules are persisted configuration, loaded at
// startup and hot-reloadable; lower Priority runs first.
type AutomationRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	Priority   int         `json:"priority"`
	Conditions []Condition `json:"conditions"`

	// Expression is an optional CEL predicate evaluated alongside the
	// structured conditions, for combinations the field/op form cannot
	// express. Empty means no expression.
	Expression string `json:"expression,omitempty"`

	Actions []Action `json:"actions"`
	Enabled bool     `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// AutomationResult reports one automation pass over a claim. Failing actions
// are accumulated, not fatal: independently matching rules still run.
type AutomationResult struct {
	ClaimID         string   `json:"claimId"`
	RulesApplied    []string `json:"rulesApplied"`
	ActionsExecuted []string `json:"actionsExecuted"`
	Success         bool     `json:"success"`
	Errors          []string `json:"errors,omitempty"`
}

// FraudAnalysis is the output of the fraud scorer.
type FraudAnalysis struct {
	ClaimID        string    `json:"claimId"`
	Score          float64   `json:"score"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	Flags          []string  `json:"flags,omitempty"`
	Recommendation string    `json:"recommendation"`
	Reasons        []string  `json:"reasons,omitempty"`
}

// Fraud scorer recommendations.
const (
	RecommendApprove     = "APPROVE"
	RecommendReview      = "REVIEW"
	RecommendInvestigate = "INVESTIGATE"
	RecommendReject      = "REJECT"
)
