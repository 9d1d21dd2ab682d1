package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    claim_number TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    policy_id TEXT NOT NULL,
    policy_start TIMESTAMP,
    type TEXT NOT NULL,
    priority TEXT NOT NULL,
    state TEXT NOT NULL,
    adjuster_id TEXT,
    estimated_amount REAL NOT NULL,
    claimed_amount REAL NOT NULL,
    approved_amount REAL,
    paid_amount REAL,
    currency TEXT NOT NULL,
    incident_date TIMESTAMP NOT NULL,
    reported_date TIMESTAMP NOT NULL,
    submitted_at TIMESTAMP,
    approved_at TIMESTAMP,
    rejected_at TIMESTAMP,
    paid_at TIMESTAMP,
    closed_at TIMESTAMP,
    last_state_change TIMESTAMP NOT NULL,
    has_required_documents INTEGER NOT NULL DEFAULT 0,
    missing_documents TEXT,
    document_count INTEGER NOT NULL DEFAULT 0,
    fraud_risk_level TEXT,
    fraud_score REAL NOT NULL DEFAULT 0,
    fraud_flags TEXT,
    requires_approval INTEGER NOT NULL DEFAULT 0,
    approval_level INTEGER NOT NULL DEFAULT 0,
    approvers TEXT,
    notes TEXT,
    metadata TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_tenant ON claims(tenant_id);
CREATE INDEX IF NOT EXISTS idx_claims_customer ON claims(tenant_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_claims_state ON claims(tenant_id, state);
CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(tenant_id, created_at);
`

// schemaClaimHistory is the append-only transition log, kept outside the
// claims row so audit reads do not deserialize the whole aggregate.
const schemaClaimHistory = `
CREATE TABLE IF NOT EXISTS claim_history (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    from_state TEXT NOT NULL,
    to_state TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    user_id TEXT,
    reason TEXT,
    reason_code TEXT
);

CREATE INDEX IF NOT EXISTS idx_claim_history_claim ON claim_history(tenant_id, claim_id);
CREATE INDEX IF NOT EXISTS idx_claim_history_timestamp ON claim_history(tenant_id, timestamp);
`

const schemaApprovalRequests = `
CREATE TABLE IF NOT EXISTS approval_requests (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    level INTEGER NOT NULL,
    approvers TEXT NOT NULL,
    status TEXT NOT NULL,
    requires_all INTEGER NOT NULL DEFAULT 0,
    requested_by TEXT,
    requested_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_approval_requests_tenant ON approval_requests(tenant_id);
CREATE INDEX IF NOT EXISTS idx_approval_requests_claim ON approval_requests(tenant_id, claim_id);
CREATE INDEX IF NOT EXISTS idx_approval_requests_status ON approval_requests(tenant_id, status);
`

const schemaAutomationRules = `
CREATE TABLE IF NOT EXISTS automation_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 100,
    conditions TEXT NOT NULL,
    expression TEXT,
    actions TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_automation_rules_tenant ON automation_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_automation_rules_enabled ON automation_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaClaimHistory,
		schemaApprovalRequests,
		schemaAutomationRules,
	}
}
