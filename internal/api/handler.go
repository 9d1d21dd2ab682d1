package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-insurance/heron/internal/automation"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/service"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	service *service.ClaimService
	repo    domain.Repository
	cache   domain.Cache
	engine  *automation.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(svc *service.ClaimService, repo domain.Repository, cache domain.Cache, engine *automation.Engine, version string) *Handler {
	return &Handler{
		service: svc,
		repo:    repo,
		cache:   cache,
		engine:  engine,
		version: version,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrAlreadyResolved):
		writeErrorMsg(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrGuardFailed):
		writeErrorMsg(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrExpired):
		writeErrorMsg(w, http.StatusGone, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "internal server error")
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// CreateClaim handles POST /claims.
func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.CustomerID == "" || req.PolicyID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "customerId and policyId are required")
		return
	}
	if req.EstimatedAmount < 0 || req.ClaimedAmount < 0 {
		writeErrorMsg(w, http.StatusBadRequest, "amounts must not be negative")
		return
	}

	claim, err := h.service.Create(ctx, tenantID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claim, err := h.service.Get(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// ListClaims handles GET /claims?state=UNDER_REVIEW.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := r.URL.Query().Get("state")
	if state == "" {
		writeErrorMsg(w, http.StatusBadRequest, "state query parameter is required")
		return
	}

	claims, err := h.service.ListByState(ctx, GetTenantID(ctx), domain.ClaimState(state))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claims": claims,
		"count":  len(claims),
	})
}

// GetHistory handles GET /claims/{id}/history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.service.History(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
		"count":   len(entries),
	})
}

// GetTransitions handles GET /claims/{id}/transitions.
func (h *Handler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targets, err := h.service.LegalTargets(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transitions": targets,
	})
}

// actionRequest is the shared body for lifecycle operation endpoints.
type actionRequest struct {
	UserID     string   `json:"userId,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Amount     *float64 `json:"amount,omitempty"`
	Method     string   `json:"method,omitempty"`
	AdjusterID string   `json:"adjusterId,omitempty"`
	Kinds      []string `json:"kinds,omitempty"`
}

func decodeAction(r *http.Request) actionRequest {
	var req actionRequest
	// Empty bodies are fine: every field is optional.
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req
}

// SubmitClaim handles POST /claims/{id}/submit.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.Submit(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// ReviewClaim handles POST /claims/{id}/review.
func (h *Handler) ReviewClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.Review(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// RequestDocuments handles POST /claims/{id}/request-documents.
func (h *Handler) RequestDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.RequestDocuments(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID, req.Kinds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// documentRequest is the body for POST /claims/{id}/documents.
type documentRequest struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// AttachDocument handles POST /claims/{id}/documents.
func (h *Handler) AttachDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID := chi.URLParam(r, "id")

	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.Kind == "" {
		writeErrorMsg(w, http.StatusBadRequest, "kind is required")
		return
	}

	claim, result, err := h.service.AttachDocument(ctx, GetTenantID(ctx), claimID, &domain.Document{
		ID:      uuid.New().String(),
		ClaimID: claimID,
		Kind:    req.Kind,
		Name:    req.Name,
		Content: []byte(req.Content),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claim":  claim,
		"result": result,
	})
}

// InvestigateClaim handles POST /claims/{id}/investigate.
func (h *Handler) InvestigateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.Investigate(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// ApproveClaim handles POST /claims/{id}/approve.
func (h *Handler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.Approve(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// RejectClaim handles POST /claims/{id}/reject.
func (h *Handler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.Reject(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// PayClaim handles POST /claims/{id}/pay.
func (h *Handler) PayClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.ProcessPayment(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID, req.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// CloseClaim handles POST /claims/{id}/close.
func (h *Handler) CloseClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.Close(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// ReopenClaim handles POST /claims/{id}/reopen.
func (h *Handler) ReopenClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.Reopen(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.UserID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// EscalateClaim handles POST /claims/{id}/escalate.
func (h *Handler) EscalateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.Escalate(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// AssignAdjuster handles POST /claims/{id}/assign.
func (h *Handler) AssignAdjuster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := decodeAction(r)
	claim, err := h.service.AssignAdjuster(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.AdjusterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// ProcessClaim handles POST /claims/{id}/process, running the automated
// pipeline synchronously.
func (h *Handler) ProcessClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.AutoProcess(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DetectFraud handles POST /claims/{id}/fraud.
func (h *Handler) DetectFraud(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysis, err := h.service.DetectFraud(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// GetSLA handles GET /claims/{id}/sla.
func (h *Handler) GetSLA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.CheckSLA(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetCustomerExposure handles GET /customers/{id}/exposure.
func (h *Handler) GetCustomerExposure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "id")

	exposure, err := h.service.CustomerExposure(ctx, GetTenantID(ctx), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customerId": customerID,
		"exposure":   exposure,
	})
}

// approvalResponse is the body for approval decision endpoints.
type approvalResponse struct {
	ApproverID string `json:"approverId"`
	Notes      string `json:"notes,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ApproveRequest handles POST /approvals/{id}/approve.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req approvalResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.ApproverID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "approverId is required")
		return
	}

	request, err := h.service.ApproveRequest(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.ApproverID, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// RejectRequest handles POST /approvals/{id}/reject.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req approvalResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.ApproverID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "approverId is required")
		return
	}

	request, err := h.service.RejectRequest(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.ApproverID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// ListRules returns all rules loaded in the automation engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.engine.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeErrorMsg(w, http.StatusNotFound, "rule not found")
}

// CreateRule creates an automation rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var rule domain.AutomationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if rule.ID == "" || rule.Name == "" {
		writeErrorMsg(w, http.StatusBadRequest, "id and name are required")
		return
	}
	if len(rule.Conditions) == 0 && rule.Expression == "" {
		writeErrorMsg(w, http.StatusBadRequest, "at least one condition or an expression is required")
		return
	}
	if rule.Version == "" {
		rule.Version = "1.0.0"
	}
	rule.TenantID = tenantID

	// Validate before persisting; a bad expression never reaches storage.
	if err := h.engine.ValidateRule(&rule); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid rule: "+err.Error())
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveAutomationRule(ctx, tenantID, &rule); err != nil {
			slog.Error("failed to save automation rule", "id", rule.ID, "error", err)
			writeErrorMsg(w, http.StatusInternalServerError, "failed to save rule")
			return
		}
	}

	slog.Info("automation rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeErrorMsg(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	dbRules, err := h.repo.ListAutomationRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to load rules from database")
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to reload rules: "+err.Error())
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}
