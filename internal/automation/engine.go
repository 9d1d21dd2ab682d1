// Package automation provides the rule-based claim automation engine.
// Rules are evaluated strictly in ascending priority order; every enabled
// rule is considered even after earlier rules match or fail, and action
// failures are accumulated rather than aborting the pass.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/workflow"
)

// Engine evaluates automation rules against claims and executes actions
// through the state machine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule

	machine  *workflow.Machine
	notifier domain.NotificationGateway
	now      func() time.Time
}

// CompiledRule pairs a rule with its pre-compiled CEL program, if any.
type CompiledRule struct {
	Rule    *domain.AutomationRule
	Program cel.Program
}

// NewEngine creates an automation engine. The notifier may be nil, in which
// case NOTIFY actions are no-ops.
func NewEngine(machine *workflow.Machine, notifier domain.NotificationGateway) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("claim", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("estimated_amount", cel.DoubleType),
		cel.Variable("claimed_amount", cel.DoubleType),
		cel.Variable("fraud_score", cel.DoubleType),
		cel.Variable("has_documents", cel.BoolType),
		cel.Variable("days_since_incident", cel.DoubleType),
		cel.Variable("state", cel.StringType),
		cel.Variable("claim_type", cel.StringType),
		cel.Variable("priority", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		machine:       machine,
		notifier:      notifier,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock overrides the engine clock, for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// ValidateRule compiles and validates a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.AutomationRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a single rule into the engine.
func (e *Engine) LoadRule(rule *domain.AutomationRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(rules []*domain.AutomationRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears existing rules and loads new ones. This enables
// hot-reloading of rule configuration from the database.
func (e *Engine) ReloadRules(rules []*domain.AutomationRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rules in priority order.
func (e *Engine) LoadedRules() []*domain.AutomationRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.AutomationRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	sortRules(rules)
	return rules
}

// Process evaluates all loaded rules against the claim, executing the
// actions of every matching rule. A failing action is recorded in the
// result's error list and evaluation continues; Success is false if any
// action errored.
func (e *Engine) Process(ctx context.Context, claim *domain.Claim) *domain.AutomationResult {
	e.mu.RLock()
	ordered := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		ordered = append(ordered, compiled)
	}
	e.mu.RUnlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Rule.Priority < ordered[j].Rule.Priority
	})

	result := &domain.AutomationResult{
		ClaimID: claim.ID,
		Success: true,
	}

	for _, compiled := range ordered {
		matched, err := e.matches(compiled, claim)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("rule %s: %v", compiled.Rule.ID, err))
			result.Success = false
			continue
		}
		if !matched {
			continue
		}

		result.RulesApplied = append(result.RulesApplied, compiled.Rule.ID)
		for _, action := range compiled.Rule.Actions {
			if err := e.execute(ctx, claim, compiled.Rule, action); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("rule %s action %s: %v", compiled.Rule.ID, action.Kind, err))
				result.Success = false
				continue
			}
			result.ActionsExecuted = append(result.ActionsExecuted,
				fmt.Sprintf("%s:%s", compiled.Rule.ID, action.Kind))
		}

		slog.Debug("automation rule fired",
			"rule_id", compiled.Rule.ID,
			"claim_id", claim.ID,
			"actions", len(compiled.Rule.Actions),
		)
	}

	return result
}

// matches reports whether every structured condition and the optional CEL
// expression hold for the claim's current field values.
func (e *Engine) matches(compiled *CompiledRule, claim *domain.Claim) (bool, error) {
	for _, cond := range compiled.Rule.Conditions {
		ok, err := e.evalCondition(cond, claim)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if compiled.Program == nil {
		return true, nil
	}

	out, _, err := compiled.Program.Eval(e.activation(claim))
	if err != nil {
		return false, fmt.Errorf("expression error: %w", err)
	}
	return toBool(out), nil
}

// activation builds the CEL variable bindings for a claim.
func (e *Engine) activation(claim *domain.Claim) map[string]any {
	days := e.now().Sub(claim.IncidentDate).Hours() / 24
	return map[string]any{
		"claim": map[string]any{
			"id":           claim.ID,
			"type":         string(claim.Type),
			"state":        string(claim.State),
			"customer_id":  claim.CustomerID,
			"policy_id":    claim.PolicyID,
			"adjuster_id":  claim.AdjusterID,
			"currency":     claim.Currency,
		},
		"estimated_amount":    claim.EstimatedAmount,
		"claimed_amount":      claim.ClaimedAmount,
		"fraud_score":         claim.FraudScore,
		"has_documents":       claim.HasRequiredDocuments,
		"days_since_incident": days,
		"state":               string(claim.State),
		"claim_type":          string(claim.Type),
		"priority":            string(claim.Priority),
	}
}

func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}

func (e *Engine) compileRule(rule *domain.AutomationRule) (*CompiledRule, error) {
	for _, cond := range rule.Conditions {
		if err := validateCondition(cond); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
	}

	compiled := &CompiledRule{Rule: rule}
	if rule.Expression == "" {
		return compiled, nil
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}
	compiled.Program = program
	return compiled, nil
}

func sortRules(rules []*domain.AutomationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}
