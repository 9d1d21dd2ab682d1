package automation

import (
	"fmt"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

// validateCondition rejects unknown fields and operators at load time so a
// bad rule fails on reload, not mid-evaluation.
func validateCondition(cond domain.Condition) error {
	switch cond.Field {
	case domain.FieldEstimatedAmount, domain.FieldClaimedAmount,
		domain.FieldFraudScore, domain.FieldDaysSinceIncident,
		domain.FieldHasDocuments, domain.FieldState,
		domain.FieldClaimType, domain.FieldPriority:
	default:
		return fmt.Errorf("unknown condition field %q", cond.Field)
	}

	switch cond.Op {
	case domain.OpEq, domain.OpNe, domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
	default:
		return fmt.Errorf("unknown condition operator %q", cond.Op)
	}

	return nil
}

// evalCondition evaluates one structured condition against the claim's
// current field values.
func (e *Engine) evalCondition(cond domain.Condition, claim *domain.Claim) (bool, error) {
	switch cond.Field {
	case domain.FieldEstimatedAmount:
		return compareNumber(cond.Op, claim.EstimatedAmount, cond.Value)
	case domain.FieldClaimedAmount:
		return compareNumber(cond.Op, claim.ClaimedAmount, cond.Value)
	case domain.FieldFraudScore:
		return compareNumber(cond.Op, claim.FraudScore, cond.Value)
	case domain.FieldDaysSinceIncident:
		days := e.now().Sub(claim.IncidentDate).Hours() / 24
		return compareNumber(cond.Op, days, cond.Value)
	case domain.FieldHasDocuments:
		return compareBool(cond.Op, claim.HasRequiredDocuments, cond.Value)
	case domain.FieldState:
		return compareString(cond.Op, string(claim.State), cond.Value)
	case domain.FieldClaimType:
		return compareString(cond.Op, string(claim.Type), cond.Value)
	case domain.FieldPriority:
		return compareString(cond.Op, string(claim.Priority), cond.Value)
	default:
		return false, fmt.Errorf("unknown condition field %q", cond.Field)
	}
}

func compareNumber(op domain.ConditionOp, actual float64, literal any) (bool, error) {
	expected, err := toFloat(literal)
	if err != nil {
		return false, err
	}

	switch op {
	case domain.OpEq:
		return actual == expected, nil
	case domain.OpNe:
		return actual != expected, nil
	case domain.OpGt:
		return actual > expected, nil
	case domain.OpGte:
		return actual >= expected, nil
	case domain.OpLt:
		return actual < expected, nil
	case domain.OpLte:
		return actual <= expected, nil
	default:
		return false, fmt.Errorf("operator %q not valid for numbers", op)
	}
}

func compareBool(op domain.ConditionOp, actual bool, literal any) (bool, error) {
	expected, ok := literal.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool literal, got %T", literal)
	}

	switch op {
	case domain.OpEq:
		return actual == expected, nil
	case domain.OpNe:
		return actual != expected, nil
	default:
		return false, fmt.Errorf("operator %q not valid for booleans", op)
	}
}

func compareString(op domain.ConditionOp, actual string, literal any) (bool, error) {
	expected, ok := literal.(string)
	if !ok {
		return false, fmt.Errorf("expected string literal, got %T", literal)
	}

	switch op {
	case domain.OpEq:
		return actual == expected, nil
	case domain.OpNe:
		return actual != expected, nil
	default:
		return false, fmt.Errorf("operator %q not valid for strings", op)
	}
}

// toFloat accepts the numeric shapes JSON decoding produces.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case time.Duration:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected numeric literal, got %T", v)
	}
}
