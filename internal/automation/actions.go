package automation

import (
	"context"
	"fmt"

	"github.com/opensource-insurance/heron/internal/domain"
)

// defaultAdjusters maps claim types to the adjuster pool used by ASSIGN
// actions that do not name one explicitly.
var defaultAdjusters = map[domain.ClaimType]string{
	domain.TypeAutoAccident:   "adjuster-auto",
	domain.TypePropertyDamage: "adjuster-property",
	domain.TypeTheft:          "adjuster-theft",
	domain.TypeFire:           "adjuster-property",
	domain.TypeWaterDamage:    "adjuster-property",
	domain.TypeHealth:         "adjuster-health",
	domain.TypeLife:           "adjuster-life",
	domain.TypeLiability:      "adjuster-liability",
	domain.TypeOther:          "adjuster-general",
}

// execute runs one action against the claim. Transition-backed actions
// inherit the state machine's failure modes; the caller accumulates errors.
func (e *Engine) execute(ctx context.Context, claim *domain.Claim, rule *domain.AutomationRule, action domain.Action) error {
	switch action.Kind {
	case domain.ActionApprove:
		if err := e.machine.CanTransitionClaim(claim, domain.StateApproved); err != nil {
			return err
		}
		_, err := e.machine.Transition(claim, domain.StateApproved,
			"auto-approved by rule "+rule.Name, "AUTO_APPROVE", "")
		return err

	case domain.ActionReject:
		reason := action.Params["reason"]
		if reason == "" {
			reason = "auto-rejected by rule " + rule.Name
		}
		_, err := e.machine.Transition(claim, domain.StateRejected, reason, "AUTO_REJECT", "")
		return err

	case domain.ActionClose:
		reason := action.Params["reason"]
		if reason == "" {
			reason = "auto-closed by rule " + rule.Name
		}
		_, err := e.machine.Transition(claim, domain.StateClosed, reason, "AUTO_CLOSE", "")
		return err

	case domain.ActionEscalate:
		// Priority escalation only. Approval-level escalation belongs
		// to the approval engine and is invoked by the service layer.
		claim.Priority = domain.PriorityUrgent
		claim.SetMeta("escalated", true)
		claim.SetMeta("escalatedBy", rule.ID)
		return nil

	case domain.ActionFlag:
		flag := action.Params["flag"]
		if flag == "" {
			flag = rule.ID
		}
		claim.SetMeta("flags", append(claim.Flags(), flag))
		return nil

	case domain.ActionAssign:
		adjuster := action.Params["adjusterId"]
		if adjuster == "" {
			adjuster = defaultAdjusters[claim.Type]
		}
		if adjuster == "" {
			adjuster = defaultAdjusters[domain.TypeOther]
		}
		claim.AdjusterID = adjuster
		return nil

	case domain.ActionNotify:
		if e.notifier == nil {
			return nil
		}
		return e.notifier.Send(ctx, claim.TenantID, &domain.Notification{
			ClaimID:  claim.ID,
			Channel:  action.Params["channel"],
			Template: action.Params["template"],
		})

	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

// AdjusterFor returns the default adjuster pool for a claim type.
func AdjusterFor(claimType domain.ClaimType) string {
	if adjuster, ok := defaultAdjusters[claimType]; ok {
		return adjuster
	}
	return defaultAdjusters[domain.TypeOther]
}
