// Package recommend maps a scoring outcome to a recommended next action and
// a CRM tag set through a deterministic rule table.
package recommend

import (
	"sort"

	"github.com/signalworks/sibyl/internal/feature"
	"github.com/signalworks/sibyl/internal/signals"
	"github.com/signalworks/sibyl/internal/state"
)

// Recommended actions.
const (
	ActionScheduleDemo  = "schedule_demo"
	ActionSendPricing   = "send_pricing"
	ActionNurtureEmail  = "nurture_email"
	ActionSendROIReport = "send_ROI_report"
	ActionDisqualify    = "disqualify"
)

// Action evaluates the decision table top to bottom; the first matching row
// wins.
func Action(intent string, score int, conv state.Conversation) string {
	switch {
	case intent == "buy_soon" && score >= 70:
		return ActionScheduleDemo
	case intent == "considering" &&
		(conv.HasSignal(feature.BudgetMentioned) || conv.HasSignal(feature.DecisionMakerIdentified)):
		return ActionSendPricing
	case intent == "researching":
		return ActionNurtureEmail
	case score >= 50 &&
		!conv.HasSignal(feature.BudgetMentioned) && !conv.HasSignal(feature.TimelineSpecified):
		return ActionSendROIReport
	case intent == "not_interested":
		return ActionDisqualify
	default:
		return ActionNurtureEmail
	}
}

// Tags derives the CRM tag set. Tags are additive, not mutually exclusive,
// and returned in a stable order.
func Tags(intent string, score int, conv state.Conversation) []string {
	var tags []string

	if conv.TeamSize != nil && *conv.TeamSize >= 1 {
		switch {
		case *conv.TeamSize < 20:
			tags = append(tags, "smb")
		case *conv.TeamSize < 200:
			tags = append(tags, "mid_market")
		default:
			tags = append(tags, "enterprise")
		}
	}

	if conv.HasSignal(feature.CurrentToolMentioned) {
		if c, ok := signals.KnownCompetitor(conv.SignalEvidence(feature.CurrentToolMentioned)); ok {
			tags = append(tags, c+"_migration")
		}
	}

	switch {
	case score >= 80:
		tags = append(tags, "hot_lead")
	case score >= 50:
		tags = append(tags, "warm_lead")
	default:
		tags = append(tags, "cold_lead")
	}

	if intent == "buy_soon" {
		tags = append(tags, "high_priority")
	}

	sort.Strings(tags)
	return tags
}
