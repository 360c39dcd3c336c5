// Package assemble produces the canonical qualification record consumed by
// CRM and UI collaborators. Assembly is a pure merge: deterministic,
// side-effect-free, no external calls.
package assemble

import (
	"github.com/signalworks/sibyl/internal/feature"
	"github.com/signalworks/sibyl/internal/recommend"
	"github.com/signalworks/sibyl/internal/scoring"
	"github.com/signalworks/sibyl/internal/state"
)

// Lead is the identity section of the output contract. All fields nullable.
type Lead struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Company  *string `json:"company"`
	Role     *string `json:"role"`
	Industry *string `json:"industry"`
}

// Output is the canonical response contract. The field set and types are
// fixed; collaborators depend on this shape.
type Output struct {
	Lead              Lead     `json:"lead"`
	Intent            string   `json:"intent"`
	Score             int      `json:"score"`
	TopSignals        []string `json:"top_signals"`
	RecommendedAction string   `json:"recommended_action"`
	Explain           string   `json:"explain"`
	CRMTags           []string `json:"crm_tags"`
}

// Build merges profile, scoring result, recommendation and tags into the
// canonical record.
func Build(conv state.Conversation, res scoring.Result, action string, tags []string) Output {
	top := make([]string, 0, len(res.TopSignals))
	for _, s := range res.TopSignals {
		if s.Evidence != "" {
			top = append(top, s.Name+" ("+s.Evidence+")")
		} else {
			top = append(top, s.Name)
		}
	}

	hasDM := conv.HasSignal(feature.DecisionMakerIdentified)

	return Output{
		Lead: Lead{
			Name:     conv.Profile.Name,
			Email:    conv.Profile.Email,
			Company:  conv.Profile.Company,
			Role:     conv.Profile.Role,
			Industry: conv.Profile.Industry,
		},
		Intent:            res.Intent,
		Score:             res.Score,
		TopSignals:        top,
		RecommendedAction: action,
		Explain:           Explain(res.Intent, res.Score, hasDM, action),
		CRMTags:           tags,
	}
}

// Explain renders the one-sentence rationale from a fixed template keyed by
// intent, score bucket and decision-maker presence. No free-form generation.
func Explain(intent string, score int, decisionMaker bool, action string) string {
	switch {
	case intent == "buy_soon" && score >= 70 && decisionMaker:
		return "High-scoring lead with clear buying intent and decision-making authority."
	case intent == "buy_soon" && score >= 70:
		return "High-scoring lead with clear buying intent."
	case intent == "buy_soon":
		return "Lead signals near-term buying intent but needs further qualification."
	case intent == "considering" && decisionMaker:
		return "Decision maker actively evaluating options."
	case intent == "considering":
		return "Lead is comparing options and weighing a purchase."
	case intent == "researching" && score >= 50:
		return "Engaged lead still in the research phase."
	case intent == "researching":
		return "Early-stage lead gathering information."
	case action == recommend.ActionDisqualify:
		return "No meaningful buying signals observed."
	default:
		return "Lead shows limited interest at this time."
	}
}
