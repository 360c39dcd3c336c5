package feature

// SchemaVersion identifies the global feature schema shared by extraction
// and scoring. A snapshot trained against one schema version refuses nothing
// at load time, but unrecognised features are dropped at scoring time, so the
// version travels with every snapshot and result for auditing.
const SchemaVersion = "v1"

// Signal feature names. One entry per possible signal in the schema.
const (
	BudgetMentioned         = "budget_mentioned"
	TimelineSpecified       = "timeline_specified"
	PainPointIdentified     = "pain_point_identified"
	CurrentToolMentioned    = "current_tool_mentioned"
	TeamSizeSpecified       = "team_size_specified"
	DemoRequested           = "demo_requested"
	HighTrialEngagement     = "high_trial_engagement"
	EmailEngaged            = "email_engaged"
	DecisionMakerIdentified = "decision_maker_identified"
	UrgencyExpressed        = "urgency_expressed"
)

// Scalar feature names: behavioral and demographic inputs plus
// conversation counters.
const (
	PagesVisited         = "pages_visited"
	TrialUsage           = "trial_usage"
	EmailOpens           = "email_opens"
	TeamSize             = "team_size"
	IndustryBucket       = "industry_bucket"
	RoleAuthority        = "role_authority"
	UrgencyCount         = "urgency_count"
	PricingQuestions     = "pricing_questions"
	FeatureQuestions     = "feature_questions"
	IntegrationQuestions = "integration_questions"
)

// signalWeights maps every signal feature to its fixed weight.
// The sum of these weights is the rule-layer normalization constant.
var signalWeights = map[string]float64{
	BudgetMentioned:         0.15,
	TimelineSpecified:       0.12,
	PainPointIdentified:     0.10,
	CurrentToolMentioned:    0.08,
	TeamSizeSpecified:       0.10,
	DemoRequested:           0.20,
	HighTrialEngagement:     0.12,
	EmailEngaged:            0.05,
	DecisionMakerIdentified: 0.20,
	UrgencyExpressed:        0.08,
}

// names is the fixed, ordered feature-name set. Order matters: trained
// snapshots store per-feature parameters positionally against this list.
var names = []string{
	BudgetMentioned,
	TimelineSpecified,
	PainPointIdentified,
	CurrentToolMentioned,
	TeamSizeSpecified,
	DemoRequested,
	HighTrialEngagement,
	EmailEngaged,
	DecisionMakerIdentified,
	UrgencyExpressed,
	PagesVisited,
	TrialUsage,
	EmailOpens,
	TeamSize,
	IndustryBucket,
	RoleAuthority,
	UrgencyCount,
	PricingQuestions,
	FeatureQuestions,
	IntegrationQuestions,
}

var nameSet = func() map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}()

// Names returns a copy of the ordered feature-name set.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Known reports whether name belongs to the schema.
func Known(name string) bool {
	return nameSet[name]
}

// SignalWeight returns the fixed weight for a signal feature name.
func SignalWeight(name string) (float64, bool) {
	w, ok := signalWeights[name]
	return w, ok
}

// TotalSignalWeight is the sum of all possible signal weights, used to
// normalize the rule-layer raw score into [0, 1].
func TotalSignalWeight() float64 {
	var sum float64
	for _, w := range signalWeights {
		sum += w
	}
	return sum
}

// IndustryBucketCode maps an industry label to its categorical code.
// Unknown or empty industries map to 0.
func IndustryBucketCode(industry string) float64 {
	switch industry {
	case "technology":
		return 1
	case "finance":
		return 2
	case "healthcare":
		return 3
	case "retail":
		return 4
	case "":
		return 0
	default:
		return 5 // other
	}
}
