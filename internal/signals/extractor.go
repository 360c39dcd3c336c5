package signals

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/signalworks/sibyl/internal/feature"
)

// Extractor turns raw turn text and an optional behavioral payload into
// signals and profile updates. All rules are compiled once and evaluated
// deterministically; extraction never fails.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

var (
	reBudget   = regexp.MustCompile(`\$\s*\d[\d,.]*k?m?|\bbudget\b`)
	reTimeline = regexp.MustCompile(`\bnext (?:week|month|quarter|year)\b|\bq[1-4]\b|\b(?:within|in) \d+ (?:days?|weeks?|months?)\b|\bthis (?:month|quarter)\b|\bby (?:the )?end of\b|\basap\b`)
	rePain     = regexp.MustCompile(`\blosing track\b|\btoo expensive\b|\bmanual process(?:es)?\b|\bstruggl\w*\b|\bproblem\b|\bchalleng\w*\b|\bdifficult\b|\bpain point\b`)
	reTeamSize = regexp.MustCompile(`\b(\d+)[ -]person\b|\bteam of (\d+)\b|\b(\d+) (?:people|sales reps|reps|employees|seats)\b`)
	reDecision = regexp.MustCompile(`\bdirector\b|\bvp\b|\bvice president\b|\bhead of\b|\bceo\b|\bcto\b|\bfounder\b|\bdecision maker\b`)
	reUrgency  = regexp.MustCompile(`\burgent\w*\b|\basap\b|\bimmediately\b|\bright away\b|\bas soon as possible\b`)

	rePricingQ     = regexp.MustCompile(`\bprice\b|\bcost\b|\bpricing\b|\bplan\b`)
	reFeatureQ     = regexp.MustCompile(`\bfeature\b|\bcapabilit\w*\b|\bfunction\w*\b`)
	reIntegrationQ = regexp.MustCompile(`\bintegrat\w*\b|\bapi\b|\bconnection\b`)

	reEmail   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	reName    = regexp.MustCompile(`(?:I'm|I am|[Mm]y name is|[Tt]his is)\s+([A-Z][a-z]+)`)
	reCompany = regexp.MustCompile(`(?:at|from|work for|with)\s+([A-Z][A-Za-z0-9&]+)`)
	reRole    = regexp.MustCompile(`\b(\w+ (?:manager|director|lead|engineer|analyst)|head of \w+|vp of \w+|ceo|cto|founder)\b`)
)

// knownTools are vendors recognised for the current_tool_mentioned signal.
var knownTools = []string{
	"salesforce", "hubspot", "pipedrive", "zoho",
	"excel", "spreadsheets", "airtable", "monday", "asana",
}

// industryKeywords map conversation vocabulary to industry labels.
var industryKeywords = []struct {
	keyword  string
	industry string
}{
	{"saas", "technology"},
	{"software", "technology"},
	{"tech", "technology"},
	{"fintech", "finance"},
	{"banking", "finance"},
	{"finance", "finance"},
	{"healthcare", "healthcare"},
	{"medical", "healthcare"},
	{"retail", "retail"},
	{"ecommerce", "retail"},
	{"e-commerce", "retail"},
}

// Extract parses one turn. Empty or whitespace-only text yields no
// conversation signals; a nil behavioral payload is treated as all-absent.
// Out-of-range behavioral scalars are clamped, never rejected.
func (e *Extractor) Extract(text string, behavioral *BehavioralPayload) Extraction {
	var ext Extraction

	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		lower := strings.ToLower(trimmed)
		e.extractConversation(&ext, lower)
		e.extractProfile(&ext, trimmed, lower)
	}
	if behavioral != nil {
		e.extractBehavioral(&ext, *behavioral)
	}
	return ext
}

func (e *Extractor) extractConversation(ext *Extraction, lower string) {
	if m := reBudget.FindString(lower); m != "" {
		ext.add(feature.BudgetMentioned, CategoryConversation, m)
	}
	if m := reTimeline.FindString(lower); m != "" {
		ext.add(feature.TimelineSpecified, CategoryConversation, m)
	}
	if m := rePain.FindString(lower); m != "" {
		ext.add(feature.PainPointIdentified, CategoryConversation, m)
	}
	for _, tool := range knownTools {
		if strings.Contains(lower, tool) {
			ext.add(feature.CurrentToolMentioned, CategoryConversation, tool)
			break
		}
	}

	if m := reTeamSize.FindStringSubmatch(lower); m != nil {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if n, err := strconv.Atoi(g); err == nil && n > 0 {
				ext.TeamSize = &n
				ext.add(feature.TeamSizeSpecified, CategoryDemographic, m[0])
			}
			break
		}
	}

	if m := reDecision.FindString(lower); m != "" {
		ext.add(feature.DecisionMakerIdentified, CategoryIntent, m)
	}

	ext.UrgencyCount = len(reUrgency.FindAllString(lower, -1))
	if ext.UrgencyCount > 0 {
		ext.add(feature.UrgencyExpressed, CategoryConversation, reUrgency.FindString(lower))
	}

	if rePricingQ.MatchString(lower) {
		ext.PricingQuestions = 1
	}
	if reFeatureQ.MatchString(lower) {
		ext.FeatureQuestions = 1
	}
	if reIntegrationQ.MatchString(lower) {
		ext.IntegrationQuestions = 1
	}
}

func (e *Extractor) extractProfile(ext *Extraction, raw, lower string) {
	if m := reName.FindStringSubmatch(raw); m != nil {
		ext.Profile.Name = &m[1]
	}
	if m := reEmail.FindString(raw); m != "" {
		ext.Profile.Email = &m
	}
	if m := reCompany.FindStringSubmatch(raw); m != nil {
		ext.Profile.Company = &m[1]
	}
	if m := reRole.FindStringSubmatch(lower); m != nil {
		ext.Profile.Role = &m[1]
	}
	for _, ik := range industryKeywords {
		if strings.Contains(lower, ik.keyword) {
			industry := ik.industry
			ext.Profile.Industry = &industry
			break
		}
	}
}

func (e *Extractor) extractBehavioral(ext *Extraction, b BehavioralPayload) {
	// Malformed scalars are corrected by clamping, never abort the turn.
	if b.PagesVisited < 0 {
		e.logger.Warn("clamping negative pages_visited", "value", b.PagesVisited)
		b.PagesVisited = 0
	}
	if b.EmailOpens < 0 {
		e.logger.Warn("clamping negative email_opens", "value", b.EmailOpens)
		b.EmailOpens = 0
	}
	if b.TeamSize < 0 {
		e.logger.Warn("clamping negative team_size", "value", b.TeamSize)
		b.TeamSize = 0
	}
	if b.TrialUsage < 0 {
		e.logger.Warn("clamping trial_usage", "value", b.TrialUsage)
		b.TrialUsage = 0
	}
	if b.TrialUsage > 1 {
		e.logger.Warn("clamping trial_usage", "value", b.TrialUsage)
		b.TrialUsage = 1
	}

	if b.DemoRequested {
		ext.add(feature.DemoRequested, CategoryBehavioral, "demo requested")
	}
	if b.TrialUsage >= 0.5 {
		ext.add(feature.HighTrialEngagement, CategoryBehavioral,
			"trial usage "+strconv.FormatFloat(b.TrialUsage, 'f', 2, 64))
	}
	if b.EmailOpens >= 3 {
		ext.add(feature.EmailEngaged, CategoryBehavioral,
			strconv.Itoa(b.EmailOpens)+" email opens")
	}
	if b.TeamSize > 0 && ext.TeamSize == nil {
		ts := b.TeamSize
		ext.TeamSize = &ts
		ext.add(feature.TeamSizeSpecified, CategoryDemographic,
			"team size "+strconv.Itoa(ts))
	}
	if b.CurrentTool != nil && *b.CurrentTool != "" {
		ext.add(feature.CurrentToolMentioned, CategoryConversation,
			strings.ToLower(*b.CurrentTool))
	}
}

// add appends a signal unless the same name was already matched this turn.
func (ext *Extraction) add(name string, cat Category, evidence string) {
	for _, s := range ext.Signals {
		if s.Name == name {
			return
		}
	}
	weight, ok := feature.SignalWeight(name)
	if !ok {
		return
	}
	ext.Signals = append(ext.Signals, Signal{
		Name:     name,
		Category: cat,
		Weight:   weight,
		Evidence: evidence,
	})
}

// RoleAuthority maps a role string to an authority scalar.
func RoleAuthority(role string) float64 {
	r := strings.ToLower(role)
	switch {
	case strings.Contains(r, "ceo"):
		return 1.0
	case strings.Contains(r, "cto"):
		return 0.9
	case strings.Contains(r, "vp"), strings.Contains(r, "vice president"):
		return 0.8
	case strings.Contains(r, "director"), strings.Contains(r, "head"):
		return 0.7
	case strings.Contains(r, "manager"), strings.Contains(r, "lead"):
		return 0.6
	case strings.Contains(r, "senior"):
		return 0.5
	case strings.Contains(r, "junior"):
		return 0.3
	default:
		return 0
	}
}

// KnownCompetitor reports whether evidence names a tracked competitor and,
// if so, which one.
func KnownCompetitor(evidence string) (string, bool) {
	lower := strings.ToLower(evidence)
	for _, c := range []string{"salesforce", "hubspot", "pipedrive", "zoho"} {
		if strings.Contains(lower, c) {
			return c, true
		}
	}
	return "", false
}
