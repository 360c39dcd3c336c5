package signals

// Category classifies where a signal was observed.
type Category string

const (
	CategoryConversation Category = "conversation"
	CategoryBehavioral   Category = "behavioral"
	CategoryDemographic  Category = "demographic"
	CategoryIntent       Category = "intent"
)

// Signal is a discrete, named observation with a fixed weight and optional
// free-text evidence (typically the matched phrase).
type Signal struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Weight   float64  `json:"weight"`
	Evidence string   `json:"evidence,omitempty"`
	Turn     int      `json:"turn"` // first-observed turn, set by the state store
}

// BehavioralPayload carries side-channel behavioral facts for a turn.
// Field names follow the inbound wire contract.
type BehavioralPayload struct {
	PagesVisited  int     `json:"pages_visited"`
	TrialUsage    float64 `json:"trial_usage"`
	EmailOpens    int     `json:"email_opens"`
	DemoRequested bool    `json:"demo_requested"`
	TeamSize      int     `json:"team_size"`
	CurrentTool   *string `json:"current_tool"`
}

// Profile holds extracted lead identity attributes. Fields are pointers so a
// later turn can fill a previously unknown field without a populated field
// ever being overwritten by an absent one.
type Profile struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Company  *string `json:"company"`
	Role     *string `json:"role"`
	Industry *string `json:"industry"`
}

// Merge applies updates additively: a nil update never clears a populated
// field, and a populated field is never overwritten.
func (p *Profile) Merge(u Profile) {
	if p.Name == nil && u.Name != nil {
		p.Name = u.Name
	}
	if p.Email == nil && u.Email != nil {
		p.Email = u.Email
	}
	if p.Company == nil && u.Company != nil {
		p.Company = u.Company
	}
	if p.Role == nil && u.Role != nil {
		p.Role = u.Role
	}
	if p.Industry == nil && u.Industry != nil {
		p.Industry = u.Industry
	}
}

// Fields returns the names of populated profile fields.
func (p Profile) Fields() []string {
	var out []string
	if p.Name != nil {
		out = append(out, "name")
	}
	if p.Email != nil {
		out = append(out, "email")
	}
	if p.Company != nil {
		out = append(out, "company")
	}
	if p.Role != nil {
		out = append(out, "role")
	}
	if p.Industry != nil {
		out = append(out, "industry")
	}
	return out
}

// Extraction is everything one turn contributes to conversation state:
// signals, sparse profile updates, and per-turn conversation counters.
type Extraction struct {
	Signals []Signal
	Profile Profile

	TeamSize             *int // explicit headcount from text, nil if unobserved
	UrgencyCount         int
	PricingQuestions     int
	FeatureQuestions     int
	IntegrationQuestions int
}
