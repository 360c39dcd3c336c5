package state

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/signalworks/sibyl/internal/feature"
	"github.com/signalworks/sibyl/internal/signals"
)

// Conversation is the accumulated state for one conversation identifier:
// one profile, one deduplicated signal set, one feature vector, and a
// monotonically increasing turn counter.
type Conversation struct {
	ID      string
	Profile signals.Profile
	Signals []signals.Signal // ordered by first-observed turn
	Turns   int
	Vector  feature.Vector

	Behavioral     signals.BehavioralPayload // latest payload seen
	BehavioralSeen bool

	TeamSize             *int
	UrgencyCount         int
	PricingQuestions     int
	FeatureQuestions     int
	IntegrationQuestions int
}

// HasSignal reports whether a signal with the given name has been observed.
func (c *Conversation) HasSignal(name string) bool {
	for _, s := range c.Signals {
		if s.Name == name {
			return true
		}
	}
	return false
}

// SignalEvidence returns the current evidence text for a signal name.
func (c *Conversation) SignalEvidence(name string) string {
	for _, s := range c.Signals {
		if s.Name == name {
			return s.Evidence
		}
	}
	return ""
}

// slot serializes all mutations for a single conversation. Distinct
// conversations never contend on the same slot.
type slot struct {
	mu   sync.Mutex
	conv *Conversation
}

// Store owns all conversation state, partitioned by conversation identifier.
// Ended conversations move to a bounded archive.
type Store struct {
	mu      sync.RWMutex
	slots   map[string]*slot
	archive *lru.Cache[string, *Conversation]
	logger  *slog.Logger
}

func NewStore(archiveSize int, logger *slog.Logger) (*Store, error) {
	arc, err := lru.New[string, *Conversation](archiveSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		slots:   make(map[string]*slot),
		archive: arc,
		logger:  logger,
	}, nil
}

func (s *Store) slotFor(id string) *slot {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if ok {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.slots[id]; ok {
		return sl
	}
	sl = &slot{conv: &Conversation{ID: id, Vector: feature.NewVector()}}
	s.slots[id] = sl
	return sl
}

// Apply merges one turn's extraction into the conversation state and
// recomputes the feature vector. An unknown conversation identifier creates
// a fresh state, so the first turn always succeeds. The returned value is a
// copy: callers never share the live state.
func (s *Store) Apply(id string, ext signals.Extraction, behavioral *signals.BehavioralPayload) Conversation {
	sl := s.slotFor(id)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	c := sl.conv
	c.Turns++

	// Merge signals: dedup by name. Re-observation refreshes evidence but
	// never double-counts weight; a redefined weight keeps the max.
	for _, sig := range ext.Signals {
		merged := false
		for i := range c.Signals {
			if c.Signals[i].Name == sig.Name {
				if sig.Evidence != "" {
					c.Signals[i].Evidence = sig.Evidence
				}
				if sig.Weight > c.Signals[i].Weight {
					c.Signals[i].Weight = sig.Weight
				}
				merged = true
				break
			}
		}
		if !merged {
			sig.Turn = c.Turns
			c.Signals = append(c.Signals, sig)
		}
	}

	c.Profile.Merge(ext.Profile)

	if ext.TeamSize != nil {
		c.TeamSize = ext.TeamSize
	}

	// Counters keep the strongest single-turn observation, so re-applying
	// an identical turn never moves the feature vector.
	if ext.UrgencyCount > c.UrgencyCount {
		c.UrgencyCount = ext.UrgencyCount
	}
	if ext.PricingQuestions > c.PricingQuestions {
		c.PricingQuestions = ext.PricingQuestions
	}
	if ext.FeatureQuestions > c.FeatureQuestions {
		c.FeatureQuestions = ext.FeatureQuestions
	}
	if ext.IntegrationQuestions > c.IntegrationQuestions {
		c.IntegrationQuestions = ext.IntegrationQuestions
	}

	if behavioral != nil {
		c.Behavioral = *behavioral
		c.BehavioralSeen = true
	}

	c.Vector = s.recompute(c)
	return copyConversation(c)
}

// Get returns a copy of the current state, or false for an unknown id.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		if arch, found := s.archive.Get(id); found {
			return copyConversation(arch), true
		}
		return Conversation{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return copyConversation(sl.conv), true
}

// End removes the conversation from the active set and archives it.
// Ending an unknown conversation returns false.
func (s *Store) End(id string) (Conversation, bool) {
	s.mu.Lock()
	sl, ok := s.slots[id]
	if ok {
		delete(s.slots, id)
	}
	s.mu.Unlock()
	if !ok {
		return Conversation{}, false
	}

	// Archive an independent copy: a late Apply still holding the slot must
	// not be able to mutate archived state.
	sl.mu.Lock()
	final := copyConversation(sl.conv)
	archived := copyConversation(sl.conv)
	sl.mu.Unlock()

	s.archive.Add(id, &archived)
	s.logger.Info("conversation archived", "conversation_id", id, "turns", final.Turns)
	return final, true
}

// ActiveCount returns the number of live conversations.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// recompute rebuilds the feature vector deterministically from the full
// accumulated signal set plus the latest behavioral and demographic scalars.
// Feature names come from the schema, so Set never fails here.
func (s *Store) recompute(c *Conversation) feature.Vector {
	v := feature.NewVector()

	for _, sig := range c.Signals {
		_ = v.SetBool(sig.Name, true)
	}

	if c.BehavioralSeen {
		_ = v.Set(feature.PagesVisited, float64(c.Behavioral.PagesVisited))
		_ = v.Set(feature.TrialUsage, c.Behavioral.TrialUsage)
		_ = v.Set(feature.EmailOpens, float64(c.Behavioral.EmailOpens))
	}

	if c.TeamSize != nil {
		_ = v.Set(feature.TeamSize, float64(*c.TeamSize))
	}
	if c.Profile.Industry != nil {
		_ = v.Set(feature.IndustryBucket, feature.IndustryBucketCode(*c.Profile.Industry))
	}
	if c.Profile.Role != nil {
		_ = v.Set(feature.RoleAuthority, signals.RoleAuthority(*c.Profile.Role))
	}

	if c.UrgencyCount > 0 {
		_ = v.Set(feature.UrgencyCount, float64(c.UrgencyCount))
	}
	if c.PricingQuestions > 0 {
		_ = v.Set(feature.PricingQuestions, float64(c.PricingQuestions))
	}
	if c.FeatureQuestions > 0 {
		_ = v.Set(feature.FeatureQuestions, float64(c.FeatureQuestions))
	}
	if c.IntegrationQuestions > 0 {
		_ = v.Set(feature.IntegrationQuestions, float64(c.IntegrationQuestions))
	}

	return v
}

func copyConversation(c *Conversation) Conversation {
	out := *c
	out.Signals = make([]signals.Signal, len(c.Signals))
	copy(out.Signals, c.Signals)
	out.Vector = c.Vector.Clone()
	if c.TeamSize != nil {
		ts := *c.TeamSize
		out.TeamSize = &ts
	}
	return out
}
