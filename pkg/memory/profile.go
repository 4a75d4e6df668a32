package memory

import (
	"strings"
	"sync"
)

// AccessFrequency buckets how often a user touches their memories.
type AccessFrequency string

const (
	FrequencyHigh   AccessFrequency = "high"
	FrequencyMedium AccessFrequency = "medium"
	FrequencyLow    AccessFrequency = "low"
)

// RetentionPreference selects how aggressively a user's memories decay.
type RetentionPreference string

const (
	RetentionAggressive   RetentionPreference = "aggressive"
	RetentionBalanced     RetentionPreference = "balanced"
	RetentionConservative RetentionPreference = "conservative"
)

// TopicRule overrides decay behavior for a single topic.
type TopicRule struct {
	// CustomDecayRate replaces the topic modifier when > 0.
	CustomDecayRate float64 `json:"custom_decay_rate"`

	// RetentionBonus is added to the retention score for this topic.
	RetentionBonus float64 `json:"retention_bonus"`

	// AccessPatternWeight scales the access-density modifier.
	AccessPatternWeight float64 `json:"access_pattern_weight"`
}

// PersonalityFactors describe a user's retention personality. All values
// are in [0, 1]. Extensions carries caller-defined factors that have no
// fixed field yet; the engine ignores keys it does not know.
type PersonalityFactors struct {
	DetailOriented float64           `json:"detail_oriented"`
	BigPicture     float64           `json:"big_picture"`
	Practical      float64           `json:"practical"`
	Extensions     map[string]string `json:"extensions,omitempty"`
}

// DecayProfile is the per-user decay tuning. Profiles are created lazily
// with defaults on first use, mutated only by explicit updates, and never
// deleted.
type DecayProfile struct {
	UserID              string               `json:"user_id"`
	AccessFrequency     AccessFrequency      `json:"access_frequency"`
	RetentionPreference RetentionPreference  `json:"retention_preference"`
	TopicRules          map[string]TopicRule `json:"topic_rules,omitempty"`
	LearningVelocity    float64              `json:"learning_velocity"`
	ExpertiseDomains    []string             `json:"expertise_domains,omitempty"`
	Personality         PersonalityFactors   `json:"personality"`
}

// DefaultProfile returns the profile used for users who have never been
// tuned: medium access frequency, balanced retention, midpoint personality.
func DefaultProfile(userID string) *DecayProfile {
	return &DecayProfile{
		UserID:              userID,
		AccessFrequency:     FrequencyMedium,
		RetentionPreference: RetentionBalanced,
		LearningVelocity:    0.5,
		Personality: PersonalityFactors{
			DetailOriented: 0.5,
			BigPicture:     0.5,
			Practical:      0.5,
		},
	}
}

// HasExpertise reports whether topic is one of the user's expertise
// domains. Comparison is case-insensitive.
func (p *DecayProfile) HasExpertise(topic string) bool {
	for _, d := range p.ExpertiseDomains {
		if strings.EqualFold(d, topic) {
			return true
		}
	}
	return false
}

// ProfileStore is a mutex-guarded in-memory cache of decay profiles.
// It is the only mutable state the decay model owns; everything else is
// passed explicitly by the caller.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*DecayProfile
}

// NewProfileStore creates an empty profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*DecayProfile),
	}
}

// Get returns the profile for userID, creating a default one on first use.
func (s *ProfileStore) Get(userID string) *DecayProfile {
	s.mu.RLock()
	p, ok := s.profiles[userID]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return p
	}
	p = DefaultProfile(userID)
	s.profiles[userID] = p
	return p
}

// Update replaces the stored profile for profile.UserID.
func (s *ProfileStore) Update(profile *DecayProfile) error {
	if profile == nil || profile.UserID == "" {
		return ErrInvalidUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

// Len returns the number of cached profiles.
func (s *ProfileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
