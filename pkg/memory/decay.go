package memory

import (
	"math"
	"time"
)

// DecayParams tunes the multi-factor decay model.
type DecayParams struct {
	// BaseDecayRate is the per-pass decay rate before modifiers.
	BaseDecayRate float64

	// AccessBoostFactor scales how strongly access density suppresses decay.
	AccessBoostFactor float64

	// ImportanceThreshold separates active from fading memories.
	ImportanceThreshold float64

	// ArchiveThreshold separates fading from archived memories.
	ArchiveThreshold float64

	// CheckInterval is the fixed re-evaluation cadence.
	CheckInterval time.Duration
}

// DefaultDecayParams returns the standard tuning.
func DefaultDecayParams() DecayParams {
	return DecayParams{
		BaseDecayRate:       0.05,
		AccessBoostFactor:   0.5,
		ImportanceThreshold: 0.3,
		ArchiveThreshold:    0.1,
		CheckInterval:       24 * time.Hour,
	}
}

// DecayModel computes memory lifecycles from importance, access history,
// and the owning user's decay profile. The model is stateless apart from
// the profile store; it is safe for concurrent use.
type DecayModel struct {
	params   DecayParams
	profiles *ProfileStore

	// now is swapped out by tests that need a fixed clock.
	now func() time.Time
}

// NewDecayModel creates a decay model over the given profile store.
func NewDecayModel(params DecayParams, profiles *ProfileStore) *DecayModel {
	if profiles == nil {
		profiles = NewProfileStore()
	}
	if params.BaseDecayRate <= 0 {
		params.BaseDecayRate = 0.05
	}
	if params.CheckInterval <= 0 {
		params.CheckInterval = 24 * time.Hour
	}
	return &DecayModel{
		params:   params,
		profiles: profiles,
		now:      time.Now,
	}
}

// Profiles returns the underlying profile store.
func (m *DecayModel) Profiles() *ProfileStore {
	return m.profiles
}

// ComputeLifecycle recomputes the lifecycle of a single memory. It never
// fails: on any internal error it returns a conservative fallback with no
// decay applied, because losing a memory to a scoring bug is worse than
// scoring it stale.
func (m *DecayModel) ComputeLifecycle(memoryID string, currentImportance float64, lastAccessedAt time.Time, accessCount int, topic, userID string) (lc *MemoryLifecycle) {
	now := m.now()

	defer func() {
		if r := recover(); r != nil {
			lc = m.fallbackLifecycle(memoryID, currentImportance, now)
		}
	}()

	currentImportance = clamp01(currentImportance)

	daysSinceAccess := now.Sub(lastAccessedAt).Hours() / 24.0
	if daysSinceAccess < 0 {
		daysSinceAccess = 0
	}

	profile := m.profiles.Get(userID)

	// Linear ramp over 30 days of inactivity, capped at 2x.
	temporal := math.Min(2.0, 1.0+daysSinceAccess/30.0)

	// Higher access density suppresses decay; never below 0.2 so decay is
	// slowed but not eliminated.
	density := float64(accessCount) / math.Max(1.0, daysSinceAccess)
	accessMod := math.Max(0.2, 1.0-density*m.params.AccessBoostFactor)

	topicMod := m.topicModifier(profile, topic, &accessMod)

	profileMod := (0.8 + 0.4*profile.Personality.DetailOriented) *
		(0.9 + 0.2*profile.Personality.Practical) *
		(0.7 + 0.6*profile.LearningVelocity)

	effectiveRate := m.params.BaseDecayRate * temporal * accessMod * topicMod * profileMod

	newImportance := math.Max(0, currentImportance-currentImportance*effectiveRate)

	retention := newImportance +
		math.Min(0.3, float64(accessCount)*0.05) -
		math.Min(0.2, daysSinceAccess*0.01)
	if profile.Personality.DetailOriented > 0.7 {
		retention += 0.1
	}
	if rule, ok := profile.TopicRules[topic]; ok {
		retention += rule.RetentionBonus
	}

	return &MemoryLifecycle{
		MemoryID:           memoryID,
		CurrentImportance:  newImportance,
		OriginalImportance: currentImportance,
		DecayRate:          effectiveRate,
		LastDecayUpdate:    now,
		Stage:              m.stageFor(newImportance),
		DecayFactors: DecayFactors{
			Temporal:       temporal,
			AccessBased:    accessMod,
			TopicRelevance: topicMod,
			UserProfile:    profileMod,
		},
		RetentionScore: clamp01(retention),
		NextDecayCheck: now.Add(m.params.CheckInterval),
	}
}

// topicModifier resolves the topic multiplier: an explicit topic rule wins,
// then expertise domains at 0.7, then the neutral 1.0. A rule's access
// pattern weight rescales the already-computed access modifier.
func (m *DecayModel) topicModifier(profile *DecayProfile, topic string, accessMod *float64) float64 {
	if rule, ok := profile.TopicRules[topic]; ok {
		if rule.AccessPatternWeight > 0 {
			*accessMod = math.Max(0.2, *accessMod*rule.AccessPatternWeight)
		}
		if rule.CustomDecayRate > 0 {
			return rule.CustomDecayRate
		}
	}
	if profile.HasExpertise(topic) {
		return 0.7
	}
	return 1.0
}

// stageFor maps an importance value onto a lifecycle stage.
func (m *DecayModel) stageFor(importance float64) Stage {
	switch {
	case importance >= m.params.ImportanceThreshold:
		return StageActive
	case importance >= m.params.ArchiveThreshold:
		return StageFading
	case importance > 0:
		return StageArchived
	default:
		return StageForgotten
	}
}

// fallbackLifecycle is the fail-open result: no decay, active stage,
// retention pinned to the incoming importance.
func (m *DecayModel) fallbackLifecycle(memoryID string, importance float64, now time.Time) *MemoryLifecycle {
	importance = clamp01(importance)
	return &MemoryLifecycle{
		MemoryID:           memoryID,
		CurrentImportance:  importance,
		OriginalImportance: importance,
		DecayRate:          0,
		LastDecayUpdate:    now,
		Stage:              StageActive,
		DecayFactors: DecayFactors{
			Temporal:       1.0,
			AccessBased:    1.0,
			TopicRelevance: 1.0,
			UserProfile:    1.0,
		},
		RetentionScore: importance,
		NextDecayCheck: now.Add(m.params.CheckInterval),
	}
}

// accessBoosts are the base importance boosts per access type.
var accessBoosts = map[AccessType]float64{
	AccessEdit:      0.20,
	AccessReference: 0.15,
	AccessSearch:    0.10,
	AccessView:      0.05,
}

// BoostFromAccess returns the boosted importance for a memory access.
// Boosts diminish as importance approaches 1.0 and the result is clamped,
// so repeated boosts converge on but never exceed full importance. This is
// the only path that raises importance; callers must invoke it on every
// access event.
func (m *DecayModel) BoostFromAccess(currentImportance float64, accessType AccessType) float64 {
	base, ok := accessBoosts[accessType]
	if !ok {
		base = accessBoosts[AccessView]
	}
	currentImportance = clamp01(currentImportance)
	boost := base * (1.0 - currentImportance*0.5)
	return clamp01(currentImportance + boost)
}

// ComputeUserDecayRate derives a user-level decay rate from the profile:
// retention preference scales the base rate, learning velocity adds up to
// 30%, and access frequency shifts it by 20% either way. The result is
// clamped to [0.01, 0.2].
func (m *DecayModel) ComputeUserDecayRate(userID string) float64 {
	profile := m.profiles.Get(userID)
	rate := m.params.BaseDecayRate

	switch profile.RetentionPreference {
	case RetentionAggressive:
		rate *= 1.5
	case RetentionConservative:
		rate *= 0.5
	}

	rate *= 1.0 + 0.3*clamp01(profile.LearningVelocity)

	switch profile.AccessFrequency {
	case FrequencyHigh:
		rate *= 0.8
	case FrequencyLow:
		rate *= 1.2
	}

	return math.Min(0.2, math.Max(0.01, rate))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
