package memory

import (
	"time"
)

// MemoryItem is a single conversational memory as seen by the clustering
// and decay subsystems. Identity is immutable; content and entities may be
// corrected by the caller, but ID is stable for the item's lifetime.
type MemoryItem struct {
	// ID is the unique identifier for this memory.
	ID string `json:"id"`

	// Content is the raw text content of the memory.
	Content string `json:"content"`

	// Entities are the named entities extracted from the content.
	// Compared case-insensitively by the clustering engine.
	Entities []string `json:"entities,omitempty"`

	// Topic is the topic label assigned to this memory.
	// Empty topics are treated as "general".
	Topic string `json:"topic,omitempty"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Stage is the lifecycle stage of a memory, derived from its current
// importance against the configured thresholds.
type Stage string

const (
	// StageActive marks memories above the importance threshold.
	StageActive Stage = "active"

	// StageFading marks memories between the archive and importance thresholds.
	StageFading Stage = "fading"

	// StageArchived marks memories with positive but sub-archive importance.
	StageArchived Stage = "archived"

	// StageForgotten marks memories whose importance has reached zero.
	StageForgotten Stage = "forgotten"
)

// AccessType classifies how a memory was accessed. Different access types
// grant different importance boosts.
type AccessType string

const (
	AccessView      AccessType = "view"
	AccessReference AccessType = "reference"
	AccessSearch    AccessType = "search"
	AccessEdit      AccessType = "edit"
)

// DecayFactors records the individual multipliers that produced an
// effective decay rate, so callers can explain a lifecycle decision.
type DecayFactors struct {
	// Temporal is the time-since-access ramp, in [1.0, 2.0].
	Temporal float64 `json:"temporal"`

	// AccessBased is the access-density suppression, floored at 0.2.
	AccessBased float64 `json:"access_based"`

	// TopicRelevance is the topic rule or expertise multiplier.
	TopicRelevance float64 `json:"topic_relevance"`

	// UserProfile is the personality/learning-velocity multiplier.
	UserProfile float64 `json:"user_profile"`
}

// MemoryLifecycle is the recomputed decay state of a memory. It is derived
// data: the caller persists it, the engine never stores it durably.
type MemoryLifecycle struct {
	// MemoryID identifies the memory this lifecycle describes.
	MemoryID string `json:"memory_id"`

	// CurrentImportance is the post-decay importance in [0, 1].
	// Monotonically non-increasing between access-driven boosts.
	CurrentImportance float64 `json:"current_importance"`

	// OriginalImportance is the importance the decay pass started from.
	OriginalImportance float64 `json:"original_importance"`

	// DecayRate is the effective decay rate applied this pass.
	DecayRate float64 `json:"decay_rate"`

	// LastDecayUpdate is when this lifecycle was computed.
	LastDecayUpdate time.Time `json:"last_decay_update"`

	// Stage is the lifecycle stage derived from CurrentImportance.
	Stage Stage `json:"stage"`

	// DecayFactors are the multipliers behind DecayRate.
	DecayFactors DecayFactors `json:"decay_factors"`

	// RetentionScore is the combined retention score in [0, 1].
	RetentionScore float64 `json:"retention_score"`

	// NextDecayCheck is when this memory should be re-evaluated.
	NextDecayCheck time.Time `json:"next_decay_check"`
}

// ClusteringResult maps topic labels to the memories grouped under them.
// Every input memory appears in exactly one cluster unless its cluster was
// dropped by the size or coherence filters; dropped memories are
// unclustered, not lost, since durable storage remains the source of truth.
type ClusteringResult map[string][]*MemoryItem

// Size returns the total number of memories across all clusters.
func (r ClusteringResult) Size() int {
	n := 0
	for _, items := range r {
		n += len(items)
	}
	return n
}
