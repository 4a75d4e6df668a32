package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ClusterParams tunes the clustering pipeline. The split (seed similarity)
// and merge thresholds are intentionally independent knobs: changing
// either changes clustering granularity, so they are never unified.
type ClusterParams struct {
	// MinClusterSize is the smallest cluster that survives filtering.
	MinClusterSize int

	// SimilarityThreshold is the seed-similarity cut for greedy splitting.
	SimilarityThreshold float64

	// MergeThreshold is the cluster-level similarity cut for merging.
	MergeThreshold float64

	// CoherenceThreshold is the minimum mean pairwise similarity a cluster
	// needs to survive filtering.
	CoherenceThreshold float64

	// MaxClusters caps how many clusters greedy splitting may produce per
	// topic group; overflow items join the last cluster.
	MaxClusters int

	// AttachThreshold is the representative similarity needed for
	// incremental placement into an existing cluster.
	AttachThreshold float64

	// Deterministic pre-sorts input by memory ID. Greedy clustering is
	// stable only for a given input order; tests use this for
	// reproducibility.
	Deterministic bool
}

// DefaultClusterParams returns the standard tuning.
func DefaultClusterParams() ClusterParams {
	return ClusterParams{
		MinClusterSize:      2,
		SimilarityThreshold: 0.4,
		MergeThreshold:      0.6,
		CoherenceThreshold:  0.6,
		MaxClusters:         20,
		AttachThreshold:     0.7,
	}
}

// ClusterEngine groups memories into topic-labeled clusters by entity
// overlap. It holds no mutable state and is safe for concurrent use.
type ClusterEngine struct {
	params ClusterParams
}

// NewClusterEngine creates a clustering engine.
func NewClusterEngine(params ClusterParams) *ClusterEngine {
	if params.MinClusterSize <= 0 {
		params.MinClusterSize = 2
	}
	if params.MaxClusters <= 0 {
		params.MaxClusters = 20
	}
	if params.AttachThreshold <= 0 {
		params.AttachThreshold = 0.7
	}
	return &ClusterEngine{params: params}
}

// Jaccard returns |A∩B| / |A∪B| over lower-cased entity sets, and 0 if
// either set is empty. It is symmetric.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, e := range a {
		setA[strings.ToLower(e)] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, e := range b {
		setB[strings.ToLower(e)] = struct{}{}
	}

	intersection := 0
	for e := range setA {
		if _, ok := setB[e]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// ClusterMemories runs the full pipeline: topic grouping, greedy
// entity-similarity refinement, cluster merging, and size/coherence
// filtering. Inputs smaller than MinClusterSize yield an empty result.
// Output is order-dependent unless Deterministic is set.
func (e *ClusterEngine) ClusterMemories(items []*MemoryItem) ClusteringResult {
	result := make(ClusteringResult)
	if len(items) < e.params.MinClusterSize {
		return result
	}

	if e.params.Deterministic {
		sorted := make([]*MemoryItem, len(items))
		copy(sorted, items)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		items = sorted
	}

	// Stage 1: partition by topic.
	groups := make(map[string][]*MemoryItem)
	var topics []string
	for _, item := range items {
		topic := item.Topic
		if topic == "" {
			topic = "general"
		}
		if _, ok := groups[topic]; !ok {
			topics = append(topics, topic)
		}
		groups[topic] = append(groups[topic], item)
	}

	// Stage 2: refine large topic groups by entity similarity.
	for _, topic := range topics {
		group := groups[topic]
		if len(group) > 3 {
			for label, members := range e.refineGroup(topic, group) {
				result[label] = members
			}
		} else {
			result[topic] = group
		}
	}

	result = e.mergeClusters(result)
	return e.filterClusters(result)
}

// refineGroup greedily re-splits a topic group: pop an unassigned item as
// a seed, pull in everything whose similarity to the seed clears the
// threshold, repeat. Once MaxClusters is reached the remainder joins the
// last cluster.
func (e *ClusterEngine) refineGroup(topic string, group []*MemoryItem) map[string][]*MemoryItem {
	clusters := make(map[string][]*MemoryItem)
	remaining := make([]*MemoryItem, len(group))
	copy(remaining, group)

	var lastLabel string
	n := 0
	for len(remaining) > 0 {
		if n >= e.params.MaxClusters {
			clusters[lastLabel] = append(clusters[lastLabel], remaining...)
			break
		}

		seed := remaining[0]
		cluster := []*MemoryItem{seed}
		rest := remaining[1:]
		var unmatched []*MemoryItem
		for _, item := range rest {
			if Jaccard(seed.Entities, item.Entities) > e.params.SimilarityThreshold {
				cluster = append(cluster, item)
			} else {
				unmatched = append(unmatched, item)
			}
		}

		n++
		label := topic
		if n > 1 {
			label = fmt.Sprintf("%s-%d", topic, n)
		}
		clusters[label] = cluster
		lastLabel = label
		remaining = unmatched
	}

	return clusters
}

// clusterSimilarity samples up to 3x3 cross-pairs and averages their
// entity similarity.
func clusterSimilarity(a, b []*MemoryItem) float64 {
	const sample = 3
	na, nb := len(a), len(b)
	if na > sample {
		na = sample
	}
	if nb > sample {
		nb = sample
	}
	if na == 0 || nb == 0 {
		return 0
	}

	total := 0.0
	for i := 0; i < na; i++ {
		for j := 0; j < nb; j++ {
			total += Jaccard(a[i].Entities, b[j].Entities)
		}
	}
	return total / float64(na*nb)
}

// mergeClusters collapses near-duplicate clusters, keeping the shorter
// (more general) topic label for the merged cluster.
func (e *ClusterEngine) mergeClusters(clusters ClusteringResult) ClusteringResult {
	labels := make([]string, 0, len(clusters))
	for label := range clusters {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	merged := true
	for merged {
		merged = false
	outer:
		for i := 0; i < len(labels); i++ {
			for j := i + 1; j < len(labels); j++ {
				a, b := labels[i], labels[j]
				if clusterSimilarity(clusters[a], clusters[b]) > e.params.MergeThreshold {
					keep, drop := a, b
					if len(b) < len(a) {
						keep, drop = b, a
					}
					clusters[keep] = append(clusters[keep], clusters[drop]...)
					delete(clusters, drop)
					labels = append(labels[:0:0], labels...)
					labels = removeLabel(labels, drop)
					merged = true
					break outer
				}
			}
		}
	}

	return clusters
}

func removeLabel(labels []string, target string) []string {
	out := labels[:0]
	for _, l := range labels {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}

// coherence is the mean pairwise entity similarity across all pairs in a
// cluster. Single-member clusters are maximally coherent.
func coherence(items []*MemoryItem) float64 {
	if len(items) < 2 {
		return 1.0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			total += Jaccard(items[i].Entities, items[j].Entities)
			pairs++
		}
	}
	return total / float64(pairs)
}

// filterClusters drops clusters below the minimum size or coherence.
func (e *ClusterEngine) filterClusters(clusters ClusteringResult) ClusteringResult {
	out := make(ClusteringResult, len(clusters))
	for label, items := range clusters {
		if len(items) < e.params.MinClusterSize {
			continue
		}
		if coherence(items) < e.params.CoherenceThreshold {
			continue
		}
		out[label] = items
	}
	return out
}

// representative returns the member with the highest total entity
// similarity to every other member.
func representative(items []*MemoryItem) *MemoryItem {
	if len(items) == 0 {
		return nil
	}
	best := items[0]
	bestScore := -1.0
	for i, candidate := range items {
		score := 0.0
		for j, other := range items {
			if i == j {
				continue
			}
			score += Jaccard(candidate.Entities, other.Entities)
		}
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	return best
}

// AddMemory places a single new memory into an existing clustering without
// re-running the pipeline: it joins the cluster whose representative it
// resembles most (above AttachThreshold), otherwise a cluster keyed by its
// own topic. Amortized cost is linear in the number of clusters, not in
// the number of memories.
func (e *ClusterEngine) AddMemory(clusters ClusteringResult, item *MemoryItem) ClusteringResult {
	if clusters == nil {
		clusters = make(ClusteringResult)
	}
	if item == nil {
		return clusters
	}

	bestLabel := ""
	bestScore := 0.0
	for label, members := range clusters {
		rep := representative(members)
		if rep == nil {
			continue
		}
		if score := Jaccard(rep.Entities, item.Entities); score > bestScore {
			bestScore = score
			bestLabel = label
		}
	}

	if bestLabel != "" && bestScore > e.params.AttachThreshold {
		clusters[bestLabel] = append(clusters[bestLabel], item)
		return clusters
	}

	topic := item.Topic
	if topic == "" {
		topic = "general"
	}
	clusters[topic] = append(clusters[topic], item)
	return clusters
}

// Recommendation suggests a cluster topic for a memory, with the reasons
// behind the score.
type Recommendation struct {
	Topic   string   `json:"topic"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Recommend scores every cluster against the memory and returns the
// topics scoring above 0.3, best first. Reasons always name at least one
// of: topic match, entity overlap (with the overlapping terms), or
// temporal proximity to a cluster member.
func (e *ClusterEngine) Recommend(item *MemoryItem, clusters ClusteringResult) []Recommendation {
	if item == nil {
		return nil
	}

	var recs []Recommendation
	for label, members := range clusters {
		score := 0.0
		var reasons []string

		if item.Topic != "" && strings.EqualFold(item.Topic, label) {
			score += 0.4
			reasons = append(reasons, "topic match: "+label)
		}

		if overlap := sharedEntities(item, members); len(overlap) > 0 {
			sim := 0.0
			for _, m := range members {
				sim += Jaccard(item.Entities, m.Entities)
			}
			sim /= float64(len(members))
			score += 0.5 * sim
			reasons = append(reasons, "entity overlap: "+strings.Join(overlap, ", "))
		}

		if withinDay(item, members) {
			score += 0.1
			reasons = append(reasons, "temporal proximity: created within 24h of cluster activity")
		}

		if score > 0.3 {
			recs = append(recs, Recommendation{Topic: label, Score: score, Reasons: reasons})
		}
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Topic < recs[j].Topic
	})
	return recs
}

// sharedEntities returns the distinct lower-cased entities the item shares
// with any cluster member, sorted for stable output.
func sharedEntities(item *MemoryItem, members []*MemoryItem) []string {
	own := make(map[string]struct{}, len(item.Entities))
	for _, e := range item.Entities {
		own[strings.ToLower(e)] = struct{}{}
	}

	shared := make(map[string]struct{})
	for _, m := range members {
		for _, e := range m.Entities {
			le := strings.ToLower(e)
			if _, ok := own[le]; ok {
				shared[le] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(shared))
	for e := range shared {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func withinDay(item *MemoryItem, members []*MemoryItem) bool {
	for _, m := range members {
		d := item.CreatedAt.Sub(m.CreatedAt)
		if d < 0 {
			d = -d
		}
		if d < 24*time.Hour {
			return true
		}
	}
	return false
}
