package memory

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("The Quick-Brown fox, and a DOG! v2_final")
	want := []string{"quick-brown", "fox", "dog", "v2_final"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}

	if got := Tokenize("a an the I x !!!"); len(got) != 0 {
		t.Fatalf("expected no tokens, got %v", got)
	}
}

func TestBuildVocabulary(t *testing.T) {
	docs := []string{
		"kubernetes helm deployment",
		"kubernetes istio mesh",
		"postgres replication",
	}
	v, err := BuildVocabulary(docs)
	if err != nil {
		t.Fatal(err)
	}

	if v.DocumentCount != 3 {
		t.Fatalf("documentCount = %d", v.DocumentCount)
	}
	if len(v.TermToID) != len(v.IDToTerm) {
		t.Fatalf("mapping size mismatch: %d vs %d", len(v.TermToID), len(v.IDToTerm))
	}

	// IDs are sequential in first-seen order.
	if v.TermToID["kubernetes"] != 0 || v.IDToTerm[0] != "kubernetes" {
		t.Fatalf("first term should get ID 0: %v", v.TermToID)
	}

	kID := v.TermToID["kubernetes"]
	if v.DocumentFrequency[kID] != 2 {
		t.Fatalf("df(kubernetes) = %d, want 2", v.DocumentFrequency[kID])
	}
	if v.AverageDocLength != 8.0/3.0 {
		t.Fatalf("avgDocLength = %v", v.AverageDocLength)
	}
}

func TestBuildVocabulary_EmptyCorpus(t *testing.T) {
	if _, err := BuildVocabulary(nil); err != ErrEmptyCorpus {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestScoreDocument(t *testing.T) {
	v, err := BuildVocabulary([]string{
		"kubernetes helm deployment",
		"kubernetes istio mesh",
		"postgres replication streaming",
	})
	if err != nil {
		t.Fatal(err)
	}
	s := NewBM25Scorer()

	vec, err := s.ScoreDocument("kubernetes helm upgrade", v)
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected 2 scored terms, got %v", vec)
	}
	for id, score := range vec {
		if score <= 0 {
			t.Fatalf("non-positive score for term %d: %v", id, score)
		}
	}

	// Rarer terms score higher than common ones.
	helm := vec[v.TermToID["helm"]]
	k8s := vec[v.TermToID["kubernetes"]]
	if helm <= k8s {
		t.Fatalf("rare term helm (%v) should outscore kubernetes (%v)", helm, k8s)
	}
}

func TestScoreDocument_UnrelatedVocabulary(t *testing.T) {
	v, err := BuildVocabulary([]string{"pasta carbonara recipe", "sourdough bread baking"})
	if err != nil {
		t.Fatal(err)
	}
	vec, err := NewBM25Scorer().ScoreDocument("kubernetes cluster autoscaling", v)
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 0 {
		t.Fatalf("expected empty vector, got %v", vec)
	}
}

func TestScoreDocument_NilVocabulary(t *testing.T) {
	if _, err := NewBM25Scorer().ScoreDocument("text", nil); err != ErrNilVocabulary {
		t.Fatalf("err = %v, want ErrNilVocabulary", err)
	}
}

func TestNewBM25ScorerWith(t *testing.T) {
	docs := []string{
		"kubernetes cluster autoscaling",
		"postgres tuning guide covering busy database administrators",
	}
	v, err := BuildVocabulary(docs)
	if err != nil {
		t.Fatalf("BuildVocabulary() error = %v", err)
	}

	def, err := NewBM25Scorer().ScoreDocument(docs[0], v)
	if err != nil {
		t.Fatalf("ScoreDocument() error = %v", err)
	}

	// Zero-valued params fall back to the standard tuning.
	fromZero, err := NewBM25ScorerWith(BM25Params{}).ScoreDocument(docs[0], v)
	if err != nil {
		t.Fatalf("ScoreDocument() error = %v", err)
	}
	if !reflect.DeepEqual(def, fromZero) {
		t.Errorf("zero params vector = %v, want default %v", fromZero, def)
	}

	// Weaker length normalization changes scores for off-average docs.
	custom, err := NewBM25ScorerWith(BM25Params{K1: 1.2, B: 0.2}).ScoreDocument(docs[0], v)
	if err != nil {
		t.Fatalf("ScoreDocument() error = %v", err)
	}
	if reflect.DeepEqual(def, custom) {
		t.Errorf("custom b produced the default vector: %v", custom)
	}
}
