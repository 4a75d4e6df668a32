package memory

import (
	"math"
	"strings"
)

// stopwords are common English function words dropped at tokenization.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {},
}

// Tokenize lower-cases text, strips everything outside [a-z0-9_-] and
// whitespace, splits on whitespace, and drops single-character tokens and
// stopwords.
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r':
			b.WriteRune(' ')
		default:
			// stripped
		}
	}

	fields := strings.Fields(b.String())
	tokens := fields[:0]
	for _, t := range fields {
		if len(t) <= 1 {
			continue
		}
		if _, ok := stopwords[t]; ok {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// Vocabulary is a corpus snapshot for BM25 scoring. It is built once and
// immutable until rebuilt; scoring against a stale vocabulary silently
// under- or over-weights new terms, which callers accept as degradation
// rather than an error.
type Vocabulary struct {
	// TermToID maps terms to their sequential integer IDs.
	TermToID map[string]int `json:"term_to_id"`

	// IDToTerm is the inverse mapping, indexed by term ID.
	IDToTerm []string `json:"id_to_term"`

	// DocumentCount is the number of documents in the corpus.
	DocumentCount int `json:"document_count"`

	// DocumentFrequency counts documents containing each term at least once.
	DocumentFrequency map[int]int `json:"document_frequency"`

	// AverageDocLength is the mean token count across documents.
	AverageDocLength float64 `json:"average_doc_length"`
}

// BuildVocabulary scans the corpus once, assigning sequential term IDs in
// first-seen order.
func BuildVocabulary(documents []string) (*Vocabulary, error) {
	if len(documents) == 0 {
		return nil, ErrEmptyCorpus
	}

	v := &Vocabulary{
		TermToID:          make(map[string]int),
		DocumentFrequency: make(map[int]int),
		DocumentCount:     len(documents),
	}

	totalTokens := 0
	for _, doc := range documents {
		tokens := Tokenize(doc)
		totalTokens += len(tokens)

		seen := make(map[int]struct{}, len(tokens))
		for _, t := range tokens {
			id, ok := v.TermToID[t]
			if !ok {
				id = len(v.IDToTerm)
				v.TermToID[t] = id
				v.IDToTerm = append(v.IDToTerm, t)
			}
			seen[id] = struct{}{}
		}
		for id := range seen {
			v.DocumentFrequency[id]++
		}
	}
	v.AverageDocLength = float64(totalTokens) / float64(len(documents))

	return v, nil
}

// BM25Params tunes the Okapi BM25 scorer.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params returns the standard k1=1.2, b=0.75 tuning.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// BM25Scorer scores text against a vocabulary using Okapi BM25.
type BM25Scorer struct {
	k1 float64
	b  float64
}

// NewBM25Scorer returns a scorer with the standard tuning.
func NewBM25Scorer() *BM25Scorer {
	return NewBM25ScorerWith(DefaultBM25Params())
}

// NewBM25ScorerWith returns a scorer with custom tuning. Non-positive
// parameters fall back to the defaults.
func NewBM25ScorerWith(p BM25Params) *BM25Scorer {
	d := DefaultBM25Params()
	if p.K1 <= 0 {
		p.K1 = d.K1
	}
	if p.B <= 0 {
		p.B = d.B
	}
	return &BM25Scorer{k1: p.K1, b: p.B}
}

// ScoreDocument produces the BM25 sparse vector for text. Terms absent
// from the vocabulary are silently ignored, and only strictly positive
// scores are retained.
func (s *BM25Scorer) ScoreDocument(text string, vocab *Vocabulary) (SparseVector, error) {
	if vocab == nil {
		return nil, ErrNilVocabulary
	}

	tokens := Tokenize(text)
	docLen := float64(len(tokens))

	tf := make(map[int]float64, len(tokens))
	for _, t := range tokens {
		if id, ok := vocab.TermToID[t]; ok {
			tf[id]++
		}
	}

	avgdl := vocab.AverageDocLength
	if avgdl <= 0 {
		avgdl = 1
	}
	n := float64(vocab.DocumentCount)

	vec := make(SparseVector, len(tf))
	for id, freq := range tf {
		df := float64(vocab.DocumentFrequency[id])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		score := idf * freq * (s.k1 + 1) / (freq + s.k1*(1-s.b+s.b*docLen/avgdl))
		if score > 0 {
			vec[id] = score
		}
	}
	return vec, nil
}
