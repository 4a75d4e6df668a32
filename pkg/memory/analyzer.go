package memory

import "context"

// Analysis is the normalized output of content analysis: the entities and
// topic that feed clustering, plus a short summary for display.
type Analysis struct {
	Entities []string `json:"entities,omitempty"`
	Topic    string   `json:"topic,omitempty"`
	Summary  string   `json:"summary,omitempty"`
}

// TextAnalyzer extracts entities and a topic from raw text.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, text string) (Analysis, error)
}

// ImageAnalyzer extracts entities and a topic from image bytes.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (Analysis, error)
}

// FileAnalyzer extracts entities and a topic from an arbitrary file.
type FileAnalyzer interface {
	AnalyzeFile(ctx context.Context, name string, data []byte) (Analysis, error)
}

// NoopAnalyzer satisfies all analyzer capabilities with empty results.
// Deployments without multimodal analysis wire this in so fusion logic
// still runs end to end.
type NoopAnalyzer struct{}

func (NoopAnalyzer) AnalyzeText(ctx context.Context, text string) (Analysis, error) {
	return Analysis{}, nil
}

func (NoopAnalyzer) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (Analysis, error) {
	return Analysis{}, nil
}

func (NoopAnalyzer) AnalyzeFile(ctx context.Context, name string, data []byte) (Analysis, error) {
	return Analysis{}, nil
}

var (
	_ TextAnalyzer  = NoopAnalyzer{}
	_ ImageAnalyzer = NoopAnalyzer{}
	_ FileAnalyzer  = NoopAnalyzer{}
)
