package describe

// PlaceholderConfidence is a fixed score, not derived from the model. It
// stays until a provider exposes a real confidence signal.
const PlaceholderConfidence = 0.85

// ConfidenceScorer rates a generated description. Values are clamped to
// [0, 1] by the caller.
type ConfidenceScorer interface {
	Score(description string, keywords []string) float64
}

// FixedScorer always returns PlaceholderConfidence.
type FixedScorer struct{}

func (FixedScorer) Score(string, []string) float64 {
	return PlaceholderConfidence
}
