package domain

// MatchedPair records one label claimed by one product during a
// reconciliation pass.
type MatchedPair struct {
	ProductID string
	LabelID   string
	Score     float64
}

// Suggestion is one ranked near-miss label for an unmatched product.
type Suggestion struct {
	Label Label
	Score float64
}

// MatchResult is the outcome of one reconciliation pass. It is
// returned to the caller, never persisted as a whole; only the pairs
// are written back as conditional per-record updates.
type MatchResult struct {
	Pairs             []MatchedPair
	UnmatchedProducts []Product
	UnmatchedLabels   []Label
	Suggestions       map[string][]Suggestion
}
