package usecase

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

var punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Token weights: longer tokens carry more signal than short units and
// size fragments ("1л", "шт").
const (
	tokenWeightCore    = 2.0
	tokenWeightDefault = 1.0
	tokenCoreMinRunes  = 5

	weightBonus = 5.0
	brandBonus  = 5.0
	maxScore    = 100.0
)

type MatcherConfig struct {
	StrictThreshold     float64
	SuggestionThreshold float64
	SuggestionLimit     int
}

func (c MatcherConfig) normalize() MatcherConfig {
	out := c
	if out.StrictThreshold <= 0 {
		out.StrictThreshold = 70
	}
	if out.SuggestionThreshold <= 0 {
		out.SuggestionThreshold = 40
	}
	if out.SuggestionLimit <= 0 {
		out.SuggestionLimit = 3
	}
	return out
}

// Matcher reconciles receipt-derived products against scanned labels.
// Assignment is greedy in product input order: no backtracking when a
// later product would have been a better claim for a taken label. The
// tie-break is part of the contract so repeated passes over the same
// input reproduce the same pairs.
type Matcher struct {
	cfg MatcherConfig
}

func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg.normalize()}
}

func (m *Matcher) Match(products []domain.Product, labels []domain.Label) *domain.MatchResult {
	result := &domain.MatchResult{
		Suggestions: make(map[string][]domain.Suggestion),
	}

	// Labels already claimed in a previous pass never participate.
	candidates := make([]domain.Label, 0, len(labels))
	for _, label := range labels {
		if label.MatchedProductID == "" {
			candidates = append(candidates, label)
		}
	}

	used := make([]bool, len(candidates))
	for _, product := range products {
		if !product.Unmatched() {
			continue
		}
		bestIdx := -1
		bestScore := 0.0
		for i, label := range candidates {
			if used[i] {
				continue
			}
			score := ScoreMatch(product, label)
			if score >= m.cfg.StrictThreshold && score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			result.UnmatchedProducts = append(result.UnmatchedProducts, product)
			continue
		}

		used[bestIdx] = true
		result.Pairs = append(result.Pairs, domain.MatchedPair{
			ProductID: product.ID,
			LabelID:   candidates[bestIdx].ID,
			Score:     bestScore,
		})
	}

	for i, label := range candidates {
		if !used[i] {
			result.UnmatchedLabels = append(result.UnmatchedLabels, label)
		}
	}

	for _, product := range result.UnmatchedProducts {
		suggestions := m.suggest(product, result.UnmatchedLabels)
		if len(suggestions) > 0 {
			result.Suggestions[product.ID] = suggestions
		}
	}

	return result
}

func (m *Matcher) suggest(product domain.Product, labels []domain.Label) []domain.Suggestion {
	var out []domain.Suggestion
	for _, label := range labels {
		score := ScoreMatch(product, label)
		if score >= m.cfg.SuggestionThreshold {
			out = append(out, domain.Suggestion{Label: label, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > m.cfg.SuggestionLimit {
		out = out[:m.cfg.SuggestionLimit]
	}
	return out
}

// ScoreMatch computes the 0-100 similarity between a product name and
// a label. Base score blends label-token coverage (dominant: the label
// is the shorter, cleaner side), product-token coverage and weighted
// Jaccard; weight/brand substring bonuses are additive, capped at 100.
func ScoreMatch(product domain.Product, label domain.Label) float64 {
	labelTokens := tokenize(label.Name)
	productTokens := tokenize(product.Name)
	if len(labelTokens) == 0 || len(productTokens) == 0 {
		return 0
	}

	labelCoverage := weightedCoverage(labelTokens, productTokens)
	productCoverage := weightedCoverage(productTokens, labelTokens)
	jaccard := weightedJaccard(labelTokens, productTokens)

	score := (labelCoverage*0.60 + productCoverage*0.20 + jaccard*0.20) * 100

	productLower := strings.ToLower(product.Name)
	if w := strings.TrimSpace(strings.ToLower(label.Weight)); w != "" && strings.Contains(productLower, w) {
		score += weightBonus
	}
	if b := strings.TrimSpace(strings.ToLower(label.Brand)); b != "" && strings.Contains(productLower, b) {
		score += brandBonus
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

// tokenize lowercases, strips punctuation and drops single-rune
// tokens. Pure numbers stay out; size fragments like "1л" stay in with
// default weight.
func tokenize(s string) []string {
	cleaned := punctuationPattern.ReplaceAllString(strings.ToLower(s), " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if len([]rune(word)) <= 1 {
			continue
		}
		if isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func tokenWeight(token string) float64 {
	if len([]rune(token)) >= tokenCoreMinRunes {
		return tokenWeightCore
	}
	return tokenWeightDefault
}

// weightedCoverage is the weight share of `from` tokens also present
// in `in`.
func weightedCoverage(from, in []string) float64 {
	set := make(map[string]bool, len(in))
	for _, t := range in {
		set[t] = true
	}

	var total, matched float64
	seen := make(map[string]bool, len(from))
	for _, t := range from {
		if seen[t] {
			continue
		}
		seen[t] = true
		w := tokenWeight(t)
		total += w
		if set[t] {
			matched += w
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

func weightedJaccard(a, b []string) float64 {
	union := make(map[string]bool, len(a)+len(b))
	inA := make(map[string]bool, len(a))
	for _, t := range a {
		union[t] = true
		inA[t] = true
	}
	var intersection float64
	for _, t := range b {
		if !union[t] {
			union[t] = true
		}
	}
	seenB := make(map[string]bool, len(b))
	for _, t := range b {
		if inA[t] && !seenB[t] {
			intersection += tokenWeight(t)
		}
		seenB[t] = true
	}

	var total float64
	for t := range union {
		total += tokenWeight(t)
	}
	if total == 0 {
		return 0
	}
	return intersection / total
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
