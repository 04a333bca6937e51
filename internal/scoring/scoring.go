package scoring

import "personality-quiz-service/internal/domain"

// AddFacetScore returns a copy of scores with delta folded into facet.
// Accumulation is additive; the input map is never mutated.
func AddFacetScore(scores domain.FacetScores, facet string, delta int) domain.FacetScores {
	out := make(domain.FacetScores, len(scores)+1)
	for k, v := range scores {
		out[k] = v
	}
	out[facet] += delta
	return out
}

// TotalScore sums all facet totals.
func TotalScore(scores domain.FacetScores) int {
	total := 0
	for _, v := range scores {
		total += v
	}
	return total
}

// Aggregator derives domain aggregates from facet scores using a static
// facet->domain table.
type Aggregator struct {
	facetDomains map[string]string
}

// NewAggregator builds an aggregator over the given facet->domain table.
// A nil or empty table falls back to the standard Big Five grouping.
func NewAggregator(facetDomains map[string]string) *Aggregator {
	if len(facetDomains) == 0 {
		facetDomains = DefaultFacetDomains()
	}
	return &Aggregator{facetDomains: facetDomains}
}

// ComputeDomainScores maps every known facet into its domain bucket and
// sums the totals. Facets absent from the table are ignored.
func (a *Aggregator) ComputeDomainScores(facets domain.FacetScores) domain.DomainScores {
	out := domain.DomainScores{}
	for facet, score := range facets {
		dom, ok := a.facetDomains[facet]
		if !ok {
			continue
		}
		out[dom] += score
	}
	return out
}

// DefaultFacetDomains is the IPIP-NEO Big Five grouping: six facets per domain.
func DefaultFacetDomains() map[string]string {
	return map[string]string{
		"anxiety":            "neuroticism",
		"anger":              "neuroticism",
		"depression":         "neuroticism",
		"self-consciousness": "neuroticism",
		"immoderation":       "neuroticism",
		"vulnerability":      "neuroticism",

		"friendliness":       "extraversion",
		"gregariousness":     "extraversion",
		"assertiveness":      "extraversion",
		"activity-level":     "extraversion",
		"excitement-seeking": "extraversion",
		"cheerfulness":       "extraversion",

		"imagination":        "openness",
		"artistic-interests": "openness",
		"emotionality":       "openness",
		"adventurousness":    "openness",
		"intellect":          "openness",
		"liberalism":         "openness",

		"trust":       "agreeableness",
		"morality":    "agreeableness",
		"altruism":    "agreeableness",
		"cooperation": "agreeableness",
		"modesty":     "agreeableness",
		"sympathy":    "agreeableness",

		"self-efficacy":        "conscientiousness",
		"orderliness":          "conscientiousness",
		"dutifulness":          "conscientiousness",
		"achievement-striving": "conscientiousness",
		"self-discipline":      "conscientiousness",
		"cautiousness":         "conscientiousness",
	}
}
