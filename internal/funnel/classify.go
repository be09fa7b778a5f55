package funnel

import "strings"

// Classification is the result of scoring a free-text question against the
// library's declarative keyword groups.
type Classification struct {
	Categories       []string
	RequiredPatterns []string
	DateFilter       string
	MatchedPatterns  []string
}

// Classify tokenizes the lower-cased question and scores it against the
// four keyword groups, then selects query patterns by (required ∪
// category-matched ∪ keyword-overlap), falling back to the library's
// default pattern when nothing matches.
func (l *Library) Classify(question string) Classification {
	lower := strings.ToLower(question)
	tokens := strings.Fields(lower)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = struct{}{}
	}

	matchesAny := func(group KeywordGroup) []string {
		var hits []string
		for _, kw := range group.Keywords {
			if strings.Contains(lower, kw) {
				hits = append(hits, kw)
			}
		}
		return hits
	}

	timeHits := matchesAny(l.TimePeriodGroup)
	metricHits := matchesAny(l.MetricGroup)
	granularityHits := matchesAny(l.GranularityGroup)
	filterHits := matchesAny(l.FilterGroup)

	categories := map[string]struct{}{}
	if len(metricHits) > 0 {
		categories["metric"] = struct{}{}
	}
	if len(filterHits) > 0 {
		categories["filter"] = struct{}{}
	}
	if len(timeHits) > 0 || len(granularityHits) > 0 {
		categories["funnel"] = struct{}{}
	}

	dateFilter := inferDateFilter(timeHits)

	var matched []string
	for _, pattern := range l.Patterns {
		if patternMatches(pattern, categories, lower) {
			matched = append(matched, pattern.Name)
		}
	}
	if len(matched) == 0 {
		matched = []string{l.DefaultPatternName}
	}

	catList := make([]string, 0, len(categories))
	for cat := range categories {
		catList = append(catList, cat)
	}

	return Classification{
		Categories:       catList,
		RequiredPatterns: matched,
		DateFilter:       dateFilter,
		MatchedPatterns:  matched,
	}
}

func patternMatches(pattern QueryPattern, categories map[string]struct{}, question string) bool {
	for _, category := range pattern.Categories {
		if _, ok := categories[category]; ok {
			return true
		}
	}
	for _, kw := range pattern.Keywords {
		if strings.Contains(question, kw) {
			return true
		}
	}
	return false
}

func inferDateFilter(timeHits []string) string {
	for _, hit := range timeHits {
		switch hit {
		case "trailing", "quarter":
			return "trailing_3_months"
		case "year", "ytd":
			return "prior_year_mtd"
		}
	}
	if len(timeHits) > 0 {
		return "mtd_current"
	}
	return ""
}
