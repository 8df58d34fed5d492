package knowledge

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "are": true, "you": true, "your": true,
	"what": true, "how": true, "can": true, "does": true, "for": true,
	"with": true, "have": true, "has": true, "this": true, "that": true,
	"our": true, "any": true, "will": true, "would": true, "could": true,
	"should": true, "from": true, "about": true, "please": true, "tell": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"there": true, "was": true, "were": true, "get": true, "not": true,
}

// Words lowercases s and splits it on anything that is not a letter or digit.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms returns the distinct search terms of s: words of at least three
// characters that are not stopwords.
func Terms(s string) []string {
	seen := map[string]bool{}
	var terms []string
	for _, w := range Words(s) {
		if len([]rune(w)) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// Rank filters and orders items for q. Relevance is the number of query terms
// found as whole words in the question, doubled, plus those found in the
// answer when q.IncludeAnswers is set. Items with zero relevance are dropped.
// Ties break on confidence desc, then updatedAt desc.
func Rank(items []Item, q Query) []Item {
	terms := Terms(q.Text)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		item  Item
		score int
	}
	var matches []scored
	for _, it := range items {
		if q.ActiveOnly && !it.Active {
			continue
		}
		qWords := wordSet(it.Question)
		var aWords map[string]bool
		if q.IncludeAnswers {
			aWords = wordSet(it.Answer)
		}

		score := 0
		for _, t := range terms {
			if qWords[t] {
				score += 2
			} else if aWords[t] {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{item: it, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if q.ByConfidence && a.item.Confidence != b.item.Confidence {
			return a.item.Confidence > b.item.Confidence
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if a.item.Confidence != b.item.Confidence {
			return a.item.Confidence > b.item.Confidence
		}
		if !a.item.UpdatedAt.Equal(b.item.UpdatedAt) {
			return a.item.UpdatedAt.After(b.item.UpdatedAt)
		}
		return a.item.ID < b.item.ID
	})

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	out := make([]Item, len(matches))
	for i, m := range matches {
		out[i] = m.item
	}
	return out
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range Words(s) {
		set[w] = true
	}
	return set
}

// SortRecent orders items by updatedAt desc, then id.
func SortRecent(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID < items[j].ID
	})
}
