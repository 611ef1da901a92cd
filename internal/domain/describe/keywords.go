package describe

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultKeywordMinLength = 4
	DefaultKeywordLimit     = 10
)

// DefaultStopWords are dropped before ranking.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "by", "from", "is", "are", "was", "were", "this", "that",
	"these", "those",
}

// KeywordExtractor ranks the words of a description by frequency.
type KeywordExtractor struct {
	MinLength int
	Limit     int
	StopWords map[string]struct{}
}

func NewKeywordExtractor(minLength, limit int) *KeywordExtractor {
	if minLength <= 0 {
		minLength = DefaultKeywordMinLength
	}
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}
	stop := make(map[string]struct{}, len(DefaultStopWords))
	for _, w := range DefaultStopWords {
		stop[w] = struct{}{}
	}
	return &KeywordExtractor{MinLength: minLength, Limit: limit, StopWords: stop}
}

// Extract lowercases text, replaces everything but letters, digits and
// underscores with spaces, drops short and stop words, then returns the most
// frequent words. Ties keep first-occurrence order.
func (k *KeywordExtractor) Extract(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	counts := make(map[string]int)
	var order []string
	for _, word := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(word) < k.MinLength {
			continue
		}
		if _, stop := k.StopWords[word]; stop {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > k.Limit {
		order = order[:k.Limit]
	}
	if order == nil {
		return []string{}
	}
	return order
}
