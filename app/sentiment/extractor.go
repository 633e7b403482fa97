package sentiment

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxPoints      = 5
	MaxPointLength = 1000

	minRulePointLength     = 10
	minFallbackSentenceLen = 20
)

type Sentiment struct {
	Positives []string `json:"positives"`
	Negatives []string `json:"negatives"`
}

func (s Sentiment) Empty() bool {
	return len(s.Positives) == 0 && len(s.Negatives) == 0
}

// Extractor finds positive and negative points in review prose. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	positiveRules   []*regexp.Regexp
	negativeRules   []*regexp.Regexp
	positiveLexicon []string
	negativeLexicon []string
}

func NewExtractor() *Extractor {
	return &Extractor{
		positiveRules:   positiveRules,
		negativeRules:   negativeRules,
		positiveLexicon: positiveLexicon,
		negativeLexicon: negativeLexicon,
	}
}

// Extract returns at most five positive and five negative points in the
// order they were found. It reports an empty result instead of failing.
func (e *Extractor) Extract(text string) (result Sentiment) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Sentiment extraction failed", "error", r)
			result = Sentiment{}
		}
	}()

	text = normalize(text)
	if text == "" {
		return Sentiment{}
	}

	positives := applyRules(e.positiveRules, text)
	negatives := applyRules(e.negativeRules, text)

	if len(positives) == 0 && len(negatives) == 0 {
		positives, negatives = e.classifySentences(text)
	}

	return Sentiment{
		Positives: firstDistinct(positives, MaxPoints),
		Negatives: firstDistinct(negatives, MaxPoints),
	}
}

func applyRules(rules []*regexp.Regexp, text string) []string {
	var points []string
	for _, rule := range rules {
		for _, match := range rule.FindAllStringSubmatch(text, -1) {
			point := Clean(match[1])
			if utf8.RuneCountInString(point) > minRulePointLength {
				points = append(points, point)
			}
		}
	}
	return points
}

// classifySentences is the lexicon fallback. A sentence is positive if it
// contains a positive word, otherwise negative if it contains a negative one.
func (e *Extractor) classifySentences(text string) ([]string, []string) {
	var positives, negatives []string

	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = Clean(sentence)
		if utf8.RuneCountInString(sentence) <= minFallbackSentenceLen {
			continue
		}

		lower := strings.ToLower(sentence)
		switch {
		case containsAny(lower, e.positiveLexicon):
			positives = append(positives, sentence)
		case containsAny(lower, e.negativeLexicon):
			negatives = append(negatives, sentence)
		}
	}

	return positives, negatives
}

// Clean normalizes s to NFC, collapses whitespace, drops non-printable
// characters and caps the result at MaxPointLength characters.
func Clean(s string) string {
	s = normalize(s)

	if utf8.RuneCountInString(s) > MaxPointLength {
		s = strings.TrimSpace(string([]rune(s)[:MaxPointLength]))
	}
	return s
}

func normalize(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if !unicode.IsPrint(r) {
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func firstDistinct(items []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}
