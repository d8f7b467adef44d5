package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Span is a token and its byte range in the source text.
type Span struct {
	Term  string
	Start int
	End   int
}

// TokenizeTitle splits text into lower-cased, accent-folded word tokens.
// Letters and digits form words; apostrophes inside a word are dropped so
// "O'Neill's" and "oneills" index alike. Everything else separates words.
func TokenizeTitle(text string) []Span {
	var (
		spans   []Span
		current strings.Builder
		start   = -1
	)
	flush := func(end int) {
		if current.Len() > 0 {
			spans = append(spans, Span{Term: FoldTerm(current.String()), Start: start, End: end})
		}
		current.Reset()
		start = -1
	}

	for i, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
			if start < 0 {
				start = i
			}
			current.WriteRune(r)
		case isApostrophe(r) && current.Len() > 0:
			// joined, not a separator
		default:
			flush(i)
		}
	}
	flush(len(text))
	return spans
}

// Terms returns the tokens of text that are at least minLen runes long.
func Terms(text string, minLen int) []string {
	spans := TokenizeTitle(text)
	terms := make([]string, 0, len(spans))
	for _, sp := range spans {
		if len([]rune(sp.Term)) >= minLen {
			terms = append(terms, sp.Term)
		}
	}
	return terms
}

// FoldTerm lower-cases s and strips combining marks ("Ríl" -> "ril").
func FoldTerm(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}
