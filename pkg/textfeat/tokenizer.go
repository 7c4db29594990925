package textfeat

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Analyzer turns a document into the terms counted by the vectorizer.
type Analyzer struct {
	StripAccents bool
	StopWords    map[string]struct{}
}

// Terms lowercases text, optionally strips accents, splits it into runs
// of letters, digits and underscores of length two or more, and drops stop
// words. Term order follows the text.
func (a Analyzer) Terms(text string) []string {
	text = strings.ToLower(text)
	if a.StripAccents {
		text = stripAccents(text)
	}

	var terms []string
	var cur strings.Builder
	n := 0
	flush := func() {
		if n >= 2 {
			term := cur.String()
			if _, stop := a.StopWords[term]; !stop {
				terms = append(terms, term)
			}
		}
		cur.Reset()
		n = 0
	}
	for _, r := range text {
		if isWordRune(r) {
			cur.WriteRune(r)
			n++
			continue
		}
		flush()
	}
	flush()
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc)
}

// stripAccents removes combining marks after NFD decomposition.
func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
