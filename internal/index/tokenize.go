package index

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "to": {}, "in": {},
	"is": {}, "it": {}, "for": {}, "on": {}, "with": {}, "as": {}, "at": {}, "by": {},
	"le": {}, "la": {}, "les": {}, "de": {}, "des": {}, "et": {}, "un": {}, "une": {},
	"du": {}, "au": {}, "aux": {}, "dans": {}, "pour": {}, "sur": {},
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips combining diacritical marks so "Élève" and
// "eleve" tokenize identically.
func fold(s string) string {
	out, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// tokenize splits text into a deduplicated, stopword-filtered, diacritic-folded
// token set suitable for disjunctive lexical matching.
func tokenize(text string) []string {
	folded := fold(text)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
