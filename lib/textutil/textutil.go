package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Fold lowercases s, strips diacritics and collapses whitespace so that
// "JOÃO  Pereira" and "joao pereira" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.TrimSpace(folded)
	return whitespaceRegex.ReplaceAllString(folded, " ")
}

// NameVariants returns the forms a person's name is commonly recorded
// under: the full name, first + last, and first + second.
func NameVariants(fullName string) []string {
	parts := strings.Fields(Fold(fullName))
	if len(parts) == 0 {
		return nil
	}
	variants := []string{strings.Join(parts, " ")}
	if len(parts) >= 2 {
		variants = append(variants, parts[0]+" "+parts[len(parts)-1])
		variants = append(variants, parts[0]+" "+parts[1])
	}
	return variants
}

// SameName reports whether recorded names the same person as fullName:
// the tokens of the shorter name appear as whole tokens, in order, in the
// longer one, or recorded matches one of fullName's variants (or the other
// way around).
func SameName(fullName, recorded string) bool {
	a, b := strings.Fields(Fold(fullName)), strings.Fields(Fold(recorded))
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	if containsTokens(a, b) {
		return true
	}
	for _, va := range NameVariants(strings.Join(a, " ")) {
		for _, vb := range NameVariants(strings.Join(b, " ")) {
			if va == vb {
				return true
			}
		}
	}
	return false
}

// containsTokens reports whether every token of short appears in long,
// in the same order.
func containsTokens(long, short []string) bool {
	i := 0
	for _, tok := range long {
		if i < len(short) && tok == short[i] {
			i++
		}
	}
	return i == len(short)
}
