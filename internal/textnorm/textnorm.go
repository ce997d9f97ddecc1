// Package textnorm folds free text typed by customers and staff into a
// comparable key: "Coca-Cola  Lata" and "coca cola lata" fold to the same
// string, as do "Jardim São José" and "jardim sao jose".
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics, turns punctuation into spaces and
// collapses whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, stripped)
	return strings.Join(strings.Fields(mapped), " ")
}
