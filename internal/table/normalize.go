package table

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// zeroWidth matches the invisible characters spreadsheet exports leave
// behind: zero-width space/joiners, word joiner and the byte order mark.
var zeroWidth = runes.Predicate(func(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return false
})

// asciiSpace maps every Unicode space separator (NBSP, thin space,
// ideographic space, ...) to ' '. Tabs and newlines are kept.
var asciiSpace = runes.Map(func(r rune) rune {
	if r != ' ' && unicode.Is(unicode.Zs, r) {
		return ' '
	}
	return r
})

// Normalize returns s in NFC with zero-width characters removed and
// Unicode spaces collapsed to ASCII. Leading indentation is preserved.
func Normalize(s string) string {
	t := transform.Chain(norm.NFC, runes.Remove(zeroWidth), asciiSpace)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
