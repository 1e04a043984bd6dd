package types

import (
	"strings"
	"unicode"
)

var foldedRunes = map[rune]rune{
	'ö': 'o',
	'ä': 'a',
	'å': 'a',
	'é': 'e',
	'è': 'e',
	'ê': 'e',
	'ë': 'e',
	'ï': 'i',
	'î': 'i',
	'ô': 'o',
	'ü': 'u',
	'û': 'u',
	'ÿ': 'y',
	'ç': 'c',
	'ñ': 'n',
	'ß': 's',
	'æ': 'a',
	'ø': 'o',
}

// FoldText lower cases text and maps common accented letters to their plain
// form so "Rosé" and "rose" match. Whitespace and punctuation are kept.
func FoldText(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		r = unicode.ToLower(r)
		if plain, ok := foldedRunes[r]; ok {
			r = plain
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
