package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var upper = cases.Upper(language.Und)

// NormalizeText composes the text to NFC, collapses whitespace, drops spaces
// before punctuation, capitalises the first letter and ends the sentence.
func NormalizeText(text string) string {
	text = strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	if text == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range text {
		if r == ' ' && i+1 < len(text) {
			next, _ := utf8.DecodeRuneInString(text[i+1:])
			if isClosingPunct(next) {
				continue
			}
		}
		b.WriteRune(r)
	}
	text = b.String()

	first, size := utf8.DecodeRuneInString(text)
	if unicode.IsLower(first) {
		text = upper.String(string(first)) + text[size:]
	}

	last, _ := utf8.DecodeLastRuneInString(text)
	if !isTerminal(last) {
		text += "."
	}
	return text
}

func isClosingPunct(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ';', ':', '…':
		return true
	}
	return false
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '"', '”':
		return true
	}
	return false
}
