package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText canonicalizes a raw cell value for display:
// control characters removed, NFC, repeated punctuation collapsed,
// whitespace inside numbers dropped, whitespace collapsed and every
// space- or hyphen-delimited token capitalized.
func NormalizeText(input string) string {
	if input == "" {
		return ""
	}
	s := norm.NFC.String(stripControl(input))
	s = collapseRepeatedPunct(s)
	s = joinDigitGroups(s)
	s = strings.Join(strings.Fields(s), " ")
	return capitalizeTokens(s)
}

// DuplicateKey reduces a value to lowercase word characters only, so values
// that differ by case, punctuation or spacing compare equal.
func DuplicateKey(input string) string {
	if input == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range strings.ToLower(input) {
		if isWordRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= 0x1F || r == 0x7F {
			return -1
		}
		return r
	}, s)
}

func collapseRepeatedPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := rune(-1)
	for _, r := range s {
		if r == prev && !isWordRune(r) && !unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// joinDigitGroups drops whitespace runs that sit between two digits ("12 34" -> "1234").
func joinDigitGroups(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !unicode.IsSpace(r) {
			out = append(out, r)
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		betweenDigits := i > 0 && unicode.IsDigit(runes[i-1]) && j < len(runes) && unicode.IsDigit(runes[j])
		if !betweenDigits {
			out = append(out, runes[i:j]...)
		}
		i = j - 1
	}
	return string(out)
}

func capitalizeTokens(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	start := 0
	for i, r := range s {
		if r == ' ' || r == '-' {
			b.WriteString(capitalize(s[start:i]))
			b.WriteRune(r)
			start = i + 1
		}
	}
	b.WriteString(capitalize(s[start:]))
	return b.String()
}

func capitalize(token string) string {
	if token == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(token))
	for i, r := range token {
		if i == 0 {
			b.WriteRune(unicode.ToTitle(r))
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
