// Package transcript tidies backend transcripts before they are shown.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

// Options controls transcript normalization.
type Options struct {
	CapitalizeSentences bool
}

var (
	loneI        = regexp.MustCompile(`(^|[\s"(])i([\s,;:.!?)"]|$)`)
	iContraction = regexp.MustCompile(`(^|[\s"(])i(['’](?:m|d|ll|ve))\b`)

	// abbreviations whose trailing period does not end a sentence.
	abbreviations = map[string]struct{}{
		"e.g": {}, "i.e": {}, "etc": {}, "vs": {}, "cf": {},
		"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "prof": {}, "sr": {}, "jr": {},
		"approx": {}, "no": {}, "inc": {}, "ltd": {},
	}
)

// Normalize collapses whitespace and, when enabled, capitalizes sentence
// starts and the pronoun "I".
func Normalize(text string, opts Options) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || !opts.CapitalizeSentences {
		return text
	}
	text = capitalizeSentences(text)
	text = iContraction.ReplaceAllString(text, "${1}I${2}")
	// Run twice: adjacent matches share their separator.
	for i := 0; i < 2; i++ {
		text = loneI.ReplaceAllString(text, "${1}I${2}")
	}
	return text
}

func capitalizeSentences(text string) string {
	words := strings.Split(text, " ")
	start := true
	for i, word := range words {
		if start {
			words[i] = upperFirstLetter(word)
		}
		start = endsSentence(word)
	}
	return strings.Join(words, " ")
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]”’`)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '!', '?':
		return true
	case '.':
		token := strings.ToLower(strings.TrimSuffix(strings.TrimLeft(trimmed, `"'([“‘`), "."))
		if _, ok := abbreviations[token]; ok {
			return false
		}
		// Single-letter initials such as "J." do not end a sentence.
		r := []rune(token)
		return len(r) != 1 || !unicode.IsLetter(r[0])
	default:
		return false
	}
}

func upperFirstLetter(word string) string {
	runes := []rune(word)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			return string(runes)
		}
		if unicode.IsDigit(r) {
			return word
		}
	}
	return word
}
