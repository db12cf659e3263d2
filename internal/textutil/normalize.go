package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letterReplacer covers letters that have no canonical decomposition.
var letterReplacer = strings.NewReplacer(
	"ø", "o",
	"æ", "ae",
	"œ", "oe",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ı", "i",
)

// boilerplate tokens are dropped, along with a number directly after them.
var boilerplate = map[string]struct{}{
	"track": {}, "trk": {}, "tr": {},
	"disc": {}, "disk": {}, "cd": {},
	"side": {}, "part": {}, "pt": {},
}

var ordinals = map[string]struct{}{
	"first": {}, "second": {}, "third": {}, "fourth": {}, "fifth": {},
	"sixth": {}, "seventh": {}, "eighth": {}, "ninth": {}, "tenth": {},
	"eleventh": {}, "twelfth": {},
}

// Normalize returns the canonical comparison key for a title or performer.
func Normalize(s string) string {
	return strings.Join(canonicalTokens(s), " ")
}

// NormalizeFileName returns the canonical key for a track filename: the
// extension and any leading track numbering ("01", "1-03", "01.") are removed
// before the usual canonicalization. A purely numeric title keeps its last
// number.
func NormalizeFileName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	tokens := canonicalTokens(base)
	for len(tokens) > 1 && isNumeric(tokens[0]) {
		tokens = tokens[1:]
	}
	return strings.Join(tokens, " ")
}

func canonicalTokens(s string) []string {
	folded := cases.Fold().String(s)
	folded = letterReplacer.Replace(folded)
	// Transformers carry state, so each call builds its own chain.
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripper, folded); err == nil {
		folded = stripped
	}

	raw := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(raw))
	skipNumber := false
	for _, token := range raw {
		if _, ok := boilerplate[token]; ok {
			skipNumber = true
			continue
		}
		if skipNumber && isNumeric(token) {
			skipNumber = false
			continue
		}
		skipNumber = false
		if isOrdinal(token) {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func isNumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isOrdinal matches ordinal words and numeric ordinals such as 1st or 22nd.
func isOrdinal(token string) bool {
	if _, ok := ordinals[token]; ok {
		return true
	}
	if len(token) < 3 {
		return false
	}
	suffix := token[len(token)-2:]
	switch suffix {
	case "st", "nd", "rd", "th":
		return isNumeric(token[:len(token)-2])
	}
	return false
}
