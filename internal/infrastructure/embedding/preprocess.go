package embedding

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// portugueseStopwords are dropped before vectorization. Procurement texts
// are dense with them and they carry no matching signal.
var portugueseStopwords = map[string]struct{}{
	"de": {}, "da": {}, "do": {}, "das": {}, "dos": {},
	"a": {}, "o": {}, "as": {}, "os": {}, "e": {}, "em": {},
	"no": {}, "na": {}, "nos": {}, "nas": {}, "um": {}, "uma": {},
	"uns": {}, "umas": {}, "ao": {}, "aos": {}, "para": {}, "por": {},
	"com": {}, "sem": {}, "sob": {}, "sobre": {}, "entre": {}, "ate": {},
	"que": {}, "se": {}, "ou": {}, "ser": {}, "sua": {}, "seu": {},
}

// acronymExpansions spell out the technical acronyms common in purchase
// objects so they land near their long forms in embedding space.
var acronymExpansions = map[string]string{
	"ti":   "tecnologia da informacao",
	"tic":  "tecnologia da informacao e comunicacao",
	"cftv": "circuito fechado de televisao",
	"erp":  "sistema integrado de gestao empresarial",
	"epi":  "equipamento de protecao individual",
	"ead":  "educacao a distancia",
	"gps":  "sistema de posicionamento global",
}

var diacriticFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize prepares Portuguese procurement text for vectorization:
// lowercase, diacritics folded, acronyms expanded, punctuation and isolated
// numbers stripped, stopwords and tokens shorter than three runes removed.
// The result is the canonical form used for cache keys as well, so accent
// variants of the same text share one cache entry.
func Normalize(text string) string {
	folded, _, err := transform.String(diacriticFolder, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}

	var expanded []string
	for _, tok := range strings.Fields(folded) {
		tok = strings.Trim(tok, ".,;:()[]{}\"'-/")
		if long, ok := acronymExpansions[tok]; ok {
			expanded = append(expanded, strings.Fields(long)...)
			continue
		}
		expanded = append(expanded, tok)
	}

	kept := make([]string, 0, len(expanded))
	for _, tok := range expanded {
		tok = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, tok)
		if len([]rune(tok)) < 3 {
			continue
		}
		if isNumeric(tok) {
			continue
		}
		if _, stop := portugueseStopwords[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

// Tokens returns the normalized token stream.
func Tokens(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
