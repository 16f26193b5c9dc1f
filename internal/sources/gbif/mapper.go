package gbif

import "strings"

// DefaultLanguages is the vernacular name preference: Spanish, then English.
var DefaultLanguages = []string{"spa", "eng"}

var languageAliases = map[string]string{
	"es": "spa",
	"en": "eng",
}

// PickVernacularName returns the first usable name in language preference
// order. Within one language a name flagged as preferred wins.
func PickVernacularName(names []VernacularName, languages []string) (string, bool) {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	for _, lang := range languages {
		lang = normalizeLanguage(lang)
		var first string
		for _, n := range names {
			name := strings.TrimSpace(n.VernacularName)
			if name == "" || normalizeLanguage(n.Language) != lang {
				continue
			}
			if n.Preferred {
				return name, true
			}
			if first == "" {
				first = name
			}
		}
		if first != "" {
			return first, true
		}
	}
	return "", false
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return lang
}
