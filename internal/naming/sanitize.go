package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SanitizeName turns a person name into a filesystem-safe folder name:
// trimmed, spaces to underscores, path and shell-hostile characters
// replaced. An empty result means skip.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, " ", "_")
	const invalid = `<>:"/\|?*`
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) || r < 0x20 {
			return '_'
		}
		return r
	}, name)
}

// NormalizePersonName normalizes a name for comparison (lowercase, no
// diacritics, spaces for dashes and underscores). Two spellings of the same
// person collapse to one destination folder.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.TrimSpace(name)
}
