/*
 * @module service/pipeline/normalizer
 * @description Text normalization: whitespace/case folding, accent transliteration, machine-safe column names, categorical key cleanup and alias resolution
 * @architecture Utility function pattern - pure stateless functions
 * @documentReference service/meta/datasets.go
 * @stateFlow Stateless: input string -> normalized string
 * @rules Pure functions; malformed or empty input maps to an empty string, never to an error
 * @dependencies golang.org/x/text/runes, golang.org/x/text/transform, golang.org/x/text/unicode/norm
 * @refs service/pipeline/cleaner.go, service/pipeline/enrichment.go
 */

package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes to NFD, removes combining marks, recomposes.
// "Bogotá" -> "Bogota", "AÑO" -> "ANO".
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Transliterate replaces accented/diacritic characters with their unaccented
// ASCII equivalents. On a transform failure the input is returned unchanged.
func Transliterate(s string) string {
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeText cleans a free-text field: trim, lower-case, transliterate and
// collapse internal whitespace runs to a single space. Punctuation is kept.
func NormalizeText(s string) string {
	s = Transliterate(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeKey cleans a categorical key such as a department name. On top of
// NormalizeText it removes every character outside letters, digits, spaces
// and the given allow-list, so "Bogotá, D.C." becomes "bogota dc".
func NormalizeKey(s string, allow string) string {
	s = Transliterate(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case strings.ContainsRune(allow, r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeColumnName produces a machine-safe identifier from a source column
// header: NormalizeText plus spaces replaced with underscores and any
// remaining disallowed character dropped. "ÁREA GEOGRÁFICA" -> "area_geografica".
func NormalizeColumnName(s string) string {
	s = NormalizeText(s)
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveAlias returns the canonical form of s from the alias table, or s
// unchanged when no alias is registered.
func ResolveAlias(s string, aliases map[string]string) string {
	if canonical, ok := aliases[s]; ok {
		return canonical
	}
	return s
}
