package scoring

import (
	"sort"
	"strings"
)

var dashReplacer = strings.NewReplacer(
	"\u2013", "-", // en dash
	"\u2014", "-", // em dash
)

// NormalizeWhitespace trims s and collapses internal whitespace runs to one space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDashes maps en and em dashes to an ASCII hyphen.
func NormalizeDashes(s string) string {
	return dashReplacer.Replace(s)
}

// NormalizeText applies whitespace and dash normalization.
func NormalizeText(s string) string {
	return NormalizeDashes(NormalizeWhitespace(s))
}

// CompareAnswers reports whether user equals correct, ignoring case when
// caseInsensitive is set. No other normalization is applied.
func CompareAnswers(user, correct string, caseInsensitive bool) bool {
	if caseInsensitive {
		return strings.ToLower(user) == strings.ToLower(correct)
	}
	return user == correct
}

// FormatCategorySet builds the canonical label of a category set: entries are
// trimmed, empty ones dropped, the rest sorted case-insensitively and joined
// with ", ".
func FormatCategorySet(values ...string) string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		cleaned = append(cleaned, v)
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return strings.ToLower(cleaned[i]) < strings.ToLower(cleaned[j])
	})
	return strings.Join(cleaned, ", ")
}

// MatchKey is the canonical form used to match a submitted answer against a
// pattern: normalized, split on commas into a category set and lower-cased.
func MatchKey(s string) string {
	parts := strings.Split(NormalizeText(s), ",")
	return strings.ToLower(FormatCategorySet(parts...))
}

// Matches reports whether a submitted answer matches a pattern.
func Matches(user, pattern string) bool {
	return MatchKey(user) == MatchKey(pattern)
}
