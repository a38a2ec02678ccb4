package channel

import (
	"sort"
	"strings"
)

type span struct {
	start, end int
	marker     string
}

// Highlight rewrites answer text for display: weak phrases are wrapped in
// emphasis markers, strong phrases in code markers. Weak phrases are placed
// first and longer phrases before shorter ones; a phrase never wraps text
// that is already wrapped.
func Highlight(answer string, weak, strong []string) string {
	var spans []span
	spans = placePhrases(answer, weak, "*", spans)
	spans = placePhrases(answer, strong, "`", spans)
	if len(spans) == 0 {
		return answer
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var sb strings.Builder
	last := 0
	for _, sp := range spans {
		sb.WriteString(answer[last:sp.start])
		sb.WriteString(sp.marker)
		sb.WriteString(answer[sp.start:sp.end])
		sb.WriteString(sp.marker)
		last = sp.end
	}
	sb.WriteString(answer[last:])
	return sb.String()
}

func placePhrases(text string, phrases []string, marker string, spans []span) []span {
	for _, p := range longestFirst(phrases) {
		for offset := 0; offset < len(text); {
			i := strings.Index(text[offset:], p)
			if i < 0 {
				break
			}
			start := offset + i
			end := start + len(p)
			if !overlaps(spans, start, end) {
				spans = append(spans, span{start: start, end: end, marker: marker})
			}
			offset = end
		}
	}
	return spans
}

func longestFirst(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func overlaps(spans []span, start, end int) bool {
	for _, sp := range spans {
		if start < sp.end && sp.start < end {
			return true
		}
	}
	return false
}
