package capability

import (
	"strings"
	"unicode/utf8"
)

// PromptLen is the length of a prompt in characters, the unit every
// prompt bound is expressed in.
func PromptLen(s string) int { return utf8.RuneCountInString(s) }

// CompactPrompt builds the smallest useful developer prompt for a task: the
// title, the criterion IDs and the upstream task IDs. The result never
// exceeds maxChars characters (when maxChars > 0) and drops the title before
// it drops any criterion ID. When even the bare ID list does not fit, the
// trailing IDs are left out; MissingRefs reports which.
func CompactPrompt(title string, criteriaIDs, upstreamIDs []string, maxChars int) string {
	var refs strings.Builder
	refs.WriteString("\nCriteria: ")
	refs.WriteString(strings.Join(criteriaIDs, ", "))
	if len(upstreamIDs) > 0 {
		refs.WriteString("\nAfter: ")
		refs.WriteString(strings.Join(upstreamIDs, ", "))
	}
	tail := refs.String()

	head := "Implement: " + strings.TrimSpace(title)
	if maxChars <= 0 || PromptLen(head)+PromptLen(tail) <= maxChars {
		return head + tail
	}

	// Shorten the title first, then the upstream list.
	room := maxChars - PromptLen(tail)
	if room > len("Implement: ")+3 {
		return truncate(head, room) + tail
	}
	bare := "Criteria: " + strings.Join(criteriaIDs, ", ")
	if PromptLen(bare) <= maxChars {
		return bare
	}
	return fitIDs(criteriaIDs, maxChars)
}

// fitIDs keeps the leading IDs that fit in limit characters.
func fitIDs(ids []string, limit int) string {
	var b strings.Builder
	n := 0
	for _, id := range ids {
		sep := ""
		if n > 0 {
			sep = " "
		}
		if n+len(sep)+PromptLen(id) > limit {
			break
		}
		b.WriteString(sep)
		b.WriteString(id)
		n += len(sep) + PromptLen(id)
	}
	return b.String()
}

// truncate cuts s to at most n characters, marking the cut
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := max(n-3, 0)
	return string(r[:cut]) + "..."
}

// MissingRefs lists the criterion IDs that do not appear in text
func MissingRefs(text string, ids []string) []string {
	var missing []string
	for _, id := range ids {
		if !containsID(text, id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// containsID matches id as a whole token, so T1-AC1 does not satisfy T1-AC10
// and T1-AC1 is not found inside T11-AC1.
func containsID(text, id string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], id)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(id)
		before := i == 0 || !idByte(text[i-1])
		after := end == len(text) || !idByte(text[end])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func idByte(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b == '-'
}
