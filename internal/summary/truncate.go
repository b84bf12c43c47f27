package summary

import (
	"strings"
	"unicode"
)

// TruncationMarker replaces the elided middle of an oversized transcript.
const TruncationMarker = "[... transcript truncated ...]"

const headShare = 85

// Truncate limits text to maxChars runes. Oversized input keeps roughly the
// first 85% and the last 15% of the budget, cut on whitespace, joined by
// TruncationMarker. It reports whether anything was removed.
func Truncate(text string, maxChars int) (string, bool) {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text, false
	}
	budget := maxChars - len([]rune(TruncationMarker)) - 2
	if budget <= 0 {
		return string(runes[:maxChars]), true
	}
	headLen := budget * headShare / 100
	tailLen := budget - headLen

	head := runes[:headLen]
	if cut := lastSpace(head); cut > headLen/2 {
		head = head[:cut]
	}
	tail := runes[len(runes)-tailLen:]
	if cut := firstSpace(tail); cut >= 0 && cut < tailLen/2 {
		tail = tail[cut+1:]
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(string(head)))
	b.WriteString("\n")
	b.WriteString(TruncationMarker)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(string(tail)))
	return b.String(), true
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

func firstSpace(r []rune) int {
	for i, c := range r {
		if unicode.IsSpace(c) {
			return i
		}
	}
	return -1
}
