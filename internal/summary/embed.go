package summary

import (
	"encoding/json"
	"fmt"
	"strings"

	"scribe/internal/jobs"
)

const (
	timestampsMarker = "<!-- scribe:timestamps v1 -->"
	fenceOpen        = "```json"
	fenceClose       = "```"
)

// EmbedTimestamps appends the timestamp block to body.
func EmbedTimestamps(body string, timestamps []jobs.Timestamp) (string, error) {
	if timestamps == nil {
		timestamps = []jobs.Timestamp{}
	}
	data, err := json.Marshal(timestamps)
	if err != nil {
		return "", fmt.Errorf("encode timestamps: %w", err)
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(body, " \t\r\n"))
	b.WriteString("\n\n")
	b.WriteString(timestampsMarker)
	b.WriteString("\n")
	b.WriteString(fenceOpen)
	b.WriteString("\n")
	b.Write(data)
	b.WriteString("\n")
	b.WriteString(fenceClose)
	b.WriteString("\n")
	return b.String(), nil
}

// DecodeTimestamps extracts an embedded timestamp block. It returns the
// summary without the block and ok=true only when the block is present and
// well formed; otherwise summary is returned unchanged.
func DecodeTimestamps(summary string) (string, []jobs.Timestamp, bool) {
	idx := strings.LastIndex(summary, timestampsMarker)
	if idx < 0 {
		return summary, nil, false
	}
	rest := strings.TrimSpace(summary[idx+len(timestampsMarker):])
	if !strings.HasPrefix(rest, fenceOpen) || !strings.HasSuffix(rest, fenceClose) || len(rest) < len(fenceOpen)+len(fenceClose) {
		return summary, nil, false
	}
	payload := rest[len(fenceOpen) : len(rest)-len(fenceClose)]
	var timestamps []jobs.Timestamp
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &timestamps); err != nil {
		return summary, nil, false
	}
	if timestamps == nil {
		timestamps = []jobs.Timestamp{}
	}
	return strings.TrimRight(summary[:idx], " \t\r\n"), timestamps, true
}

// Body returns the summary text without any embedded timestamp block.
func Body(summary string) string {
	body, _, _ := DecodeTimestamps(summary)
	return body
}
