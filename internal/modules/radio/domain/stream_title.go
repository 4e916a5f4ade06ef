package domain

import "strings"

const streamTitleKey = "StreamTitle='"

// ParseStreamTitle extracts the StreamTitle value from an ICY metadata block.
// The block is a sequence of key='value'; pairs padded with NUL bytes.
// Returns false if the block has no StreamTitle or the title is empty.
func ParseStreamTitle(block string) (string, bool) {
	block = strings.TrimRight(block, "\x00")

	start := strings.Index(block, streamTitleKey)
	if start < 0 {
		return "", false
	}
	rest := block[start+len(streamTitleKey):]

	// Titles may contain apostrophes, so the value ends at the first "';" rather
	// than the first quote. A missing terminator means the rest of the block.
	end := strings.Index(rest, "';")
	if end < 0 {
		end = strings.LastIndex(rest, "'")
		if end < 0 {
			end = len(rest)
		}
	}

	title := strings.TrimSpace(rest[:end])
	if title == "" {
		return "", false
	}
	return title, true
}
