package utils

import "strings"

// SplitMessage chunks s into pieces of at most max runes, preferring to
// break at newlines so platform length limits don't cut mid-sentence.
func SplitMessage(s string, max int) []string {
	if max <= 0 || len([]rune(s)) <= max {
		return []string{s}
	}

	var chunks []string
	runes := []rune(s)
	for len(runes) > max {
		cut := max
		// Look back for a newline within the last quarter of the window.
		for i := max - 1; i > max*3/4; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
