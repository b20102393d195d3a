package llm

import "strings"

// ExtractJSON pulls an embedded JSON object out of free text by slicing
// from the first '{' to the last '}'. This tolerates prose and markdown
// fences around the object but not unbalanced braces inside prose.
func ExtractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
