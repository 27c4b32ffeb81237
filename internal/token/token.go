// Package token provides the token estimation used for all prompt and chunk
// budgets. Estimates follow the common ~4 characters per token heuristic, so
// budgets are approximate but stable across providers.
package token

// Estimate returns the approximate token count of text.
func Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateAll returns the summed estimate of all texts.
func EstimateAll(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}

// Truncate cuts text so its estimate fits within maxTokens, appending a note
// when anything was dropped. Zero or negative budgets return an empty string.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "\n\n... (truncated to fit the token budget)"
}
