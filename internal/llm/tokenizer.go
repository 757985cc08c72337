package llm

// charsPerToken is the rough ratio used when a provider does not report usage.
const charsPerToken = 3

// EstimateTokens provides a fast, character-based estimation of token count.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}
