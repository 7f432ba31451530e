// Token estimation for cost bookkeeping.
package llm

// Default embedding models per provider.
const (
	DefaultEmbeddingModel       = "text-embedding-3-small"
	DefaultOllamaEmbeddingModel = "nomic-embed-text"
)

// DefaultEmbeddingDimensions matches the default OpenAI embedding model.
const DefaultEmbeddingDimensions = 1536

// EstimateTokens provides a heuristic token count for text, using the
// standard approximation of ~4 characters per token, rounded up.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
