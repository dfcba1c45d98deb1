package vecmatch

import "context"

// Embedder converts inputs to vector embeddings. Required.
// Return an error wrapping ErrUnsupportedInput for input types the provider cannot embed.
type Embedder interface {
	Embed(ctx context.Context, in Input) (EmbeddingResult, error)
}

// Generator produces the short description returned by Compare. Optional.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
