package domain

import (
	"context"
	"fmt"
	"strings"
)

// KeyPrefix namespaces every key vecmatch writes to the store.
const KeyPrefix = "vecmatch:"

// InputKind selects how an embedding payload is interpreted.
type InputKind string

// Supported input kinds.
const (
	InputText        InputKind = "text"
	InputImageURL    InputKind = "image_url"
	InputImageBase64 InputKind = "image_base64"
)

// IsValid reports whether k is a supported input kind.
func (k InputKind) IsValid() bool {
	return k == InputText || k == InputImageURL || k == InputImageBase64
}

// IsImage reports whether k refers to an image payload.
func (k InputKind) IsImage() bool {
	return k == InputImageURL || k == InputImageBase64
}

// Input is a single payload to vectorize.
type Input struct {
	Kind    InputKind
	Payload string
}

// NewInput validates kind and payload. An empty kind defaults to text.
func NewInput(kind InputKind, payload string) (Input, error) {
	if kind == "" {
		kind = InputText
	}
	if !kind.IsValid() {
		return Input{}, Validationf("invalid input type %q", kind)
	}
	if strings.TrimSpace(payload) == "" {
		return Input{}, Validationf("input is required")
	}
	return Input{Kind: kind, Payload: payload}, nil
}

// TextInput is shorthand for a text payload.
func TextInput(text string) Input {
	return Input{Kind: InputText, Payload: text}
}

// Embedder is the shared vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, in Input) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
// Image inputs pass through untouched.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction to text inputs and delegates to the inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, in Input) (EmbeddingResult, error) {
	if in.Kind == InputText || in.Kind == "" {
		in.Payload = e.instruction + in.Payload
	}
	result, err := e.inner.Embed(ctx, in)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}
