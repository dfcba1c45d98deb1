package match

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/similarity"
)

// maxPromptContent bounds, in bytes, how much of each side's text reaches the generator.
const maxPromptContent = 1000

// Side is one operand of a comparison: a stored record id or an inline input.
type Side struct {
	ID    string
	Input *domain.Input
}

// Comparison is the outcome of Compare.
type Comparison struct {
	Similarity  float64
	Description string
	Generated   bool
}

// Compare scores two profiles or answers against each other and describes the
// result. A generator failure degrades to the fallback description.
func (s *Service) Compare(ctx context.Context, collection string, a, b Side) (Comparison, error) {
	col, err := s.collection(collection)
	if err != nil {
		return Comparison{}, err
	}
	va, ta, err := s.resolveSide(ctx, col.Name(), a)
	if err != nil {
		return Comparison{}, fmt.Errorf("side a: %w", err)
	}
	vb, tb, err := s.resolveSide(ctx, col.Name(), b)
	if err != nil {
		return Comparison{}, fmt.Errorf("side b: %w", err)
	}

	score, err := similarity.Cosine(va, vb)
	if err != nil {
		return Comparison{}, fmt.Errorf("similarity: %w", err)
	}

	out := Comparison{Similarity: score, Description: s.fallback}
	if s.generator == nil {
		return out, nil
	}
	text, err := s.generator.Generate(ctx, comparePrompt(ta, tb, score))
	if err != nil {
		s.logger.Warn("Description generation failed, using fallback",
			zap.String("collection", col.Name()),
			zap.Error(err),
		)
		return out, nil
	}
	out.Description = text
	out.Generated = true
	return out, nil
}

func (s *Service) resolveSide(ctx context.Context, collection string, side Side) ([]float32, string, error) {
	switch {
	case side.ID != "" && side.Input != nil:
		return nil, "", domain.Validationf("id and input are mutually exclusive")
	case side.ID != "":
		rec, err := s.index.Fetch(ctx, collection, side.ID)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", side.ID, err)
		}
		return rec.Vector(), describe(rec.Input()), nil
	case side.Input != nil:
		in, err := domain.NewInput(side.Input.Kind, side.Input.Payload)
		if err != nil {
			return nil, "", err
		}
		res, err := s.embedInput(ctx, in)
		if err != nil {
			return nil, "", err
		}
		return res.Embedding, describe(in), nil
	}
	return nil, "", domain.Validationf("id or input is required")
}

// describe renders an input for the prompt. Images are not sent as text.
func describe(in domain.Input) string {
	if in.Kind.IsImage() {
		return "[image]"
	}
	text := strings.TrimSpace(in.Payload)
	if len(text) > maxPromptContent {
		cut := maxPromptContent
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

func comparePrompt(a, b string, score float64) string {
	return fmt.Sprintf("First:\n%s\n\nSecond:\n%s\n\nCosine similarity: %.3f", a, b, score)
}
