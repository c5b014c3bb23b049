// Package embed adapts a genkit embedder to the memory.Embedder contract.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"google.golang.org/genai"

	"github.com/strata-ai/strata/internal/store"
)

// DefaultModel outputs 3072 dimensions by default but supports truncation
// to 768 via OutputDimensionality. The documents schema uses 768; see
// store.VectorDimension.
const DefaultModel = "gemini-embedding-001"

// Service generates fixed-dimension embeddings with a per-call timeout.
// Implements memory.Embedder.
type Service struct {
	embedder ai.Embedder
	timeout  time.Duration
	logger   *slog.Logger
}

// New wraps an embedder. A zero timeout disables the per-call deadline.
func New(embedder ai.Embedder, timeout time.Duration, logger *slog.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, timeout: timeout, logger: logger}, nil
}

// NewGoogleAI initializes genkit with the Google AI plugin and returns a
// Service for the given model. Requires GEMINI_API_KEY in the environment.
func NewGoogleAI(ctx context.Context, model string, timeout time.Duration, logger *slog.Logger) (*Service, error) {
	if model == "" {
		model = DefaultModel
	}
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := googlegenai.GoogleAIEmbedder(g, model)
	if embedder == nil {
		return nil, fmt.Errorf("unknown embedder model %q", model)
	}
	return New(embedder, timeout, logger)
}

// Embed returns a store.VectorDimension-sized vector for the text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	dim := store.VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding timed out after %s: %w", s.timeout, err)
		}
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != int(store.VectorDimension) {
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(vec), store.VectorDimension)
	}
	return vec, nil
}
