package embed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/strata-ai/strata/internal/store"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	delay         time.Duration
	embedErr      error
	vec           []float32
	returnEmpty   bool
	lastInputText string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(_ api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInputText = req.Input[0].Content[0].Text
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{}, nil
	}
	vec := m.vec
	if vec == nil {
		vec = make([]float32, store.VectorDimension)
		vec[0] = 1
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: vec}},
	}, nil
}

func TestService_Embed(t *testing.T) {
	mock := &mockEmbedder{}
	svc, err := New(mock, 0, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	vec, err := svc.Embed(context.Background(), "the gateway listens on port 8443")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != int(store.VectorDimension) {
		t.Errorf("Embed() dimension = %d, want %d", len(vec), store.VectorDimension)
	}
	if mock.lastInputText != "the gateway listens on port 8443" {
		t.Errorf("embedder saw input %q", mock.lastInputText)
	}
}

func TestService_EmbedTimeout(t *testing.T) {
	mock := &mockEmbedder{delay: 500 * time.Millisecond}
	svc, err := New(mock, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = svc.Embed(context.Background(), "slow")
	if err == nil {
		t.Fatal("Embed() error = nil, want timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Embed() error = %v, want DeadlineExceeded", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Embed() error = %q, want timeout message", err)
	}
}

func TestService_EmbedEmptyResponse(t *testing.T) {
	svc, err := New(&mockEmbedder{returnEmpty: true}, 0, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := svc.Embed(context.Background(), "text"); err == nil {
		t.Error("Embed() error = nil, want empty-response error")
	}
}

func TestService_EmbedWrongDimension(t *testing.T) {
	svc, err := New(&mockEmbedder{vec: []float32{1, 2, 3}}, 0, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := svc.Embed(context.Background(), "text"); err == nil {
		t.Error("Embed() error = nil, want dimension error")
	}
}

func TestNew_RequiresEmbedder(t *testing.T) {
	if _, err := New(nil, 0, nil); err == nil {
		t.Error("New(nil) error = nil, want error")
	}
}
