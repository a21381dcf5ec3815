package assessment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(len(inputs[i]))}
	}
	return out, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	byQuery map[string][]ChunkMatch
	errFor  map[string]error
	calls   int
}

func (f *fakeSearcher) SearchChunks(_ context.Context, _ string, vector []float32, _ int, _ map[string]any) ([]ChunkMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	// The fake embedder encodes query length as the single vector value.
	for q, hits := range f.byQuery {
		if len(vector) == 1 && int(vector[0]) == len(q) {
			if err := f.errFor[q]; err != nil {
				return nil, err
			}
			return hits, nil
		}
	}
	return nil, nil
}

func newTestBuilder(e Embedder, s ChunkSearcher, budget int) *ContextBuilder {
	cfg := DefaultConfig()
	cfg.ContextCharBudget = budget
	return NewContextBuilder(e, s, logger.NewNop(), cfg)
}

func TestBuild_MergesAndDeduplicatesChunks(t *testing.T) {
	searcher := &fakeSearcher{byQuery: map[string][]ChunkMatch{
		"aa":  {{Text: "shared chunk", Score: 0.5}, {Text: "alpha", Score: 0.9}},
		"bbb": {{Text: "shared chunk", Score: 0.8}, {Text: "beta", Score: 0.3}},
	}}

	got := newTestBuilder(&fakeEmbedder{}, searcher, 8000).
		Build(context.Background(), "ns", nil, []string{"aa", "bbb"})

	// Highest score first: alpha (0.9), shared chunk (max 0.8), beta (0.3).
	want := "alpha\n\nshared chunk\n\nbeta"
	if got != want {
		t.Fatalf("context: got %q want %q", got, want)
	}
}

func TestBuild_RespectsCharBudget(t *testing.T) {
	searcher := &fakeSearcher{byQuery: map[string][]ChunkMatch{
		"aa": {
			{Text: strings.Repeat("x", 30), Score: 0.9},
			{Text: strings.Repeat("y", 30), Score: 0.8},
			{Text: strings.Repeat("z", 30), Score: 0.7},
		},
	}}

	got := newTestBuilder(&fakeEmbedder{}, searcher, 70).
		Build(context.Background(), "ns", nil, []string{"aa"})

	if len(got) > 70 {
		t.Fatalf("context length %d exceeds budget", len(got))
	}
	if !strings.Contains(got, "x") || !strings.Contains(got, "y") || strings.Contains(got, "z") {
		t.Fatalf("expected top two chunks only, got %q", got)
	}
}

func TestBuild_FailedSubQueryIsSkipped(t *testing.T) {
	searcher := &fakeSearcher{
		byQuery: map[string][]ChunkMatch{
			"aa":  {{Text: "good chunk", Score: 0.9}},
			"bbb": nil,
		},
		errFor: map[string]error{"bbb": errors.New("index unavailable")},
	}

	got := newTestBuilder(&fakeEmbedder{}, searcher, 8000).
		Build(context.Background(), "ns", nil, []string{"aa", "bbb"})

	if got != "good chunk" {
		t.Fatalf("context: got %q want %q", got, "good chunk")
	}
}

func TestBuild_AllQueriesFailingYieldsEmptyContext(t *testing.T) {
	got := newTestBuilder(&fakeEmbedder{err: errors.New("embed down")}, &fakeSearcher{}, 8000).
		Build(context.Background(), "ns", nil, []string{"aa", "bbb"})
	if got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

func TestBuild_DeduplicatesQueriesBeforeSearch(t *testing.T) {
	searcher := &fakeSearcher{byQuery: map[string][]ChunkMatch{
		"aa": {{Text: "chunk", Score: 0.5}},
	}}

	newTestBuilder(&fakeEmbedder{}, searcher, 8000).
		Build(context.Background(), "ns", nil, []string{"aa", " aa ", "AA", ""})

	if searcher.calls != 1 {
		t.Fatalf("search calls: got %d want 1", searcher.calls)
	}
}
