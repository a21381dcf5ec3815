package assessment

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
)

// ContextBuilder executes retrieval queries against the vector index,
// merges the hits, and assembles a bounded context blob for prompting.
type ContextBuilder struct {
	embedder Embedder
	searcher ChunkSearcher
	log      *logger.Logger
	cfg      Config
}

func NewContextBuilder(embedder Embedder, searcher ChunkSearcher, log *logger.Logger, cfg Config) *ContextBuilder {
	return &ContextBuilder{
		embedder: embedder,
		searcher: searcher,
		log:      log.With("component", "ContextBuilder"),
		cfg:      cfg,
	}
}

// Build runs every query concurrently (bounded fan-out), deduplicates hits
// by text keeping the highest score, and concatenates the best chunks up to
// the character budget. A failed sub-query is logged and skipped; it never
// aborts the build.
func (b *ContextBuilder) Build(ctx context.Context, namespace string, filter map[string]any, queries []string) string {
	clean := dedupeQueries(queries)
	if len(clean) == 0 {
		return ""
	}

	results := make([][]ChunkMatch, len(clean))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.FanOutLimit)
	for i, q := range clean {
		g.Go(func() error {
			vecs, err := b.embedder.Embed(gctx, []string{q})
			if err != nil || len(vecs) == 0 {
				b.log.Warn("embedding sub-query failed, skipping", "query", q, "error", err)
				return nil
			}
			hits, err := b.searcher.SearchChunks(gctx, namespace, vecs[0], b.cfg.TopKPerQuery, filter)
			if err != nil {
				b.log.Warn("search sub-query failed, skipping", "query", q, "error", err)
				return nil
			}
			results[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	merged := mergeChunks(results)
	return concatChunks(merged, b.cfg.ContextCharBudget)
}

func dedupeQueries(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// mergeChunks folds all hits together keyed by text, keeping the highest
// score per chunk, sorted descending.
func mergeChunks(results [][]ChunkMatch) []ChunkMatch {
	best := make(map[string]float64)
	for _, hits := range results {
		for _, h := range hits {
			text := strings.TrimSpace(h.Text)
			if text == "" {
				continue
			}
			if cur, ok := best[text]; !ok || h.Score > cur {
				best[text] = h.Score
			}
		}
	}

	out := make([]ChunkMatch, 0, len(best))
	for text, score := range best {
		out = append(out, ChunkMatch{Text: text, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Text < out[j].Text
	})
	return out
}

func concatChunks(chunks []ChunkMatch, budget int) string {
	var b strings.Builder
	for _, c := range chunks {
		if b.Len() > 0 {
			if b.Len()+2+len(c.Text) > budget {
				break
			}
			b.WriteString("\n\n")
		} else if len(c.Text) > budget {
			return clampText(c.Text, budget)
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
