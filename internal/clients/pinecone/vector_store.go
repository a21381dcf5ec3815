package pinecone

import (
	"context"
	"fmt"
	"strings"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/utils"
)

// ChunkMatch is one retrieved document chunk with its similarity score.
type ChunkMatch struct {
	Text  string
	Score float64
}

// VectorStore is the namespaced nearest-neighbor search over document
// chunks. One namespace per tenant; metadata filters restrict by
// department. Ingestion is owned by an out-of-scope pipeline.
type VectorStore interface {
	SearchChunks(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]ChunkMatch, error)
}

type vectorStore struct {
	log       *logger.Logger
	pc        Client
	indexName string
	indexHost string
	nsPrefix  string
}

func NewVectorStore(log *logger.Logger, pc Client) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}

	indexName := utils.GetEnv("PINECONE_INDEX_NAME", "", nil)
	if indexName == "" {
		return nil, fmt.Errorf("missing PINECONE_INDEX_NAME")
	}

	host := utils.GetEnv("PINECONE_INDEX_HOST", "", nil)
	nsPrefix := utils.GetEnv("PINECONE_NAMESPACE_PREFIX", "oh", log)

	// If host missing, bootstrap via describe_index (fine for local/dev).
	if host == "" {
		desc, err := pc.DescribeIndex(context.Background(), indexName)
		if err != nil {
			return nil, fmt.Errorf("pinecone describe_index failed: %w", err)
		}
		host = strings.TrimSpace(desc.Host)
		if host == "" {
			return nil, fmt.Errorf("pinecone describe_index returned empty host")
		}
		log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index (avoid this in production)",
			"index_name", indexName,
			"index_host", host,
		)
	}

	return &vectorStore{
		log:       log.With("service", "PineconeVectorStore"),
		pc:        pc,
		indexName: indexName,
		indexHost: host,
		nsPrefix:  nsPrefix,
	}, nil
}

func (s *vectorStore) SearchChunks(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]ChunkMatch, error) {
	if s == nil || s.pc == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	resp, err := s.pc.Query(ctx, s.indexHost, QueryRequest{
		Namespace:       s.qualifyNamespace(namespace),
		Vector:          vector,
		TopK:            topK,
		Filter:          filter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]ChunkMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		text := ""
		if m.Metadata != nil {
			if s, ok := m.Metadata["text"].(string); ok {
				text = strings.TrimSpace(s)
			}
		}
		if text == "" {
			continue
		}
		out = append(out, ChunkMatch{Text: text, Score: m.Score})
	}
	return out, nil
}

func (s *vectorStore) qualifyNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return s.nsPrefix
	}
	return s.nsPrefix + ":" + ns
}
