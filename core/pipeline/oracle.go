package pipeline

import (
	"context"
	"sync"

	"github.com/siherrmann/workspacer/core/resolver"
	"github.com/siherrmann/workspacer/model"
)

// EmbeddingOracle builds a similarity oracle from an embedder. Candidate and
// entity texts are embedded once and cached for the lifetime of the oracle,
// the score is the cosine similarity of the two vectors.
func EmbeddingOracle(embed EmbedFunc) resolver.OracleFunc {
	var mu sync.Mutex
	cache := map[string][]float32{}

	embedCached := func(text string) ([]float32, error) {
		mu.Lock()
		embedding, ok := cache[text]
		mu.Unlock()
		if ok {
			return embedding, nil
		}

		embedding, err := embed(text)
		if err != nil {
			return nil, err
		}

		mu.Lock()
		cache[text] = embedding
		mu.Unlock()
		return embedding, nil
	}

	return func(ctx context.Context, a model.EntityRef, b model.EntityRef) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		vecA, err := embedCached(a.Text())
		if err != nil {
			return 0, err
		}
		vecB, err := embedCached(b.Text())
		if err != nil {
			return 0, err
		}

		return float64(cosineSimilarity(vecA, vecB)), nil
	}
}
