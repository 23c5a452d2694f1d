package database

import (
	"context"
	"sync"

	"github.com/siherrmann/workspacer/core/pipeline"
	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
)

// VectorOracle scores entity similarity with embeddings persisted in the
// entity vector store. Vectors of workspace entities are written through to
// the database, so they survive restarts and stay queryable for similarity
// search. Candidate vectors only live in the in-memory cache.
type VectorOracle struct {
	domain  string
	vectors EntityVectorsDBHandlerFunctions
	embed   pipeline.EmbedFunc

	mu    sync.Mutex
	cache map[string][]float32
}

// NewVectorOracle creates an oracle backed by the given vector store
func NewVectorOracle(domain string, vectors EntityVectorsDBHandlerFunctions, embed pipeline.EmbedFunc) *VectorOracle {
	return &VectorOracle{
		domain:  domain,
		vectors: vectors,
		embed:   embed,
		cache:   map[string][]float32{},
	}
}

// Score implements resolver.Oracle
func (o *VectorOracle) Score(ctx context.Context, a model.EntityRef, b model.EntityRef) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	vecA, err := o.vectorFor(a)
	if err != nil {
		return 0, helper.NewError("embedding reference", err)
	}
	vecB, err := o.vectorFor(b)
	if err != nil {
		return 0, helper.NewError("embedding reference", err)
	}

	similarity, err := o.vectors.CosineSimilarity(vecA, vecB)
	if err != nil {
		return 0, helper.NewError("scoring similarity", err)
	}

	return similarity, nil
}

// vectorFor returns the embedding of a reference, from cache, store or the
// embedder in that order. Refs carrying a workspace entity id are written
// through to the store on first embedding.
func (o *VectorOracle) vectorFor(ref model.EntityRef) ([]float32, error) {
	text := ref.Text()

	o.mu.Lock()
	vector, ok := o.cache[text]
	o.mu.Unlock()
	if ok {
		return vector, nil
	}

	if ref.ID != "" {
		stored, err := o.vectors.SelectVector(o.domain, ref.ID)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			o.mu.Lock()
			o.cache[text] = stored
			o.mu.Unlock()
			return stored, nil
		}
	}

	vector, err := o.embed(text)
	if err != nil {
		return nil, err
	}

	if ref.ID != "" {
		if err := o.vectors.UpsertVector(o.domain, ref.ID, vector); err != nil {
			return nil, err
		}
	}

	o.mu.Lock()
	o.cache[text] = vector
	o.mu.Unlock()

	return vector, nil
}
