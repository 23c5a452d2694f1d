package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
)

// ChunkFunc splits document text into extraction-sized chunks
type ChunkFunc func(text string) ([]string, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// ExtractFunc is the extraction supplier seam: it turns one chunk of text
// into a candidate batch. The ontology context is the TOON rendering of the
// current active vocabulary and may be empty.
type ExtractFunc func(ctx context.Context, text string, chunkID string, ontologyContext string) (*model.Batch, error)

// Pipeline combines chunking and extraction
type Pipeline struct {
	Chunker   ChunkFunc
	Extractor ExtractFunc
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, extractor ExtractFunc) *Pipeline {
	return &Pipeline{
		Chunker:   chunker,
		Extractor: extractor,
	}
}

// Process splits a document and extracts one candidate batch per chunk.
// Provenance (case id and chunk id) is attached here, the extraction
// supplier does not have to set it.
func (p *Pipeline) Process(ctx context.Context, document *model.Document, ontologyContext string) ([]*model.Batch, error) {
	if p.Chunker == nil || p.Extractor == nil {
		return nil, helper.NewError("processing document", fmt.Errorf("pipeline needs both a chunker and an extractor"))
	}

	chunks, err := p.Chunker(document.Content)
	if err != nil {
		return nil, helper.NewError("chunking document", err)
	}

	batches := make([]*model.Batch, 0, len(chunks))
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		chunkID := fmt.Sprintf("%v_chunk%d", document.RID, i)
		batch, err := p.Extractor(ctx, chunk, chunkID, ontologyContext)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("extracting chunk %v", chunkID), err)
		}
		if batch == nil {
			continue
		}

		batch.CaseID = document.CaseID
		batch.ChunkID = chunkID
		batches = append(batches, batch)
	}

	return batches, nil
}
