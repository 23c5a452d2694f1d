package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
)

// nerTypeMap translates NER labels into candidate entity types.
// MISC covers products, works and other named things, which land as assets.
var nerTypeMap = map[string]model.EntityType{
	"PER":  model.EntityTypePerson,
	"ORG":  model.EntityTypeOrganization,
	"LOC":  model.EntityTypeLocation,
	"MISC": model.EntityTypeAsset,
}

// NERExtractor creates an extraction supplier backed by a NER model.
// Uses distilbert-NER for named entity recognition and emits one candidate
// entity per distinct mention found in the chunk. It produces no events or
// questions, those come from richer suppliers layered on top.
func NERExtractor() (ExtractFunc, error) {
	// Prepare model (download if needed)
	modelName := "KnightsAnalytics/distilbert-NER"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	// Create token classification pipeline for NER
	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}), // Ignore non-entity tokens
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(ctx context.Context, text string, chunkID string, ontologyContext string) (*model.Batch, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}

		batch := model.NewBatch("", chunkID)
		if len(result.Entities) == 0 {
			return batch, nil
		}

		// One candidate per distinct type and normalized name within the chunk
		seen := map[string]bool{}
		for _, entity := range result.Entities[0] {
			name := strings.TrimSpace(entity.Word)
			if name == "" {
				continue
			}

			entityType, ok := nerTypeMap[stripBIOPrefix(entity.Entity)]
			if !ok {
				continue
			}

			key := string(entityType) + "\x00" + model.NormalizeAlias(name)
			if seen[key] {
				continue
			}
			seen[key] = true

			batch.Entities = append(batch.Entities, model.CandidateEntity{
				LocalID: fmt.Sprintf("c%d", len(batch.Entities)+1),
				Name:    name,
				Type:    entityType,
			})
		}

		return batch, nil
	}, nil
}

// stripBIOPrefix removes B- and I- tagging prefixes from NER labels
func stripBIOPrefix(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
