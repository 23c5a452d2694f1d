package workspacer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/siherrmann/workspacer/core/pipeline"
	"github.com/siherrmann/workspacer/core/resolver"
	"github.com/siherrmann/workspacer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nameOracle scores by last name so "John Smith" and "J. Smith" merge
func nameOracle() resolver.OracleFunc {
	return func(ctx context.Context, a model.EntityRef, b model.EntityRef) (float64, error) {
		if a.Name == "John Smith" && b.Name == "J. Smith" || a.Name == "J. Smith" && b.Name == "John Smith" {
			return 0.92, nil
		}
		return 0.1, nil
	}
}

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	config := model.DefaultConfig("legal")
	config.DataDir = t.TempDir()
	config.SimilarityThreshold = 0.8
	return config
}

func TestNew(t *testing.T) {
	t.Run("Starts empty without a snapshot", func(t *testing.T) {
		w, err := New(testConfig(t), nameOracle())
		require.NoError(t, err)
		assert.Equal(t, "production", w.Mode())
		assert.Equal(t, 0, w.Statistics().TotalEntities)
	})

	t.Run("Rejects a snapshot from another domain", func(t *testing.T) {
		config := testConfig(t)
		other := model.DefaultConfig("finance")
		other.DataDir = config.DataDir
		other.SimilarityThreshold = 0.8

		w, err := New(other, nameOracle())
		require.NoError(t, err)
		batch := model.NewBatch("case-1", "chunk-1")
		batch.Entities = []model.CandidateEntity{{LocalID: "e1", Name: "Acme Corp", Type: model.EntityTypeOrganization}}
		_, err = w.AppendBatch(context.Background(), batch)
		require.NoError(t, err)

		require.NoError(t, os.Rename(other.SnapshotPath(), config.SnapshotPath()))
		_, err = New(config, nameOracle())
		assert.Error(t, err, "Expected a foreign snapshot to be rejected")
	})

	t.Run("Rejects a corrupt snapshot", func(t *testing.T) {
		config := testConfig(t)
		require.NoError(t, os.MkdirAll(config.DataDir, 0755))
		require.NoError(t, os.WriteFile(config.SnapshotPath(), []byte("not a snapshot"), 0644))

		_, err := New(config, nameOracle())
		assert.Error(t, err)
	})
}

func TestAppendBatch(t *testing.T) {
	t.Run("Merges aliases across batches and persists", func(t *testing.T) {
		config := testConfig(t)
		w, err := New(config, nameOracle())
		require.NoError(t, err)
		ctx := context.Background()

		first := model.NewBatch("case-1", "chunk-1")
		first.Entities = []model.CandidateEntity{
			{LocalID: "e1", Name: "John Smith", Type: model.EntityTypePerson, Roles: []string{"defendant"}},
		}
		report, err := w.AppendBatch(ctx, first)
		require.NoError(t, err)
		require.Len(t, report.NewEntities, 1)
		entityID := report.NewEntities[0]

		second := model.NewBatch("case-2", "chunk-2")
		second.Entities = []model.CandidateEntity{
			{LocalID: "e1", Name: "J. Smith", Type: model.EntityTypePerson},
		}
		report, err = w.AppendBatch(ctx, second)
		require.NoError(t, err)
		require.Len(t, report.Merged, 1, "Expected the second mention merged, not created")
		assert.Equal(t, entityID, report.Merged[0].EntityID)

		view, err := w.QueryByEntity(entityID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"John Smith", "J. Smith"}, view.Entity.Aliases)
		assert.ElementsMatch(t, []string{"case-1", "case-2"}, view.Entity.Cases)

		// The snapshot on disk reflects both batches
		data, err := os.ReadFile(config.SnapshotPath())
		require.NoError(t, err)
		assert.Contains(t, string(data), "John Smith")
		assert.Contains(t, string(data), "J. Smith")
	})

	t.Run("Survives a restart through the snapshot", func(t *testing.T) {
		config := testConfig(t)
		w, err := New(config, nameOracle())
		require.NoError(t, err)

		batch := model.NewBatch("case-1", "chunk-1")
		batch.Entities = []model.CandidateEntity{
			{LocalID: "e1", Name: "John Smith", Type: model.EntityTypePerson},
		}
		_, err = w.AppendBatch(context.Background(), batch)
		require.NoError(t, err)

		reopened, err := New(config, nameOracle())
		require.NoError(t, err)
		assert.Equal(t, 1, reopened.Statistics().TotalEntities)
		assert.Equal(t, uint64(1), reopened.Statistics().Checkpoint)
	})

	t.Run("Rolls back the merge when persisting fails", func(t *testing.T) {
		config := testConfig(t)
		w, err := New(config, nameOracle())
		require.NoError(t, err)
		w.persist = failingPersister{}

		batch := model.NewBatch("case-1", "chunk-1")
		batch.Entities = []model.CandidateEntity{
			{LocalID: "e1", Name: "John Smith", Type: model.EntityTypePerson},
		}
		_, err = w.AppendBatch(context.Background(), batch)
		require.Error(t, err)
		assert.Equal(t, 0, w.Statistics().TotalEntities, "Expected the merge rolled back")
		assert.Equal(t, uint64(0), w.Statistics().Checkpoint)
	})
}

type failingPersister struct{}

func (failingPersister) SaveSnapshot(data []byte) error { return fmt.Errorf("disk full") }
func (failingPersister) CommitCursor(index int) error   { return fmt.Errorf("disk full") }

func TestCalibration(t *testing.T) {
	t.Run("Calibration merges in memory and leaves no files", func(t *testing.T) {
		config := testConfig(t)
		config.Calibration = true

		w, err := New(config, nameOracle())
		require.NoError(t, err)
		assert.Equal(t, "calibration", w.Mode())
		assert.Nil(t, w.Tracker)

		batch := model.NewBatch("case-1", "chunk-1")
		batch.Entities = []model.CandidateEntity{
			{LocalID: "e1", Name: "John Smith", Type: model.EntityTypePerson},
		}
		_, err = w.AppendBatch(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Statistics().TotalEntities)

		entries, err := os.ReadDir(config.DataDir)
		require.NoError(t, err)
		assert.Empty(t, entries, "Expected no snapshot or cursor files in calibration")
	})

	t.Run("Calibration starts from an existing snapshot without touching it", func(t *testing.T) {
		config := testConfig(t)
		w, err := New(config, nameOracle())
		require.NoError(t, err)
		batch := model.NewBatch("case-1", "chunk-1")
		batch.Entities = []model.CandidateEntity{
			{LocalID: "e1", Name: "John Smith", Type: model.EntityTypePerson},
		}
		_, err = w.AppendBatch(context.Background(), batch)
		require.NoError(t, err)
		before, err := os.ReadFile(config.SnapshotPath())
		require.NoError(t, err)

		calibration := *config
		calibration.Calibration = true
		c, err := New(&calibration, nameOracle())
		require.NoError(t, err)
		assert.Equal(t, 1, c.Statistics().TotalEntities, "Expected the snapshot loaded")

		more := model.NewBatch("case-2", "chunk-2")
		more.Entities = []model.CandidateEntity{
			{LocalID: "e1", Name: "Acme Corp", Type: model.EntityTypeOrganization},
		}
		_, err = c.AppendBatch(context.Background(), more)
		require.NoError(t, err)

		after, err := os.ReadFile(config.SnapshotPath())
		require.NoError(t, err)
		assert.Equal(t, before, after, "Expected the snapshot on disk untouched")
	})
}

// countingExtractor emits one person per chunk and counts its calls
func countingExtractor(calls *int) pipeline.ExtractFunc {
	return func(ctx context.Context, text string, chunkID string, ontologyContext string) (*model.Batch, error) {
		*calls++
		batch := model.NewBatch("", chunkID)
		batch.Entities = []model.CandidateEntity{
			{LocalID: "c1", Name: fmt.Sprintf("Witness %d", *calls), Type: model.EntityTypePerson},
		}
		return batch, nil
	}
}

func TestRun(t *testing.T) {
	documents := func() []*model.Document {
		return []*model.Document{
			model.NewDocument("case-1", "Filing one", "First document."),
			model.NewDocument("case-1", "Filing two", "Second document."),
			model.NewDocument("case-2", "Filing three", "Third document."),
		}
	}

	t.Run("Ingests all documents and commits the cursor", func(t *testing.T) {
		config := testConfig(t)
		w, err := New(config, nameOracle())
		require.NoError(t, err)

		calls := 0
		w.SetPipeline(pipeline.NewPipeline(pipeline.SentenceChunker(1), countingExtractor(&calls)))

		require.NoError(t, w.Run(context.Background(), documents()))
		assert.Equal(t, 3, calls)
		assert.Equal(t, 3, w.Statistics().TotalEntities)
		assert.Equal(t, 3, w.Tracker.Cursor().LastCommittedIndex)
	})

	t.Run("Resumes at the committed cursor after a restart", func(t *testing.T) {
		config := testConfig(t)
		docs := documents()

		w, err := New(config, nameOracle())
		require.NoError(t, err)
		calls := 0
		w.SetPipeline(pipeline.NewPipeline(pipeline.SentenceChunker(1), countingExtractor(&calls)))
		require.NoError(t, w.Run(context.Background(), docs[:2]))
		require.Equal(t, 2, calls)

		reopened, err := New(config, nameOracle())
		require.NoError(t, err)
		resumedCalls := 0
		reopened.SetPipeline(pipeline.NewPipeline(pipeline.SentenceChunker(1), countingExtractor(&resumedCalls)))
		require.NoError(t, reopened.Run(context.Background(), docs))

		assert.Equal(t, 1, resumedCalls, "Expected only the third document processed")
		assert.Equal(t, 3, reopened.Tracker.Cursor().LastCommittedIndex)
	})

	t.Run("Fails without a pipeline", func(t *testing.T) {
		w, err := New(testConfig(t), nameOracle())
		require.NoError(t, err)
		assert.Error(t, w.Run(context.Background(), documents()))
	})

	t.Run("Rejects a cursor beyond the document list", func(t *testing.T) {
		config := testConfig(t)
		w, err := New(config, nameOracle())
		require.NoError(t, err)
		calls := 0
		w.SetPipeline(pipeline.NewPipeline(pipeline.SentenceChunker(1), countingExtractor(&calls)))
		require.NoError(t, w.Run(context.Background(), documents()))

		reopened, err := New(config, nameOracle())
		require.NoError(t, err)
		reopened.SetPipeline(pipeline.NewPipeline(pipeline.SentenceChunker(1), countingExtractor(&calls)))
		err = reopened.Run(context.Background(), documents()[:1])
		assert.Error(t, err, "Expected a shrunken document list to be rejected")
	})
}

func TestRestore(t *testing.T) {
	t.Run("Restore replaces the workspace and the snapshot file", func(t *testing.T) {
		config := testConfig(t)
		source, err := New(config, nameOracle())
		require.NoError(t, err)
		batch := model.NewBatch("case-1", "chunk-1")
		batch.Entities = []model.CandidateEntity{
			{LocalID: "e1", Name: "John Smith", Type: model.EntityTypePerson},
		}
		_, err = source.AppendBatch(context.Background(), batch)
		require.NoError(t, err)
		data, err := source.Snapshot()
		require.NoError(t, err)

		targetConfig := model.DefaultConfig("legal")
		targetConfig.DataDir = filepath.Join(t.TempDir(), "data")
		target, err := New(targetConfig, nameOracle())
		require.NoError(t, err)

		require.NoError(t, target.Restore(data))
		assert.Equal(t, 1, target.Statistics().TotalEntities)

		persisted, err := os.ReadFile(targetConfig.SnapshotPath())
		require.NoError(t, err)
		assert.Equal(t, data, persisted)
	})
}
