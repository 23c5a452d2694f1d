package workspacer

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/siherrmann/workspacer/core/ontology"
	"github.com/siherrmann/workspacer/core/pipeline"
	"github.com/siherrmann/workspacer/core/resolver"
	"github.com/siherrmann/workspacer/core/tracker"
	"github.com/siherrmann/workspacer/core/workspace"
	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
)

// Persister commits the outcome of a merge to durable storage. The snapshot
// is written after every batch, the cursor only after all batches of a
// document landed.
type Persister interface {
	SaveSnapshot(data []byte) error
	CommitCursor(index int) error
}

// filePersister writes snapshot and cursor to the domain files
type filePersister struct {
	snapshotPath string
	tracker      *tracker.Tracker
}

func (p *filePersister) SaveSnapshot(data []byte) error {
	return helper.WriteFileAtomic(p.snapshotPath, data)
}

func (p *filePersister) CommitCursor(index int) error {
	p.tracker.Advance(index)
	return p.tracker.Save()
}

// noopPersister backs calibration runs, nothing ever touches disk
type noopPersister struct{}

func (noopPersister) SaveSnapshot(data []byte) error { return nil }
func (noopPersister) CommitCursor(index int) error   { return nil }

// Workspacer provides a unified interface to the workspace store, the
// ingestion pipeline and the persistence layer of one domain
type Workspacer struct {
	Config   *model.Config
	Store    *workspace.Store
	Tracker  *tracker.Tracker // nil in calibration
	Pipeline *pipeline.Pipeline
	// Logging
	persist Persister
	log     *slog.Logger
}

// New creates a workspacer for the configured domain. An existing snapshot
// is loaded and continued, a missing one starts the workspace empty. In
// calibration the snapshot is still loaded but nothing is ever written back.
func New(config *model.Config, oracle resolver.Oracle) (*Workspacer, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	aggregator := ontology.New(config.PromoteThreshold)
	res := resolver.NewResolver(oracle, config, logger)

	ws, err := loadWorkspace(config)
	if err != nil {
		return nil, err
	}
	store := workspace.FromWorkspace(ws, res, aggregator, config.StateConflict, logger)

	w := &Workspacer{
		Config: config,
		Store:  store,
		log:    logger,
	}

	if config.Calibration {
		w.persist = noopPersister{}
		logger.Info("Workspace opened in calibration, merges stay in memory",
			slog.String("domain", config.Domain))
		return w, nil
	}

	w.Tracker, err = tracker.Load(config.CursorPath(), config.Domain, logger)
	if err != nil {
		return nil, err
	}
	w.persist = &filePersister{snapshotPath: config.SnapshotPath(), tracker: w.Tracker}

	logger.Info("Workspace opened",
		slog.String("domain", config.Domain),
		slog.Uint64("checkpoint", store.Checkpoint()),
		slog.Int("entities", store.Statistics().TotalEntities))

	return w, nil
}

// loadWorkspace reads the domain snapshot. A missing file yields a fresh
// workspace, a corrupt or foreign one is an error.
func loadWorkspace(config *model.Config) (*model.Workspace, error) {
	data, err := os.ReadFile(config.SnapshotPath())
	if os.IsNotExist(err) {
		return model.NewWorkspace(config.Domain), nil
	}
	if err != nil {
		return nil, helper.NewError("reading snapshot", err)
	}

	ws, err := workspace.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if ws.Domain != config.Domain {
		return nil, helper.NewError("loading snapshot", fmt.Errorf("snapshot belongs to domain %q, not %q", ws.Domain, config.Domain))
	}
	return ws, nil
}

// Mode reports whether merges are persisted
func (w *Workspacer) Mode() string {
	if w.Config.Calibration {
		return "calibration"
	}
	return "production"
}

// SetPipeline sets the chunking and extraction pipeline for document processing
func (w *Workspacer) SetPipeline(p *pipeline.Pipeline) {
	w.Pipeline = p
}

// UseDefaultPipeline sets up the default semantic chunking and NER extraction
// pipeline. This uses SemanticChunker with 500 char max chunks and 0.7
// similarity threshold over the all-MiniLM-L6-v2 embedder, and distilbert-NER
// as extraction supplier.
func (w *Workspacer) UseDefaultPipeline() error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}
	extractor, err := pipeline.NERExtractor()
	if err != nil {
		return helper.NewError("create default extractor", err)
	}

	w.Pipeline = pipeline.NewPipeline(pipeline.SemanticChunker(embedder, 500, 0.7), extractor)
	return nil
}

// AppendBatch merges one candidate batch and persists the new snapshot.
// When the snapshot write fails the in-memory merge is rolled back, memory
// and disk never diverge.
func (w *Workspacer) AppendBatch(ctx context.Context, batch *model.Batch) (*model.MergeReport, error) {
	before := w.Store.CloneWorkspace()

	report, err := w.Store.AppendBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	data, err := w.Store.Snapshot()
	if err != nil {
		w.Store.Reset(before)
		return nil, helper.NewError("encoding snapshot", err)
	}
	if err := w.persist.SaveSnapshot(data); err != nil {
		w.Store.Reset(before)
		return nil, helper.NewError("persisting snapshot", err)
	}

	return report, nil
}

// Run ingests the documents in order, resuming at the committed cursor
// position. The cursor only advances once every batch of a document has been
// merged and persisted, so a crash replays the whole document.
func (w *Workspacer) Run(ctx context.Context, documents []*model.Document) error {
	if w.Pipeline == nil {
		return helper.NewError("ingestion run", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	start := 0
	if w.Tracker != nil {
		start = w.Tracker.Cursor().LastCommittedIndex
		w.Tracker.SetTotals(w.Config.BatchSize, len(documents))
	}
	if start > len(documents) {
		return helper.NewError("ingestion run", fmt.Errorf("cursor at %d but only %d documents given", start, len(documents)))
	}

	for i := start; i < len(documents); i++ {
		document := documents[i]

		ontologyContext, err := w.Store.OntologyContext()
		if err != nil {
			return helper.NewError("rendering ontology context", err)
		}

		batches, err := w.Pipeline.Process(ctx, document, ontologyContext)
		if err != nil {
			return err
		}

		for _, batch := range batches {
			if _, err := w.AppendBatch(ctx, batch); err != nil {
				return err
			}
		}

		if err := w.persist.CommitCursor(i + 1); err != nil {
			return helper.NewError("committing cursor", err)
		}

		w.log.Info("Ingested document",
			slog.String("title", document.Title),
			slog.Int("index", i),
			slog.Int("batches", len(batches)))
	}

	return nil
}

// Restore replaces the workspace with the given snapshot and persists it
func (w *Workspacer) Restore(data []byte) error {
	if err := w.Store.Restore(data); err != nil {
		return err
	}
	return w.persist.SaveSnapshot(data)
}

// Snapshot encodes the current workspace
func (w *Workspacer) Snapshot() ([]byte, error) {
	return w.Store.Snapshot()
}

// QueryByEntity returns the full view of one entity
func (w *Workspacer) QueryByEntity(id string) (*model.EntityView, error) {
	return w.Store.QueryByEntity(id)
}

// QueryByCase returns everything recorded under a case
func (w *Workspacer) QueryByCase(caseID string) *model.CaseView {
	return w.Store.QueryByCase(caseID)
}

// UnansweredQuestions returns the open questions of the workspace
func (w *Workspacer) UnansweredQuestions() []*model.Question {
	return w.Store.UnansweredQuestions()
}

// EntitiesByType returns the entities of one type in creation order
func (w *Workspacer) EntitiesByType(t model.EntityType) []*model.Entity {
	return w.Store.EntitiesByType(t)
}

// Statistics returns workspace counters
func (w *Workspacer) Statistics() model.Statistics {
	return w.Store.Statistics()
}

// SeedOntology adds terms to the always-active vocabulary of the domain,
// independent of observed counts
func (w *Workspacer) SeedOntology(kind model.TermKind, terms ...string) {
	w.Store.SeedOntology(kind, terms...)
}

// OntologySummary returns the most frequent ontology terms
func (w *Workspacer) OntologySummary(topK int) []ontology.TermCount {
	return w.Store.OntologySummary(topK)
}

// OntologyContext renders the active vocabulary for the extraction supplier
func (w *Workspacer) OntologyContext() (string, error) {
	return w.Store.OntologyContext()
}
