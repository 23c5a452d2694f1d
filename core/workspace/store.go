// Package workspace owns the mutable per-domain workspace and applies
// candidate batches to it with all-or-nothing semantics.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/siherrmann/workspacer/core/ontology"
	"github.com/siherrmann/workspacer/core/resolver"
	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
)

// Store is the single mutating owner of a workspace. All writes go through
// AppendBatch under one mutex; reads take consistent copies.
type Store struct {
	mu         sync.RWMutex
	ws         *model.Workspace
	resolver   *resolver.Resolver
	aggregator *ontology.Aggregator
	conflict   model.ConflictPolicy
	logger     *slog.Logger
}

// NewStore creates a store over an empty workspace
func NewStore(domain string, res *resolver.Resolver, agg *ontology.Aggregator, conflict model.ConflictPolicy, logger *slog.Logger) *Store {
	return FromWorkspace(model.NewWorkspace(domain), res, agg, conflict, logger)
}

// FromWorkspace creates a store over an existing workspace, typically one
// loaded from a snapshot. The store takes ownership of ws.
func FromWorkspace(ws *model.Workspace, res *resolver.Resolver, agg *ontology.Aggregator, conflict model.ConflictPolicy, logger *slog.Logger) *Store {
	if conflict == "" {
		conflict = model.ConflictIncomingWins
	}
	return &Store{
		ws:         ws,
		resolver:   res,
		aggregator: agg,
		conflict:   conflict,
		logger:     logger,
	}
}

// Domain returns the workspace domain
func (s *Store) Domain() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ws.Domain
}

// Checkpoint returns the number of committed batches
func (s *Store) Checkpoint() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ws.Checkpoint
}

// AppendBatch reconciles one candidate batch into the workspace. The
// resolve phase runs read-only and in parallel against the pre-batch view;
// the apply phase runs serially and either lands completely or not at all.
// On any apply error the workspace is restored from its pre-batch clone.
func (s *Store) AppendBatch(ctx context.Context, batch *model.Batch) (*model.MergeReport, error) {
	if batch == nil {
		return nil, helper.NewError("appending batch", fmt.Errorf("batch is nil"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := map[model.EntityType][]*model.Entity{}
	for _, id := range s.ws.EntityIDs {
		e := s.ws.Entities[id]
		existing[e.Type] = append(existing[e.Type], e)
	}

	decisions, err := s.resolver.Resolve(ctx, batch.Entities, existing)
	if err != nil {
		// Nothing has been written yet.
		return nil, err
	}

	before := s.ws.Clone()
	report, err := s.apply(batch, decisions)
	if err != nil {
		s.ws = before
		s.logger.Error("Batch apply failed, workspace rolled back",
			slog.String("batch", batch.ID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrBatchFailed, err)
	}

	s.logger.Info("Batch applied",
		slog.String("batch", batch.ID.String()),
		slog.Int("new_entities", len(report.NewEntities)),
		slog.Int("merged", len(report.Merged)),
		slog.Int("new_events", len(report.NewEvents)),
		slog.Uint64("checkpoint", report.Checkpoint))

	return report, nil
}

// apply folds the batch into the workspace following the resolved decisions
// in candidate input order. Callers hold the write lock and roll back on
// error.
func (s *Store) apply(batch *model.Batch, decisions []resolver.Decision) (*model.MergeReport, error) {
	if len(decisions) != len(batch.Entities) {
		return nil, fmt.Errorf("decision count %d does not match candidate count %d", len(decisions), len(batch.Entities))
	}

	report := &model.MergeReport{BatchID: batch.ID}
	idMap := make(map[string]string, len(batch.Entities))
	var terms []model.Term

	for i, candidate := range batch.Entities {
		decision := decisions[i]
		if decision.Malformed {
			report.DroppedCandidates++
			s.logger.Warn("Dropping malformed candidate",
				slog.String("local_id", candidate.LocalID),
				slog.String("reason", decision.Reason))
			continue
		}
		if decision.Degraded {
			report.DegradedMatches++
		}

		target := decision.MergeInto
		if decision.CreateNew {
			// The resolve phase only saw the pre-batch view. An exact alias
			// re-check against entities created earlier in this apply keeps
			// in-batch duplicates and replayed batches from forking.
			if id := s.findExactAlias(candidate); id != "" {
				target = id
				decision.Score = 1.0
				decision.Reason = "exact alias match within batch"
			}
		}

		if target != "" {
			entity, ok := s.ws.Entities[target]
			if !ok {
				return nil, fmt.Errorf("decision for %q merges into unknown entity %q", candidate.LocalID, target)
			}
			s.mergeEntity(entity, candidate, batch)
			idMap[candidate.LocalID] = entity.ID
			report.Merged = append(report.Merged, model.Merge{
				LocalID:  candidate.LocalID,
				EntityID: entity.ID,
				Score:    decision.Score,
				Degraded: decision.Degraded,
				Reason:   decision.Reason,
			})
		} else {
			entity := s.createEntity(candidate, batch)
			idMap[candidate.LocalID] = entity.ID
			report.NewEntities = append(report.NewEntities, entity.ID)
		}

		terms = append(terms, ontology.CandidateTerms(candidate)...)
	}

	var appended []*model.Event
	for _, candidate := range batch.Events {
		event, ok := s.buildEvent(candidate, batch, idMap)
		if !ok {
			report.DroppedCandidates++
			continue
		}
		s.ws.Events = append(s.ws.Events, event)
		appended = append(appended, event)
		report.NewEvents = append(report.NewEvents, event.ID)
		terms = append(terms, ontology.VerbTerm(event.Verb))
	}

	for _, candidate := range batch.Questions {
		if strings.TrimSpace(candidate.Text) == "" {
			report.DroppedCandidates++
			continue
		}
		question := &model.Question{
			ID:        s.ws.NewQuestionID(),
			SubjectID: idMap[candidate.Subject],
			Text:      candidate.Text,
			CaseID:    batch.CaseID,
		}
		s.ws.Questions = append(s.ws.Questions, question)
		report.NewQuestions = append(report.NewQuestions, question.ID)
	}

	for _, candidate := range batch.Answers {
		if strings.TrimSpace(candidate.Text) == "" {
			report.DroppedCandidates++
			continue
		}
		question := s.ws.Question(candidate.QuestionID)
		if question == nil {
			report.DroppedCandidates++
			s.logger.Warn("Dropping answer to unknown question", slog.String("question", candidate.QuestionID))
			continue
		}
		if question.Answered {
			// First answer wins, replaying a batch does not rewrite it.
			continue
		}
		question.Answered = true
		question.Answer = candidate.Text
		question.AnsweredInChunk = batch.ChunkID
		report.AnsweredQuestions = append(report.AnsweredQuestions, question.ID)
	}

	// Every reference of an appended event must exist after the apply.
	for _, event := range appended {
		for _, ref := range event.References() {
			if _, ok := s.ws.Entities[ref]; !ok {
				return nil, helper.NewError(
					fmt.Sprintf("verifying event %v", event.ID),
					fmt.Errorf("%w: %v", ErrReferenceIntegrity, ref),
				)
			}
		}
	}

	s.aggregator.Update(s.ws.Ontology, terms)
	s.ws.Checkpoint++
	s.ws.Touch()
	report.Checkpoint = s.ws.Checkpoint

	return report, nil
}

// findExactAlias returns the id of a same-type entity already carrying one
// of the candidate's aliases. Iteration follows id issue order, so the
// oldest entity wins.
func (s *Store) findExactAlias(candidate model.CandidateEntity) string {
	names := append([]string{candidate.Name}, candidate.Aliases...)
	for _, id := range s.ws.EntityIDs {
		entity := s.ws.Entities[id]
		if entity.Type != candidate.Type {
			continue
		}
		for _, name := range names {
			if entity.HasAlias(name) {
				return entity.ID
			}
		}
	}
	return ""
}

func (s *Store) createEntity(candidate model.CandidateEntity, batch *model.Batch) *model.Entity {
	entity := &model.Entity{
		ID:     s.ws.NewEntityID(),
		Name:   strings.TrimSpace(candidate.Name),
		Type:   candidate.Type,
		States: map[string]model.StateValue{},
	}
	entity.AddAlias(entity.Name)
	s.ws.AddEntity(entity)
	s.mergeEntity(entity, candidate, batch)
	return entity
}

func (s *Store) mergeEntity(entity *model.Entity, candidate model.CandidateEntity, batch *model.Batch) {
	entity.AddAlias(candidate.Name)
	for _, alias := range candidate.Aliases {
		entity.AddAlias(alias)
	}
	for _, role := range candidate.Roles {
		entity.AddRole(role)
	}
	for _, state := range candidate.States {
		s.overlayState(entity, state, batch.CaseID)
	}
	entity.AddCase(batch.CaseID)
	entity.AddChunk(batch.ChunkID)
}

// overlayState applies one state assertion. Writes with parseable
// timestamps follow last-write-wins by timestamp; without timestamps the
// configured conflict policy decides.
func (s *Store) overlayState(entity *model.Entity, state model.CandidateState, caseID string) {
	if strings.TrimSpace(state.Key) == "" {
		return
	}
	if entity.States == nil {
		entity.States = map[string]model.StateValue{}
	}

	incoming := model.StateValue{
		Value:    state.Value,
		RawDate:  state.RawDate,
		ParsedAt: model.ParseWhen(state.RawDate),
		CaseID:   caseID,
		Seq:      s.ws.NextSeq(),
	}

	current, ok := entity.States[state.Key]
	if !ok {
		entity.States[state.Key] = incoming
		return
	}

	if current.ParsedAt != nil && incoming.ParsedAt != nil {
		if incoming.ParsedAt.Before(*current.ParsedAt) {
			return
		}
		entity.States[state.Key] = incoming
		return
	}

	if s.conflict == model.ConflictKeepExisting {
		return
	}
	entity.States[state.Key] = incoming
}

// buildEvent rewires a candidate event from batch-local ids to final entity
// ids. Events referencing unknown local ids (for example a candidate that
// was dropped as malformed) are dropped as malformed themselves.
func (s *Store) buildEvent(candidate model.CandidateEvent, batch *model.Batch, idMap map[string]string) (*model.Event, bool) {
	if strings.TrimSpace(candidate.Verb) == "" || candidate.Agent == "" {
		s.logger.Warn("Dropping malformed event", slog.String("verb", candidate.Verb))
		return nil, false
	}

	agent, ok := idMap[candidate.Agent]
	if !ok {
		s.logger.Warn("Dropping event with unresolved agent", slog.String("agent", candidate.Agent))
		return nil, false
	}

	patients := make([]string, 0, len(candidate.Patients))
	for _, patient := range candidate.Patients {
		id, ok := idMap[patient]
		if !ok {
			s.logger.Warn("Dropping event with unresolved patient", slog.String("patient", patient))
			return nil, false
		}
		patients = append(patients, id)
	}
	if len(patients) == 0 {
		patients = nil
	}

	var temporal, spatial string
	if candidate.Temporal != "" {
		if temporal, ok = idMap[candidate.Temporal]; !ok {
			s.logger.Warn("Dropping event with unresolved temporal marker", slog.String("temporal", candidate.Temporal))
			return nil, false
		}
	}
	if candidate.Spatial != "" {
		if spatial, ok = idMap[candidate.Spatial]; !ok {
			s.logger.Warn("Dropping event with unresolved location", slog.String("spatial", candidate.Spatial))
			return nil, false
		}
	}

	return &model.Event{
		ID:         s.ws.NewEventID(),
		Verb:       candidate.Verb,
		AgentID:    agent,
		PatientIDs: patients,
		TemporalID: temporal,
		SpatialID:  spatial,
		Implicit:   candidate.Implicit,
		CaseID:     batch.CaseID,
		ChunkID:    batch.ChunkID,
	}, true
}

// CloneWorkspace returns a deep copy of the current workspace
func (s *Store) CloneWorkspace() *model.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ws.Clone()
}

// Reset replaces the workspace, for restoring a pre-batch clone after a
// failed persist
func (s *Store) Reset(ws *model.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws = ws
}

// Statistics summarizes the workspace
func (s *Store) Statistics() model.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ws.Statistics()
}

// QueryByEntity returns the entity together with the events and questions
// referencing it
func (s *Store) QueryByEntity(id string) (*model.EntityView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.ws.Entities[id]
	if !ok {
		return nil, helper.NewError("querying entity", fmt.Errorf("unknown entity %v", id))
	}

	view := &model.EntityView{Entity: entity.Clone()}
	for _, event := range s.ws.Events {
		for _, ref := range event.References() {
			if ref == id {
				view.Events = append(view.Events, event.Clone())
				break
			}
		}
	}
	for _, question := range s.ws.Questions {
		if question.SubjectID == id {
			view.Questions = append(view.Questions, question.Clone())
		}
	}

	return view, nil
}

// QueryByCase collects everything recorded for one case. Entities carry
// their full cross-case state, which is what links cases together.
func (s *Store) QueryByCase(caseID string) *model.CaseView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := &model.CaseView{CaseID: caseID}
	for _, id := range s.ws.EntityIDs {
		entity := s.ws.Entities[id]
		for _, c := range entity.Cases {
			if c == caseID {
				view.Entities = append(view.Entities, entity.Clone())
				break
			}
		}
	}
	for _, event := range s.ws.Events {
		if event.CaseID == caseID {
			view.Events = append(view.Events, event.Clone())
		}
	}
	for _, question := range s.ws.Questions {
		if question.CaseID == caseID {
			view.Questions = append(view.Questions, question.Clone())
		}
	}

	return view
}

// UnansweredQuestions returns the open questions in raise order
func (s *Store) UnansweredQuestions() []*model.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []*model.Question
	for _, question := range s.ws.Questions {
		if !question.Answered {
			open = append(open, question.Clone())
		}
	}
	return open
}

// EntitiesByType returns copies of all entities of one type in id order
func (s *Store) EntitiesByType(t model.EntityType) []*model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entities []*model.Entity
	for _, entity := range s.ws.EntitiesByType(t) {
		entities = append(entities, entity.Clone())
	}
	return entities
}

// SeedOntology adds terms to the always-active seed vocabulary
func (s *Store) SeedOntology(kind model.TermKind, terms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregator.Seed(kind, terms...)
}

// OntologyContext renders the active vocabulary for the next extraction call
func (s *Store) OntologyContext() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregator.Context(s.ws.Ontology)
}

// OntologySummary returns the topK most frequent ontology terms
func (s *Store) OntologySummary(topK int) []ontology.TermCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregator.Summary(s.ws.Ontology, topK)
}
