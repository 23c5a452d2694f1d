package model

import (
	"fmt"
	"time"
)

// Workspace is the per-domain knowledge graph: the entity table with a
// deterministic id order, the event and question lists, the ontology term
// frequencies and the id counters. Ids are never reused, so the counters are
// part of the durable state.
type Workspace struct {
	Domain       string             `json:"domain"`
	Entities     map[string]*Entity `json:"entities"`
	EntityIDs    []string           `json:"entity_ids"`
	Events       []*Event           `json:"events"`
	Questions    []*Question        `json:"questions"`
	Ontology     OntologyDict       `json:"ontology"`
	Checkpoint   uint64             `json:"checkpoint"`
	Seq          uint64             `json:"seq"`
	NextEntity   uint64             `json:"next_entity"`
	NextEvent    uint64             `json:"next_event"`
	NextQuestion uint64             `json:"next_question"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewWorkspace creates an empty workspace for a domain
func NewWorkspace(domain string) *Workspace {
	now := time.Now().UTC()
	return &Workspace{
		Domain:    domain,
		Entities:  map[string]*Entity{},
		EntityIDs: []string{},
		Events:    []*Event{},
		Questions: []*Question{},
		Ontology:  OntologyDict{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewEntityID issues the next entity id. Ids are zero padded so lexical
// order equals issue order.
func (w *Workspace) NewEntityID() string {
	w.NextEntity++
	return fmt.Sprintf("ent_%06d", w.NextEntity)
}

// NewEventID issues the next event id
func (w *Workspace) NewEventID() string {
	w.NextEvent++
	return fmt.Sprintf("evt_%06d", w.NextEvent)
}

// NewQuestionID issues the next question id
func (w *Workspace) NewQuestionID() string {
	w.NextQuestion++
	return fmt.Sprintf("q_%06d", w.NextQuestion)
}

// NextSeq advances and returns the extraction sequence counter
func (w *Workspace) NextSeq() uint64 {
	w.Seq++
	return w.Seq
}

// AddEntity inserts the entity into the table and the id order
func (w *Workspace) AddEntity(e *Entity) {
	w.Entities[e.ID] = e
	w.EntityIDs = append(w.EntityIDs, e.ID)
}

// EntitiesInOrder returns all entities in id issue order
func (w *Workspace) EntitiesInOrder() []*Entity {
	entities := make([]*Entity, 0, len(w.EntityIDs))
	for _, id := range w.EntityIDs {
		entities = append(entities, w.Entities[id])
	}
	return entities
}

// EntitiesByType returns all entities of one type in id issue order
func (w *Workspace) EntitiesByType(t EntityType) []*Entity {
	var entities []*Entity
	for _, id := range w.EntityIDs {
		if e := w.Entities[id]; e.Type == t {
			entities = append(entities, e)
		}
	}
	return entities
}

// Question returns the question with the given id, or nil
func (w *Workspace) Question(id string) *Question {
	for _, q := range w.Questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// Touch updates the modification timestamp
func (w *Workspace) Touch() {
	w.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the workspace. Calibration copies and
// pre-batch rollback snapshots both rely on the copy sharing nothing with
// the original.
func (w *Workspace) Clone() *Workspace {
	clone := &Workspace{
		Domain:       w.Domain,
		Entities:     make(map[string]*Entity, len(w.Entities)),
		EntityIDs:    append([]string{}, w.EntityIDs...),
		Events:       make([]*Event, 0, len(w.Events)),
		Questions:    make([]*Question, 0, len(w.Questions)),
		Ontology:     w.Ontology.Clone(),
		Checkpoint:   w.Checkpoint,
		Seq:          w.Seq,
		NextEntity:   w.NextEntity,
		NextEvent:    w.NextEvent,
		NextQuestion: w.NextQuestion,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
	for id, e := range w.Entities {
		clone.Entities[id] = e.Clone()
	}
	for _, e := range w.Events {
		clone.Events = append(clone.Events, e.Clone())
	}
	for _, q := range w.Questions {
		clone.Questions = append(clone.Questions, q.Clone())
	}
	return clone
}

// Statistics summarizes the workspace contents
func (w *Workspace) Statistics() Statistics {
	stats := Statistics{
		Domain:         w.Domain,
		TotalEntities:  len(w.EntityIDs),
		EntitiesByType: map[EntityType]int{},
		TotalEvents:    len(w.Events),
		TotalQuestions: len(w.Questions),
		Checkpoint:     w.Checkpoint,
	}

	cases := map[string]struct{}{}
	for _, id := range w.EntityIDs {
		e := w.Entities[id]
		stats.EntitiesByType[e.Type]++
		for _, c := range e.Cases {
			cases[c] = struct{}{}
		}
	}
	for _, q := range w.Questions {
		if !q.Answered {
			stats.UnansweredQuestions++
		}
	}
	stats.TotalCases = len(cases)

	return stats
}
