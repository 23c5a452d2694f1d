package model

import "github.com/google/uuid"

// Merge records one candidate that was folded into an existing entity
type Merge struct {
	LocalID  string  `json:"local_id"`
	EntityID string  `json:"entity_id"`
	Score    float64 `json:"score"`
	Degraded bool    `json:"degraded,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// MergeReport summarizes what one batch changed in the workspace
type MergeReport struct {
	BatchID           uuid.UUID `json:"batch_id"`
	NewEntities       []string  `json:"new_entities,omitempty"`
	Merged            []Merge   `json:"merged,omitempty"`
	NewEvents         []string  `json:"new_events,omitempty"`
	NewQuestions      []string  `json:"new_questions,omitempty"`
	AnsweredQuestions []string  `json:"answered_questions,omitempty"`
	DegradedMatches   int       `json:"degraded_matches,omitempty"`
	DroppedCandidates int       `json:"dropped_candidates,omitempty"`
	Checkpoint        uint64    `json:"checkpoint"`
}

// Statistics summarizes a workspace
type Statistics struct {
	Domain              string             `json:"domain"`
	TotalEntities       int                `json:"total_entities"`
	EntitiesByType      map[EntityType]int `json:"entities_by_type"`
	TotalEvents         int                `json:"total_events"`
	TotalQuestions      int                `json:"total_questions"`
	UnansweredQuestions int                `json:"unanswered_questions"`
	TotalCases          int                `json:"total_cases"`
	Checkpoint          uint64             `json:"checkpoint"`
}

// EntityView is an entity together with everything that references it
type EntityView struct {
	Entity    *Entity     `json:"entity"`
	Events    []*Event    `json:"events,omitempty"`
	Questions []*Question `json:"questions,omitempty"`
}

// CaseView collects everything the workspace knows about one case
type CaseView struct {
	CaseID    string      `json:"case_id"`
	Entities  []*Entity   `json:"entities,omitempty"`
	Events    []*Event    `json:"events,omitempty"`
	Questions []*Question `json:"questions,omitempty"`
}

// EntityMatch is one similarity search hit from the entity vector index
type EntityMatch struct {
	EntityID   string  `json:"entity_id"`
	Similarity float64 `json:"similarity"`
}
