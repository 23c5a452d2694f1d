package model

import "github.com/google/uuid"

// CandidateState is one state assertion of a candidate entity
type CandidateState struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	RawDate string `json:"raw_date,omitempty"`
}

// CandidateEntity is an unresolved entity produced by the extraction
// supplier. LocalID is the batch-local handle candidate events and questions
// reference before resolution.
type CandidateEntity struct {
	LocalID string           `json:"local_id"`
	Name    string           `json:"name"`
	Type    EntityType       `json:"entity_type"`
	Aliases []string         `json:"aliases,omitempty"`
	Roles   []string         `json:"roles,omitempty"`
	States  []CandidateState `json:"states,omitempty"`
}

// Ref returns the scoring projection of the candidate
func (c CandidateEntity) Ref() EntityRef {
	return EntityRef{
		Name:    c.Name,
		Type:    c.Type,
		Aliases: append([]string(nil), c.Aliases...),
		Roles:   append([]string(nil), c.Roles...),
	}
}

// CandidateEvent references entities by their batch-local ids
type CandidateEvent struct {
	Verb     string   `json:"verb"`
	Agent    string   `json:"agent"`
	Patients []string `json:"patients,omitempty"`
	Temporal string   `json:"temporal,omitempty"`
	Spatial  string   `json:"spatial,omitempty"`
	Implicit bool     `json:"implicit,omitempty"`
}

// CandidateQuestion is a predictive question raised by the extraction
// supplier. Subject is a batch-local entity id and may be empty.
type CandidateQuestion struct {
	Subject string `json:"subject,omitempty"`
	Text    string `json:"text"`
}

// CandidateAnswer answers a previously raised workspace question by its
// final question id
type CandidateAnswer struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

// Batch is one candidate set handed to the workspace for reconciliation
type Batch struct {
	ID        uuid.UUID           `json:"id"`
	CaseID    string              `json:"case_id,omitempty"`
	ChunkID   string              `json:"chunk_id,omitempty"`
	Entities  []CandidateEntity   `json:"entities,omitempty"`
	Events    []CandidateEvent    `json:"events,omitempty"`
	Questions []CandidateQuestion `json:"questions,omitempty"`
	Answers   []CandidateAnswer   `json:"answers,omitempty"`
}

// NewBatch creates an empty batch tagged with its provenance
func NewBatch(caseID string, chunkID string) *Batch {
	return &Batch{
		ID:      uuid.New(),
		CaseID:  caseID,
		ChunkID: chunkID,
	}
}
