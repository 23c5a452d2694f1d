package model

// Question is a predictive question raised during ingestion. Answered
// questions always carry a non-empty Answer and the chunk that answered them.
type Question struct {
	ID              string `json:"id"`
	SubjectID       string `json:"subject_id,omitempty"`
	Text            string `json:"text"`
	Answered        bool   `json:"answered"`
	Answer          string `json:"answer,omitempty"`
	CaseID          string `json:"case_id,omitempty"`
	AnsweredInChunk string `json:"answered_in_chunk,omitempty"`
}

// Clone returns a copy of the question
func (q *Question) Clone() *Question {
	clone := *q
	return &clone
}
