package model

// Event represents a verb-centered relation between resolved entities.
// All references are final workspace entity ids.
type Event struct {
	ID         string   `json:"id"`
	Verb       string   `json:"verb"`
	AgentID    string   `json:"agent_id"`
	PatientIDs []string `json:"patient_ids,omitempty"`
	TemporalID string   `json:"temporal_id,omitempty"`
	SpatialID  string   `json:"spatial_id,omitempty"`
	Implicit   bool     `json:"implicit,omitempty"`
	CaseID     string   `json:"case_id,omitempty"`
	ChunkID    string   `json:"chunk_id,omitempty"`
}

// References returns every entity id the event points at
func (e *Event) References() []string {
	refs := []string{e.AgentID}
	refs = append(refs, e.PatientIDs...)
	if e.TemporalID != "" {
		refs = append(refs, e.TemporalID)
	}
	if e.SpatialID != "" {
		refs = append(refs, e.SpatialID)
	}
	return refs
}

// Clone returns a deep copy of the event
func (e *Event) Clone() *Event {
	clone := *e
	clone.PatientIDs = append([]string(nil), e.PatientIDs...)
	return &clone
}
