package model

// TermKind categorizes ontology terms
type TermKind string

const (
	TermKindRole  TermKind = "role"
	TermKindVerb  TermKind = "verb"
	TermKindState TermKind = "state"
	TermKindType  TermKind = "type"
)

// Term is one vocabulary entry of a domain ontology
type Term struct {
	Kind TermKind `json:"kind"`
	Text string   `json:"text"`
}

// OntologyDict maps terms to their observed frequency across a domain
type OntologyDict map[Term]int

// Clone returns a copy of the dictionary
func (d OntologyDict) Clone() OntologyDict {
	clone := make(OntologyDict, len(d))
	for term, count := range d {
		clone[term] = count
	}
	return clone
}
