// Package ontology maintains the per-domain term frequency dictionary and
// renders the active vocabulary for the next extraction call.
package ontology

import (
	"sort"

	"github.com/siherrmann/workspacer/model"
	"github.com/siherrmann/workspacer/toon"
)

// TermCount is one entry of a ranked ontology summary
type TermCount struct {
	Term  model.Term `json:"term"`
	Count int        `json:"count"`
}

// Aggregator carries the seed vocabulary and the promotion threshold.
// Counts themselves live in the workspace's OntologyDict, so rollback of a
// batch rolls the counts back with it.
type Aggregator struct {
	promote int
	seed    map[model.TermKind][]string
}

// New creates an aggregator. Dynamic terms seen more than promoteThreshold
// times join the active vocabulary alongside the seed.
func New(promoteThreshold int) *Aggregator {
	return &Aggregator{
		promote: promoteThreshold,
		seed:    map[model.TermKind][]string{},
	}
}

// Seed adds terms to the always-active seed vocabulary of a kind
func (a *Aggregator) Seed(kind model.TermKind, terms ...string) {
	for _, term := range terms {
		if term == "" || containsTerm(a.seed[kind], term) {
			continue
		}
		a.seed[kind] = append(a.seed[kind], term)
	}
}

// Update increments the observed counts. Cost is proportional to the number
// of terms in the batch, not the dictionary size.
func (a *Aggregator) Update(dict model.OntologyDict, terms []model.Term) {
	for _, term := range terms {
		if term.Text == "" {
			continue
		}
		dict[term]++
	}
}

// Summary returns the topK most frequent terms. Sorting happens here, not on
// the update path; ties break by kind then text so the order is stable.
func (a *Aggregator) Summary(dict model.OntologyDict, topK int) []TermCount {
	counts := make([]TermCount, 0, len(dict))
	for term, count := range dict {
		counts = append(counts, TermCount{Term: term, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		if counts[i].Term.Kind != counts[j].Term.Kind {
			return counts[i].Term.Kind < counts[j].Term.Kind
		}
		return counts[i].Term.Text < counts[j].Term.Text
	})
	if topK > 0 && len(counts) > topK {
		counts = counts[:topK]
	}
	return counts
}

// ActiveVocabulary returns, per kind, the seed terms in seed order followed
// by promoted dynamic terms in alphabetical order
func (a *Aggregator) ActiveVocabulary(dict model.OntologyDict) map[model.TermKind][]string {
	active := map[model.TermKind][]string{}
	for kind, terms := range a.seed {
		active[kind] = append([]string{}, terms...)
	}

	var promoted []model.Term
	for term, count := range dict {
		if count > a.promote && !containsTerm(active[term.Kind], term.Text) {
			promoted = append(promoted, term)
		}
	}
	sort.Slice(promoted, func(i, j int) bool {
		if promoted[i].Kind != promoted[j].Kind {
			return promoted[i].Kind < promoted[j].Kind
		}
		return promoted[i].Text < promoted[j].Text
	})
	for _, term := range promoted {
		active[term.Kind] = append(active[term.Kind], term.Text)
	}

	return active
}

// Context renders the active vocabulary as TOON list blocks for the next
// extraction call
func (a *Aggregator) Context(dict model.OntologyDict) (string, error) {
	active := a.ActiveVocabulary(dict)
	blocks := []toon.Block{
		toon.List("roles", active[model.TermKindRole]),
		toon.List("verbs", active[model.TermKindVerb]),
		toon.List("states", active[model.TermKindState]),
		toon.List("types", active[model.TermKindType]),
	}
	return toon.Encode(blocks)
}

// Rebuild recomputes a dictionary from the workspace tables, for recovery
// after a snapshot without ontology rows
func Rebuild(ws *model.Workspace) model.OntologyDict {
	agg := New(0)
	dict := model.OntologyDict{}
	for _, id := range ws.EntityIDs {
		e := ws.Entities[id]
		terms := []model.Term{{Kind: model.TermKindType, Text: string(e.Type)}}
		for _, role := range e.Roles {
			terms = append(terms, model.Term{Kind: model.TermKindRole, Text: role})
		}
		for key := range e.States {
			terms = append(terms, model.Term{Kind: model.TermKindState, Text: key})
		}
		agg.Update(dict, terms)
	}
	for _, ev := range ws.Events {
		agg.Update(dict, []model.Term{{Kind: model.TermKindVerb, Text: ev.Verb}})
	}
	return dict
}

// CandidateTerms extracts the ontology terms a candidate entity contributes
func CandidateTerms(c model.CandidateEntity) []model.Term {
	terms := []model.Term{{Kind: model.TermKindType, Text: string(c.Type)}}
	for _, role := range c.Roles {
		terms = append(terms, model.Term{Kind: model.TermKindRole, Text: role})
	}
	for _, state := range c.States {
		terms = append(terms, model.Term{Kind: model.TermKindState, Text: state.Key})
	}
	return terms
}

// VerbTerm wraps an event verb as an ontology term
func VerbTerm(verb string) model.Term {
	return model.Term{Kind: model.TermKindVerb, Text: verb}
}

func containsTerm(terms []string, term string) bool {
	for _, t := range terms {
		if t == term {
			return true
		}
	}
	return false
}
