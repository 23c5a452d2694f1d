package ontology

import (
	"testing"

	"github.com/siherrmann/workspacer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	t.Run("Counts terms per kind", func(t *testing.T) {
		agg := New(3)
		dict := model.OntologyDict{}

		agg.Update(dict, []model.Term{
			{Kind: model.TermKindRole, Text: "defendant"},
			{Kind: model.TermKindRole, Text: "defendant"},
			{Kind: model.TermKindVerb, Text: "filed"},
		})

		assert.Equal(t, 2, dict[model.Term{Kind: model.TermKindRole, Text: "defendant"}])
		assert.Equal(t, 1, dict[model.Term{Kind: model.TermKindVerb, Text: "filed"}])
	})

	t.Run("Ignores empty term text", func(t *testing.T) {
		agg := New(3)
		dict := model.OntologyDict{}
		agg.Update(dict, []model.Term{{Kind: model.TermKindRole, Text: ""}})
		assert.Empty(t, dict)
	})
}

func TestSummary(t *testing.T) {
	t.Run("Orders by count descending with stable ties", func(t *testing.T) {
		agg := New(3)
		dict := model.OntologyDict{
			{Kind: model.TermKindRole, Text: "witness"}:   2,
			{Kind: model.TermKindRole, Text: "defendant"}: 5,
			{Kind: model.TermKindVerb, Text: "filed"}:     2,
			{Kind: model.TermKindVerb, Text: "arrested"}:  2,
		}

		summary := agg.Summary(dict, 0)
		require.Len(t, summary, 4)
		assert.Equal(t, "defendant", summary[0].Term.Text)
		// Ties: role before verb, then alphabetical
		assert.Equal(t, "witness", summary[1].Term.Text)
		assert.Equal(t, "arrested", summary[2].Term.Text)
		assert.Equal(t, "filed", summary[3].Term.Text)
	})

	t.Run("Truncates to topK", func(t *testing.T) {
		agg := New(3)
		dict := model.OntologyDict{
			{Kind: model.TermKindRole, Text: "a"}: 3,
			{Kind: model.TermKindRole, Text: "b"}: 2,
			{Kind: model.TermKindRole, Text: "c"}: 1,
		}

		summary := agg.Summary(dict, 2)
		require.Len(t, summary, 2)
		assert.Equal(t, "a", summary[0].Term.Text)
	})
}

func TestActiveVocabulary(t *testing.T) {
	t.Run("Seed terms are always active", func(t *testing.T) {
		agg := New(3)
		agg.Seed(model.TermKindRole, "defendant", "plaintiff")

		active := agg.ActiveVocabulary(model.OntologyDict{})
		assert.Equal(t, []string{"defendant", "plaintiff"}, active[model.TermKindRole])
	})

	t.Run("Dynamic terms promote above the threshold", func(t *testing.T) {
		agg := New(3)
		agg.Seed(model.TermKindRole, "defendant")
		dict := model.OntologyDict{
			{Kind: model.TermKindRole, Text: "custodian"}: 4,
			{Kind: model.TermKindRole, Text: "bystander"}: 3,
		}

		active := agg.ActiveVocabulary(dict)
		assert.Equal(t, []string{"defendant", "custodian"}, active[model.TermKindRole],
			"Expected only terms seen more than the threshold to promote")
	})

	t.Run("Promoted term already in seed is not duplicated", func(t *testing.T) {
		agg := New(1)
		agg.Seed(model.TermKindRole, "defendant")
		dict := model.OntologyDict{{Kind: model.TermKindRole, Text: "defendant"}: 10}

		active := agg.ActiveVocabulary(dict)
		assert.Equal(t, []string{"defendant"}, active[model.TermKindRole])
	})
}

func TestContext(t *testing.T) {
	t.Run("Renders TOON list blocks", func(t *testing.T) {
		agg := New(3)
		agg.Seed(model.TermKindRole, "defendant")
		agg.Seed(model.TermKindVerb, "filed")

		context, err := agg.Context(model.OntologyDict{})
		require.NoError(t, err)
		assert.Contains(t, context, "roles[1]{value}\ndefendant\n")
		assert.Contains(t, context, "verbs[1]{value}\nfiled\n")
		assert.Contains(t, context, "states[0]{}")
		assert.Contains(t, context, "types[0]{}")
	})

	t.Run("Deterministic output", func(t *testing.T) {
		agg := New(0)
		dict := model.OntologyDict{
			{Kind: model.TermKindRole, Text: "witness"}:   2,
			{Kind: model.TermKindRole, Text: "defendant"}: 1,
			{Kind: model.TermKindVerb, Text: "filed"}:     1,
		}

		first, err := agg.Context(dict)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := agg.Context(dict)
			require.NoError(t, err)
			assert.Equal(t, first, again, "Expected map iteration not to leak into the rendering")
		}
	})
}

func TestRebuild(t *testing.T) {
	t.Run("Recomputes counts from workspace tables", func(t *testing.T) {
		ws := model.NewWorkspace("legal")
		e := &model.Entity{
			ID:     ws.NewEntityID(),
			Name:   "John Smith",
			Type:   model.EntityTypePerson,
			Roles:  []string{"defendant"},
			States: map[string]model.StateValue{"custody": {Value: "detained"}},
		}
		ws.AddEntity(e)
		ws.Events = append(ws.Events, &model.Event{ID: ws.NewEventID(), Verb: "arrested", AgentID: e.ID})

		dict := Rebuild(ws)
		assert.Equal(t, 1, dict[model.Term{Kind: model.TermKindType, Text: "person"}])
		assert.Equal(t, 1, dict[model.Term{Kind: model.TermKindRole, Text: "defendant"}])
		assert.Equal(t, 1, dict[model.Term{Kind: model.TermKindState, Text: "custody"}])
		assert.Equal(t, 1, dict[model.Term{Kind: model.TermKindVerb, Text: "arrested"}])
	})
}

func TestCandidateTerms(t *testing.T) {
	t.Run("Extracts type, roles and state keys", func(t *testing.T) {
		c := model.CandidateEntity{
			Name:   "John Smith",
			Type:   model.EntityTypePerson,
			Roles:  []string{"defendant"},
			States: []model.CandidateState{{Key: "custody", Value: "detained"}},
		}

		terms := CandidateTerms(c)
		assert.Contains(t, terms, model.Term{Kind: model.TermKindType, Text: "person"})
		assert.Contains(t, terms, model.Term{Kind: model.TermKindRole, Text: "defendant"})
		assert.Contains(t, terms, model.Term{Kind: model.TermKindState, Text: "custody"})
	})
}
