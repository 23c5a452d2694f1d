package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceIDs(t *testing.T) {
	t.Run("Entity ids are zero padded and sequential", func(t *testing.T) {
		ws := NewWorkspace("legal")
		assert.Equal(t, "ent_000001", ws.NewEntityID())
		assert.Equal(t, "ent_000002", ws.NewEntityID())
		assert.Equal(t, "evt_000001", ws.NewEventID())
		assert.Equal(t, "q_000001", ws.NewQuestionID())
	})

	t.Run("Lexical order equals issue order", func(t *testing.T) {
		ws := NewWorkspace("legal")
		prev := ws.NewEntityID()
		for i := 0; i < 50; i++ {
			next := ws.NewEntityID()
			assert.Less(t, prev, next, "Expected ids to sort in issue order")
			prev = next
		}
	})
}

func TestWorkspaceEntities(t *testing.T) {
	t.Run("EntitiesByType filters in id order", func(t *testing.T) {
		ws := NewWorkspace("legal")
		for _, e := range []*Entity{
			{ID: ws.NewEntityID(), Name: "John Smith", Type: EntityTypePerson},
			{ID: ws.NewEntityID(), Name: "Acme Corp", Type: EntityTypeOrganization},
			{ID: ws.NewEntityID(), Name: "Jane Doe", Type: EntityTypePerson},
		} {
			ws.AddEntity(e)
		}

		people := ws.EntitiesByType(EntityTypePerson)
		require.Len(t, people, 2)
		assert.Equal(t, "John Smith", people[0].Name)
		assert.Equal(t, "Jane Doe", people[1].Name)
	})
}

func TestWorkspaceClone(t *testing.T) {
	t.Run("Clone is a deep copy", func(t *testing.T) {
		ws := NewWorkspace("legal")
		e := &Entity{ID: ws.NewEntityID(), Name: "John Smith", Type: EntityTypePerson, States: map[string]StateValue{}}
		e.AddAlias("John Smith")
		ws.AddEntity(e)
		ws.Events = append(ws.Events, &Event{ID: ws.NewEventID(), Verb: "filed", AgentID: e.ID})
		ws.Questions = append(ws.Questions, &Question{ID: ws.NewQuestionID(), Text: "Will bail be granted?"})
		ws.Ontology[Term{Kind: TermKindVerb, Text: "filed"}] = 1

		clone := ws.Clone()
		clone.Entities[e.ID].AddAlias("J. Smith")
		clone.Events[0].Verb = "dismissed"
		clone.Questions[0].Answered = true
		clone.Ontology[Term{Kind: TermKindVerb, Text: "filed"}] = 99
		clone.NewEntityID()

		assert.Equal(t, []string{"John Smith"}, ws.Entities[e.ID].Aliases, "Expected original entity untouched")
		assert.Equal(t, "filed", ws.Events[0].Verb, "Expected original event untouched")
		assert.False(t, ws.Questions[0].Answered, "Expected original question untouched")
		assert.Equal(t, 1, ws.Ontology[Term{Kind: TermKindVerb, Text: "filed"}], "Expected original ontology untouched")
		assert.Equal(t, uint64(1), ws.NextEntity, "Expected original counters untouched")
	})
}

func TestWorkspaceStatistics(t *testing.T) {
	t.Run("Counts entities, cases and unanswered questions", func(t *testing.T) {
		ws := NewWorkspace("legal")
		a := &Entity{ID: ws.NewEntityID(), Name: "John Smith", Type: EntityTypePerson}
		a.AddCase("case-1")
		a.AddCase("case-2")
		b := &Entity{ID: ws.NewEntityID(), Name: "Acme Corp", Type: EntityTypeOrganization}
		b.AddCase("case-1")
		ws.AddEntity(a)
		ws.AddEntity(b)
		ws.Questions = append(ws.Questions,
			&Question{ID: ws.NewQuestionID(), Text: "open", Answered: false},
			&Question{ID: ws.NewQuestionID(), Text: "closed", Answered: true, Answer: "yes"},
		)

		stats := ws.Statistics()
		assert.Equal(t, 2, stats.TotalEntities)
		assert.Equal(t, 1, stats.EntitiesByType[EntityTypePerson])
		assert.Equal(t, 2, stats.TotalCases, "Expected distinct cases across entities")
		assert.Equal(t, 2, stats.TotalQuestions)
		assert.Equal(t, 1, stats.UnansweredQuestions)
	})
}
