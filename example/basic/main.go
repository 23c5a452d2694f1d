package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	workspacer "github.com/siherrmann/workspacer"
	"github.com/siherrmann/workspacer/core/pipeline"
	"github.com/siherrmann/workspacer/core/resolver"
	"github.com/siherrmann/workspacer/model"
)

// simpleOracle scores two references by their shared surname, enough to
// merge "John Smith" and "J. Smith" without an embedding model
func simpleOracle() resolver.OracleFunc {
	return func(ctx context.Context, a model.EntityRef, b model.EntityRef) (float64, error) {
		fieldsA := strings.Fields(a.Name)
		fieldsB := strings.Fields(b.Name)
		if len(fieldsA) == 0 || len(fieldsB) == 0 {
			return 0, nil
		}
		if strings.EqualFold(fieldsA[len(fieldsA)-1], fieldsB[len(fieldsB)-1]) {
			return 0.9, nil
		}
		return 0.1, nil
	}
}

// scriptedExtractor replays hand-written candidate batches, one per chunk,
// standing in for an LLM extraction supplier
func scriptedExtractor(batches []*model.Batch) pipeline.ExtractFunc {
	i := 0
	return func(ctx context.Context, text string, chunkID string, ontologyContext string) (*model.Batch, error) {
		if i >= len(batches) {
			return nil, nil
		}
		batch := batches[i]
		i++
		return batch, nil
	}
}

func main() {
	config := model.DefaultConfig("legal")
	config.DataDir = "./data"
	config.SimilarityThreshold = 0.8

	w, err := workspacer.New(config, simpleOracle())
	if err != nil {
		log.Fatalf("Failed to create workspacer: %v", err)
	}
	w.SeedOntology(model.TermKindRole, "defendant", "plaintiff", "witness", "judge")
	w.SeedOntology(model.TermKindVerb, "sued", "testified", "ruled")

	first := model.NewBatch("", "")
	first.Entities = []model.CandidateEntity{
		{
			LocalID: "e1", Name: "John Smith", Type: model.EntityTypePerson,
			Roles: []string{"defendant"},
			States: []model.CandidateState{
				{Key: "custody", Value: "detained", RawDate: "2020-03-15"},
			},
		},
		{LocalID: "e2", Name: "Acme Corp", Type: model.EntityTypeOrganization, Roles: []string{"plaintiff"}},
	}
	first.Events = []model.CandidateEvent{
		{Verb: "sued", Agent: "e2", Patients: []string{"e1"}},
	}
	first.Questions = []model.CandidateQuestion{
		{Subject: "e1", Text: "Will bail be granted?"},
	}

	second := model.NewBatch("", "")
	second.Entities = []model.CandidateEntity{
		{
			LocalID: "e1", Name: "J. Smith", Type: model.EntityTypePerson,
			States: []model.CandidateState{
				{Key: "custody", Value: "released on bail", RawDate: "2020-04-02"},
			},
		},
	}

	w.SetPipeline(pipeline.NewPipeline(
		pipeline.ParagraphChunker(500),
		scriptedExtractor([]*model.Batch{first, second}),
	))

	documents := []*model.Document{
		model.NewDocument("case-2020-17", "Initial filing", "Acme Corp has sued John Smith. Smith was detained on March 15."),
		model.NewDocument("case-2020-17", "Bail hearing", "J. Smith was released on bail on April 2."),
	}

	fmt.Println("Ingesting documents...")
	if err := w.Run(context.Background(), documents); err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}

	stats := w.Statistics()
	fmt.Printf("\nWorkspace %q at checkpoint %d\n", stats.Domain, stats.Checkpoint)
	fmt.Printf("Entities: %d, Events: %d, Questions: %d\n", stats.TotalEntities, stats.TotalEvents, stats.TotalQuestions)

	for _, person := range w.EntitiesByType(model.EntityTypePerson) {
		view, err := w.QueryByEntity(person.ID)
		if err != nil {
			log.Fatalf("Failed to query entity: %v", err)
		}
		fmt.Printf("\n--- %s (%s) ---\n", view.Entity.Name, view.Entity.ID)
		fmt.Printf("Aliases: %v\n", view.Entity.Aliases)
		fmt.Printf("Roles: %v\n", view.Entity.Roles)
		for key, state := range view.Entity.States {
			fmt.Printf("State %s: %s (as of %s)\n", key, state.Value, state.RawDate)
		}
		for _, event := range view.Events {
			fmt.Printf("Event: %s %s\n", event.ID, event.Verb)
		}
	}

	fmt.Println("\nOpen questions:")
	for _, question := range w.UnansweredQuestions() {
		fmt.Printf("  %s: %s\n", question.ID, question.Text)
	}

	fmt.Println("\nOntology summary:")
	for _, term := range w.OntologySummary(10) {
		fmt.Printf("  %s %q seen %d times\n", term.Term.Kind, term.Term.Text, term.Count)
	}

	fmt.Println("\nBasic example completed successfully!")
}
