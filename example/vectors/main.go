package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	workspacer "github.com/siherrmann/workspacer"
	"github.com/siherrmann/workspacer/core/pipeline"
	"github.com/siherrmann/workspacer/database"
	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
	loadSql "github.com/siherrmann/workspacer/sql"
)

const sampleContent = `Acme Corp filed a lawsuit against John Smith in March 2020.

Smith, the defendant, was detained in Hamburg on March 15. The court scheduled
a bail hearing for early April.

J. Smith was released on bail on April 2 after Acme Corp declined to object.`

func main() {
	// Start a test PostgreSQL container with pgvector
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Point the configuration at the container
	os.Setenv("WORKSPACER_DB_HOST", "localhost")
	os.Setenv("WORKSPACER_DB_PORT", dbPort)
	os.Setenv("WORKSPACER_DB_USER", "workspacer")
	os.Setenv("WORKSPACER_DB_PASSWORD", "workspacer")
	os.Setenv("WORKSPACER_DB_NAME", "workspacer")

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		log.Fatalf("Failed to read database configuration: %v", err)
	}

	logger := slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelInfo},
	}))
	db := helper.NewDatabase("workspacer", dbConfig, logger)
	defer db.Close()

	if err := loadSql.Init(db.Instance); err != nil {
		log.Fatalf("Failed to initialize database extensions: %v", err)
	}

	// all-MiniLM-L6-v2 produces 384-dimensional embeddings
	vectors, err := database.NewEntityVectorsDBHandler(db, 384, false)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}

	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	oracle := database.NewVectorOracle("legal", vectors, embedder)

	config := model.DefaultConfig("legal")
	config.DataDir = "./data"

	w, err := workspacer.New(config, oracle)
	if err != nil {
		log.Fatalf("Failed to create workspacer: %v", err)
	}

	extractor, err := pipeline.NERExtractor()
	if err != nil {
		log.Fatalf("Failed to create extractor: %v", err)
	}
	w.SetPipeline(pipeline.NewPipeline(
		pipeline.SemanticChunker(embedder, 500, 0.7),
		extractor,
	))

	doc := model.NewDocument("case-2020-17", "Initial filing", sampleContent)

	fmt.Println("Ingesting document...")
	if err := w.Run(context.Background(), []*model.Document{doc}); err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}

	stats := w.Statistics()
	fmt.Printf("\nWorkspace %q at checkpoint %d with %d entities\n",
		stats.Domain, stats.Checkpoint, stats.TotalEntities)

	for _, person := range w.EntitiesByType(model.EntityTypePerson) {
		fmt.Printf("Person: %s, aliases %v, cases %v\n", person.Name, person.Aliases, person.Cases)
	}

	// The vector store doubles as a similarity index over the workspace
	embedding, err := embedder("Smith")
	if err != nil {
		log.Fatalf("Failed to embed query: %v", err)
	}
	matches, err := vectors.SelectSimilar("legal", embedding, 5)
	if err != nil {
		log.Fatalf("Failed to search similar entities: %v", err)
	}

	fmt.Println("\nEntities similar to \"Smith\":")
	for _, match := range matches {
		view, err := w.QueryByEntity(match.EntityID)
		if err != nil {
			continue
		}
		fmt.Printf("  %.4f %s (%s)\n", match.Similarity, view.Entity.Name, match.EntityID)
	}

	fmt.Println("\nVectors example completed successfully!")
}
