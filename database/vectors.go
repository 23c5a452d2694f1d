package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
	loadSql "github.com/siherrmann/workspacer/sql"
)

// EntityVectorsDBHandlerFunctions defines the interface for entity vector
// database operations.
type EntityVectorsDBHandlerFunctions interface {
	UpsertVector(domain string, entityID string, embedding []float32) error
	SelectVector(domain string, entityID string) ([]float32, error)
	SelectSimilar(domain string, embedding []float32, limit int) ([]*model.EntityMatch, error)
	CosineSimilarity(a []float32, b []float32) (float64, error)
	DeleteVector(domain string, entityID string) error
}

// EntityVectorsDBHandler handles entity vector database operations
type EntityVectorsDBHandler struct {
	db *helper.Database
}

// NewEntityVectorsDBHandler creates a new entity vectors database handler.
// It loads the vector SQL functions and creates the table with the given
// embedding dimension. If force is true, it will reload the SQL functions
// even if they already exist.
func NewEntityVectorsDBHandler(db *helper.Database, dimension int, force bool) (*EntityVectorsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if dimension <= 0 {
		return nil, helper.NewError("dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", dimension))
	}

	vectorsDbHandler := &EntityVectorsDBHandler{
		db: db,
	}

	err := loadSql.LoadVectorsSql(vectorsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load vectors sql", err)
	}

	err = vectorsDbHandler.CreateTable(dimension)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntityVectorsDBHandler")

	return vectorsDbHandler, nil
}

// CreateTable creates the 'entity_vectors' table with its index.
// If the table already exists, it does not create it again.
func (h *EntityVectorsDBHandler) CreateTable(dimension int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entity_vectors($1);`, dimension)
	if err != nil {
		return helper.NewError("init entity vectors table", err)
	}

	h.db.Logger.Info("Checked/created table entity_vectors")

	return nil
}

// UpsertVector stores or replaces the embedding of an entity
func (h *EntityVectorsDBHandler) UpsertVector(domain string, entityID string, embedding []float32) error {
	_, err := h.db.Instance.Exec(
		`SELECT upsert_entity_vector($1, $2, $3)`,
		domain,
		entityID,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectVector retrieves the embedding of an entity. It returns nil without
// an error when no vector is stored.
func (h *EntityVectorsDBHandler) SelectVector(domain string, entityID string) ([]float32, error) {
	var vector pgvector.Vector
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity_vector($1, $2)`,
		domain,
		entityID,
	)

	err := row.Scan(&vector)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return vector.Slice(), nil
}

// SelectSimilar retrieves the entities closest to the given embedding,
// ordered by descending cosine similarity
func (h *EntityVectorsDBHandler) SelectSimilar(domain string, embedding []float32, limit int) ([]*model.EntityMatch, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_similar_entities($1, $2, $3)`,
		domain,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var matches []*model.EntityMatch
	for rows.Next() {
		match := &model.EntityMatch{}
		err := rows.Scan(
			&match.EntityID,
			&match.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		matches = append(matches, match)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return matches, nil
}

// CosineSimilarity computes the cosine similarity of two embeddings in the
// database, matching the operator the similarity search uses
func (h *EntityVectorsDBHandler) CosineSimilarity(a []float32, b []float32) (float64, error) {
	var similarity float64
	row := h.db.Instance.QueryRow(
		`SELECT cosine_similarity($1::vector, $2::vector)`,
		pgvector.NewVector(a),
		pgvector.NewVector(b),
	)

	err := row.Scan(&similarity)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return similarity, nil
}

// DeleteVector removes the embedding of an entity
func (h *EntityVectorsDBHandler) DeleteVector(domain string, entityID string) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_entity_vector($1, $2)`,
		domain,
		entityID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
