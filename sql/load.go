package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed vectors.sql
var vectorsSQL string

// Function list for verification
var VectorsFunctions = []string{
	"init_entity_vectors",
	"upsert_entity_vector",
	"select_entity_vector",
	"select_similar_entities",
	"cosine_similarity",
	"delete_entity_vector",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadVectorsSql loads entity vector SQL functions
func LoadVectorsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, VectorsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing vectors functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(vectorsSQL)
	if err != nil {
		return fmt.Errorf("error executing vectors SQL: %w", err)
	}

	exist, err := checkFunctions(db, VectorsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL vectors functions loaded successfully")
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
