package model

import (
	"path/filepath"
	"time"
)

// ConflictPolicy decides which state value survives when neither the
// existing nor the incoming write carries a parseable timestamp
type ConflictPolicy string

const (
	// ConflictIncomingWins overlays in extraction order, the later write wins
	ConflictIncomingWins ConflictPolicy = "incoming-wins"
	// ConflictKeepExisting keeps the first recorded value
	ConflictKeepExisting ConflictPolicy = "keep-existing"
)

// Config represents the configuration of a workspacer instance
type Config struct {
	// Domain names the workspace and its snapshot/cursor files
	Domain string `json:"domain"`
	// DataDir is where snapshot and cursor files live
	DataDir string `json:"data_dir"`
	// Calibration runs merges on an in-memory copy without persisting
	Calibration bool `json:"calibration"`

	// Resolution parameters
	SimilarityThreshold float64       `json:"similarity_threshold"`
	OracleTimeout       time.Duration `json:"oracle_timeout"`
	ResolveWorkers      int           `json:"resolve_workers"`

	// Ingestion parameters
	BatchSize int `json:"batch_size"`

	// Ontology parameters
	PromoteThreshold int `json:"promote_threshold"` // Dynamic terms seen more often join the active vocabulary
	OntologyTopK     int `json:"ontology_top_k"`

	// State overlay policy when timestamps are missing
	StateConflict ConflictPolicy `json:"state_conflict"`
}

// DefaultConfig returns a sensible default configuration for a domain
func DefaultConfig(domain string) *Config {
	return &Config{
		Domain:              domain,
		DataDir:             "./data",
		Calibration:         false,
		SimilarityThreshold: 0.85,
		OracleTimeout:       10 * time.Second,
		ResolveWorkers:      4,
		BatchSize:           10,
		PromoteThreshold:    3,
		OntologyTopK:        25,
		StateConflict:       ConflictIncomingWins,
	}
}

// SnapshotPath returns the per-domain snapshot file path
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, c.Domain+"_workspace.toon")
}

// CursorPath returns the per-domain cursor file path
func (c *Config) CursorPath() string {
	return filepath.Join(c.DataDir, c.Domain+"_cursor.toon")
}
