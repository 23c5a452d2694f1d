package model

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Document represents a source document handed to the ingestion run
type Document struct {
	RID      uuid.UUID `json:"rid"`
	CaseID   string    `json:"case_id,omitempty"`
	Title    string    `json:"title"`
	Source   string    `json:"source,omitempty"`
	Content  string    `json:"content,omitempty"`
	Metadata Metadata  `json:"metadata,omitempty"`
}

// NewDocument creates a document from raw text
func NewDocument(caseID string, title string, content string) *Document {
	return &Document{
		RID:     uuid.New(),
		CaseID:  caseID,
		Title:   title,
		Content: content,
	}
}

// NewDocumentFromFile reads a file and creates a Document with the file content.
// The title defaults to the filename, and source to the file path.
func NewDocumentFromFile(caseID string, filePath string, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	// Get filename without extension for default title
	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	return &Document{
		RID:      uuid.New(),
		CaseID:   caseID,
		Title:    title,
		Source:   filePath,
		Content:  string(content),
		Metadata: metadata,
	}, nil
}
