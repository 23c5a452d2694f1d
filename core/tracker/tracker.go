// Package tracker persists the ingestion cursor of a domain, so an
// interrupted run resumes where it left off instead of silently skipping or
// redoing everything.
package tracker

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
	"github.com/siherrmann/workspacer/toon"
)

// Tracker owns the durable cursor of one domain
type Tracker struct {
	path   string
	cursor model.Cursor
	logger *slog.Logger
}

// Load reads the cursor file once at startup. A missing file yields a fresh
// cursor at index 0; a cursor belonging to another domain is an error.
func Load(path string, domain string, logger *slog.Logger) (*Tracker, error) {
	t := &Tracker{
		path:   path,
		cursor: model.Cursor{Domain: domain},
		logger: logger,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, helper.NewError("reading cursor file", err)
	}

	cursor, err := decodeCursor(data)
	if err != nil {
		return nil, err
	}
	if cursor.Domain != domain {
		return nil, helper.NewError("loading cursor", fmt.Errorf("cursor belongs to domain %q, not %q", cursor.Domain, domain))
	}
	t.cursor = cursor

	logger.Info("Resuming ingestion",
		slog.String("domain", domain),
		slog.Int("last_committed_index", cursor.LastCommittedIndex))

	return t, nil
}

// Cursor returns the current cursor value
func (t *Tracker) Cursor() model.Cursor {
	return t.cursor
}

// SetTotals records the run parameters without moving the position
func (t *Tracker) SetTotals(batchSize int, totalDocuments int) {
	t.cursor.BatchSize = batchSize
	t.cursor.TotalDocuments = totalDocuments
}

// Advance moves the committed position. Callers only do this after the
// snapshot write for the document has been confirmed.
func (t *Tracker) Advance(index int) {
	t.cursor.LastCommittedIndex = index
}

// Save writes the cursor via temp file and rename
func (t *Tracker) Save() error {
	data, err := encodeCursor(t.cursor)
	if err != nil {
		return err
	}
	return helper.WriteFileAtomic(t.path, data)
}

func encodeCursor(cursor model.Cursor) ([]byte, error) {
	text, err := toon.Encode([]toon.Block{
		{
			Name: "cursor",
			Records: []toon.Record{{
				{Key: "domain", Value: toon.String(cursor.Domain)},
				{Key: "last_committed_index", Value: toon.String(strconv.Itoa(cursor.LastCommittedIndex))},
				{Key: "batch_size", Value: toon.String(strconv.Itoa(cursor.BatchSize))},
				{Key: "total_documents", Value: toon.String(strconv.Itoa(cursor.TotalDocuments))},
			}},
		},
	})
	if err != nil {
		return nil, helper.NewError("encoding cursor", err)
	}
	return []byte(text), nil
}

func decodeCursor(data []byte) (model.Cursor, error) {
	blocks, err := toon.Decode(string(data))
	if err != nil {
		return model.Cursor{}, helper.NewError("decoding cursor", err)
	}

	for _, block := range blocks {
		if block.Name != "cursor" || len(block.Records) != 1 {
			continue
		}
		record := block.Records[0]
		cursor := model.Cursor{Domain: record.GetString("domain")}
		if cursor.LastCommittedIndex, err = strconv.Atoi(record.GetString("last_committed_index")); err != nil {
			return model.Cursor{}, helper.NewError("decoding cursor", err)
		}
		if cursor.BatchSize, err = strconv.Atoi(record.GetString("batch_size")); err != nil {
			return model.Cursor{}, helper.NewError("decoding cursor", err)
		}
		if cursor.TotalDocuments, err = strconv.Atoi(record.GetString("total_documents")); err != nil {
			return model.Cursor{}, helper.NewError("decoding cursor", err)
		}
		return cursor, nil
	}

	return model.Cursor{}, helper.NewError("decoding cursor", fmt.Errorf("no cursor block found"))
}
