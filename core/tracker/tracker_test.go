package tracker

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad(t *testing.T) {
	t.Run("Missing file yields a fresh cursor", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "legal_cursor.toon")

		tracker, err := Load(path, "legal", testLogger())
		require.NoError(t, err, "Expected a missing cursor file to start fresh")

		cursor := tracker.Cursor()
		assert.Equal(t, "legal", cursor.Domain)
		assert.Equal(t, 0, cursor.LastCommittedIndex)
	})

	t.Run("Round trips through save and load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "legal_cursor.toon")

		tracker, err := Load(path, "legal", testLogger())
		require.NoError(t, err)
		tracker.SetTotals(10, 250)
		tracker.Advance(42)
		require.NoError(t, tracker.Save())

		reloaded, err := Load(path, "legal", testLogger())
		require.NoError(t, err)
		cursor := reloaded.Cursor()
		assert.Equal(t, 42, cursor.LastCommittedIndex, "Expected the committed position restored")
		assert.Equal(t, 10, cursor.BatchSize)
		assert.Equal(t, 250, cursor.TotalDocuments)
	})

	t.Run("Rejects a cursor from another domain", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cursor.toon")
		tracker, err := Load(path, "finance", testLogger())
		require.NoError(t, err)
		require.NoError(t, tracker.Save())

		_, err = Load(path, "legal", testLogger())
		assert.Error(t, err, "Expected a domain mismatch to be rejected")
	})

	t.Run("Rejects a corrupt cursor file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cursor.toon")
		require.NoError(t, os.WriteFile(path, []byte("not a cursor"), 0644))

		_, err := Load(path, "legal", testLogger())
		assert.Error(t, err)
	})
}

func TestSave(t *testing.T) {
	t.Run("Save leaves no temporary file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "legal_cursor.toon")

		tracker, err := Load(path, "legal", testLogger())
		require.NoError(t, err)
		tracker.Advance(7)
		require.NoError(t, tracker.Save())

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "Expected only the cursor file itself")
	})
}
