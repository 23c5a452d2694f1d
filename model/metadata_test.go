package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataMarshal(t *testing.T) {
	t.Run("Marshal empty metadata", func(t *testing.T) {
		m := Metadata{}

		bytes, err := m.Marshal()

		require.NoError(t, err, "Expected Marshal to not return an error")
		assert.Equal(t, []byte("{}"), bytes, "Expected empty metadata to marshal to an empty JSON object")
	})

	t.Run("Marshal document provenance fields", func(t *testing.T) {
		m := Metadata{
			"source":   "court-transcript",
			"page":     17,
			"redacted": false,
		}

		bytes, err := m.Marshal()
		require.NoError(t, err, "Expected Marshal to not return an error")

		var result map[string]interface{}
		err = json.Unmarshal(bytes, &result)
		require.NoError(t, err, "Expected marshaled bytes to be valid JSON")
		assert.Equal(t, "court-transcript", result["source"])
		assert.Equal(t, float64(17), result["page"]) // JSON numbers become float64
		assert.Equal(t, false, result["redacted"])
	})

	t.Run("Marshal nested provenance", func(t *testing.T) {
		m := Metadata{
			"scan": map[string]interface{}{
				"dpi": 300,
			},
			"exhibits": []string{"A", "B"},
		}

		bytes, err := m.Marshal()

		require.NoError(t, err, "Expected Marshal to not return an error")
		assert.Contains(t, string(bytes), "scan", "Expected nested key in output")
		assert.Contains(t, string(bytes), "exhibits", "Expected array key in output")
	})

	t.Run("Marshal nil metadata", func(t *testing.T) {
		var m Metadata

		bytes, err := m.Marshal()

		require.NoError(t, err, "Expected Marshal to not return an error")
		assert.Equal(t, []byte("null"), bytes, "Expected nil metadata to marshal to null")
	})
}

func TestMetadataUnmarshal(t *testing.T) {
	t.Run("Unmarshal valid JSON bytes", func(t *testing.T) {
		var m Metadata

		err := m.Unmarshal([]byte(`{"source":"filing","page":3,"redacted":true}`))

		require.NoError(t, err, "Expected Unmarshal to not return an error")
		assert.Equal(t, "filing", m["source"])
		assert.Equal(t, float64(3), m["page"])
		assert.Equal(t, true, m["redacted"])
	})

	t.Run("Unmarshal empty JSON object", func(t *testing.T) {
		var m Metadata

		err := m.Unmarshal([]byte(`{}`))

		require.NoError(t, err, "Expected Unmarshal to not return an error")
		assert.NotNil(t, m, "Expected metadata map to be initialized")
		assert.Len(t, m, 0, "Expected no keys")
	})

	t.Run("Unmarshal nil value", func(t *testing.T) {
		var m Metadata

		err := m.Unmarshal(nil)

		require.NoError(t, err, "Expected Unmarshal of nil to not return an error")
		assert.NotNil(t, m, "Expected metadata map to be initialized")
		assert.Len(t, m, 0, "Expected no keys")
	})

	t.Run("Unmarshal Metadata directly", func(t *testing.T) {
		source := Metadata{"source": "docket"}
		var m Metadata

		err := m.Unmarshal(source)

		require.NoError(t, err, "Expected Unmarshal to not return an error")
		assert.Equal(t, "docket", m["source"], "Expected keys to be copied")
	})

	t.Run("Unmarshal invalid JSON", func(t *testing.T) {
		var m Metadata

		err := m.Unmarshal([]byte(`{not json}`))

		require.Error(t, err, "Expected Unmarshal of invalid JSON to return an error")
	})

	t.Run("Unmarshal unsupported type", func(t *testing.T) {
		var m Metadata

		err := m.Unmarshal(12345)

		require.Error(t, err, "Expected Unmarshal of an int to return an error")
		assert.Contains(t, err.Error(), "type assertion", "Expected a type assertion error")
	})
}

func TestMetadataValueScan(t *testing.T) {
	t.Run("Value returns marshaled JSON", func(t *testing.T) {
		m := Metadata{"source": "hearing-notes"}

		value, err := m.Value()
		require.NoError(t, err, "Expected Value to not return an error")

		bytes, ok := value.([]byte)
		require.True(t, ok, "Expected Value to return bytes")
		assert.Contains(t, string(bytes), "hearing-notes")
	})

	t.Run("Scan from JSON bytes", func(t *testing.T) {
		var m Metadata

		err := m.Scan([]byte(`{"source":"hearing-notes"}`))

		require.NoError(t, err, "Expected Scan to not return an error")
		assert.Equal(t, "hearing-notes", m["source"])
	})

	t.Run("Scan from nil leaves empty map", func(t *testing.T) {
		var m Metadata

		err := m.Scan(nil)

		require.NoError(t, err, "Expected Scan of nil to not return an error")
		assert.NotNil(t, m, "Expected metadata map to be initialized")
		assert.Len(t, m, 0, "Expected no keys")
	})

	t.Run("Value then Scan preserves provenance", func(t *testing.T) {
		original := Metadata{
			"source": "court-transcript",
			"scan": map[string]interface{}{
				"dpi": 300,
			},
		}

		value, err := original.Value()
		require.NoError(t, err, "Expected Value to not return an error")

		var restored Metadata
		err = restored.Scan(value)
		require.NoError(t, err, "Expected Scan to not return an error")

		assert.Equal(t, "court-transcript", restored["source"])
		scan, ok := restored["scan"].(map[string]interface{})
		require.True(t, ok, "Expected nested map to survive the round trip")
		assert.Equal(t, float64(300), scan["dpi"])
	})
}
