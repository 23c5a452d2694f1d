// Package toon implements Token Oriented Object Notation, a compact
// line-based tabular format for sequences of flat records.
//
// A homogeneous sequence is encoded as a block header naming the record
// schema followed by one comma-delimited row per record:
//
//	entities[2]{id,name,type}
//	ent_000001,John Smith,person
//	ent_000002,Acme Corp,organization
//
// Records that do not share a single ordered schema fall back to a
// key=value row form under a header with an empty field list:
//
//	meta[2]{}
//	domain=legal,checkpoint=12
//	schema=workspacer.v1
//
// Values are quoted when they contain a delimiter, quote, newline,
// backslash, equals sign, leading or trailing whitespace, or when they are
// empty. Inside quotes a literal quote is doubled and newlines, carriage
// returns and backslashes are backslash-escaped. An absent value is the
// unquoted marker \N, which is distinct from the empty string "".
//
// Encoding is pure and deterministic: the same blocks always produce the
// same bytes, and Decode(Encode(x)) returns x.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NullMarker is the unquoted token encoding an absent value.
const NullMarker = `\N`

var (
	headerPattern     = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[([0-9]+)\]\{([^}]*)\}$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Field is one key/value pair of a record. A nil Value encodes as the
// absent marker.
type Field struct {
	Key   string
	Value *string
}

// Record is an ordered list of fields.
type Record []Field

// Block is a named sequence of records.
type Block struct {
	Name    string
	Records []Record
}

// String returns a pointer to s, for building field values inline.
func String(s string) *string {
	return &s
}

// Get returns the value for key and whether the record carries the key.
func (r Record) Get(key string) (*string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// GetString returns the value for key, or "" when the key is missing or
// the value is absent.
func (r Record) GetString(key string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return ""
	}
	return *v
}

// List builds a single-column block from a list of values.
func List(name string, values []string) Block {
	records := make([]Record, 0, len(values))
	for _, v := range values {
		records = append(records, Record{{Key: "value", Value: String(v)}})
	}
	return Block{Name: name, Records: records}
}

// Encode renders blocks as TOON text. Blocks are separated by a blank
// line and the output ends with a newline.
func Encode(blocks []Block) (string, error) {
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		if err := encodeBlock(&b, block); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func encodeBlock(b *strings.Builder, block Block) error {
	if !identifierPattern.MatchString(block.Name) {
		return fmt.Errorf("invalid block name %q", block.Name)
	}

	fields, tabular, err := blockSchema(block)
	if err != nil {
		return err
	}

	if tabular {
		b.WriteString(fmt.Sprintf("%s[%d]{%s}\n", block.Name, len(block.Records), strings.Join(fields, ",")))
		for _, record := range block.Records {
			values := make([]string, 0, len(record))
			for _, f := range record {
				values = append(values, escapeValue(f.Value))
			}
			b.WriteString(strings.Join(values, ","))
			b.WriteString("\n")
		}
		return nil
	}

	b.WriteString(fmt.Sprintf("%s[%d]{}\n", block.Name, len(block.Records)))
	for _, record := range block.Records {
		pairs := make([]string, 0, len(record))
		for _, f := range record {
			if !identifierPattern.MatchString(f.Key) {
				return fmt.Errorf("invalid field key %q in block %q", f.Key, block.Name)
			}
			pairs = append(pairs, f.Key+"="+escapeValue(f.Value))
		}
		b.WriteString(strings.Join(pairs, ","))
		b.WriteString("\n")
	}
	return nil
}

// blockSchema returns the shared ordered field names of the block, and
// whether all records fit one tabular schema. A block with no records has
// no schema and encodes as a bare header.
func blockSchema(block Block) ([]string, bool, error) {
	if len(block.Records) == 0 {
		return nil, false, nil
	}

	first := block.Records[0]
	if len(first) == 0 {
		return nil, false, fmt.Errorf("empty record in block %q", block.Name)
	}

	fields := make([]string, 0, len(first))
	for _, f := range first {
		if !identifierPattern.MatchString(f.Key) {
			return nil, false, fmt.Errorf("invalid field key %q in block %q", f.Key, block.Name)
		}
		fields = append(fields, f.Key)
	}

	for _, record := range block.Records[1:] {
		if len(record) == 0 {
			return nil, false, fmt.Errorf("empty record in block %q", block.Name)
		}
		if len(record) != len(fields) {
			return fields, false, nil
		}
		for i, f := range record {
			if f.Key != fields[i] {
				return fields, false, nil
			}
		}
	}
	return fields, true, nil
}

func escapeValue(v *string) string {
	if v == nil {
		return NullMarker
	}
	s := *v
	if !needsQuoting(s) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, `"`, `""`)
	return `"` + s + `"`
}

func needsQuoting(s string) bool {
	if s == "" || s == NullMarker {
		return true
	}
	if strings.ContainsAny(s, ",\"\n\r\\=") {
		return true
	}
	return s != strings.TrimSpace(s)
}

// Decode parses TOON text into blocks. Blank lines and lines starting
// with # between blocks are ignored; rows inside a block are counted
// strictly against the header.
func Decode(s string) ([]Block, error) {
	lines := strings.Split(s, "\n")
	blocks := []Block{}

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			i++
			continue
		}

		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: expected block header, got %q", i+1, line)
		}
		name := m[1]
		count, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid record count: %w", i+1, err)
		}

		var fields []string
		if m[3] != "" {
			fields = strings.Split(m[3], ",")
			for _, f := range fields {
				if !identifierPattern.MatchString(f) {
					return nil, fmt.Errorf("line %d: invalid field name %q", i+1, f)
				}
			}
		}
		i++

		block := Block{Name: name, Records: make([]Record, 0, count)}
		for n := 0; n < count; n++ {
			if i >= len(lines) {
				return nil, fmt.Errorf("block %q: expected %d records, got %d", name, count, n)
			}
			row := lines[i]

			var record Record
			if fields != nil {
				record, err = parseTabularRow(row, fields)
			} else {
				record, err = parseKeyValueRow(row)
			}
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			block.Records = append(block.Records, record)
			i++
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

func parseTabularRow(row string, fields []string) (Record, error) {
	record := make(Record, 0, len(fields))
	i := 0
	for n := 0; n < len(fields); n++ {
		if n > 0 {
			if i >= len(row) || row[i] != ',' {
				return nil, fmt.Errorf("expected %d values, got %d", len(fields), n)
			}
			i++
		}
		value, next, err := scanValue(row, i)
		if err != nil {
			return nil, err
		}
		record = append(record, Field{Key: fields[n], Value: value})
		i = next
	}
	if i != len(row) {
		return nil, fmt.Errorf("unexpected trailing content %q", row[i:])
	}
	return record, nil
}

func parseKeyValueRow(row string) (Record, error) {
	var record Record
	i := 0
	for {
		eq := strings.IndexByte(row[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("expected key=value pair in %q", row[i:])
		}
		key := row[i : i+eq]
		if !identifierPattern.MatchString(key) {
			return nil, fmt.Errorf("invalid field key %q", key)
		}
		value, next, err := scanValue(row, i+eq+1)
		if err != nil {
			return nil, err
		}
		record = append(record, Field{Key: key, Value: value})
		i = next
		if i == len(row) {
			return record, nil
		}
		if row[i] != ',' {
			return nil, fmt.Errorf("unexpected character %q after value", row[i])
		}
		i++
	}
}

// scanValue reads one value starting at i and returns it together with
// the index of the first byte after the value. A nil value means the
// absent marker was read.
func scanValue(row string, i int) (*string, int, error) {
	if i < len(row) && row[i] == '"' {
		return scanQuotedValue(row, i)
	}

	end := strings.IndexByte(row[i:], ',')
	if end < 0 {
		end = len(row)
	} else {
		end += i
	}
	token := row[i:end]
	if token == NullMarker {
		return nil, end, nil
	}
	if token == "" {
		return nil, end, fmt.Errorf("empty unquoted value at column %d", i+1)
	}
	if strings.ContainsAny(token, "\"\\") {
		return nil, end, fmt.Errorf("unquoted value %q contains reserved characters", token)
	}
	return &token, end, nil
}

func scanQuotedValue(row string, i int) (*string, int, error) {
	var b strings.Builder
	i++ // opening quote
	for i < len(row) {
		switch row[i] {
		case '\\':
			if i+1 >= len(row) {
				return nil, 0, fmt.Errorf("dangling escape at column %d", i+1)
			}
			switch row[i+1] {
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			default:
				return nil, 0, fmt.Errorf("invalid escape %q at column %d", row[i:i+2], i+1)
			}
			i += 2
		case '"':
			if i+1 < len(row) && row[i+1] == '"' {
				b.WriteByte('"')
				i += 2
				continue
			}
			value := b.String()
			return &value, i + 1, nil
		default:
			b.WriteByte(row[i])
			i++
		}
	}
	return nil, 0, fmt.Errorf("unterminated quoted value")
}
