package workspace

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
	"github.com/siherrmann/workspacer/toon"
)

// SnapshotSchema tags the snapshot layout. Snapshots with any other tag are
// rejected whole.
const SnapshotSchema = "workspacer.v1"

// listSeparator joins list-valued snapshot fields (aliases, roles, cases,
// chunks, patients). List items must not contain it.
const listSeparator = "|"

// Snapshot encodes the current workspace as TOON bytes
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EncodeSnapshot(s.ws)
}

// Restore replaces the workspace with the decoded snapshot
func (s *Store) Restore(data []byte) error {
	ws, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	if ws.Domain != s.Domain() {
		return helper.NewError("restoring snapshot", fmt.Errorf("snapshot domain %q does not match workspace domain %q", ws.Domain, s.Domain()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws = ws
	return nil
}

// EncodeSnapshot renders a workspace as TOON text. The output is
// deterministic: entities and their states follow id issue order, ontology
// rows are sorted.
func EncodeSnapshot(ws *model.Workspace) ([]byte, error) {
	meta := toon.Record{
		{Key: "schema", Value: toon.String(SnapshotSchema)},
		{Key: "domain", Value: toon.String(ws.Domain)},
		{Key: "checkpoint", Value: toon.String(strconv.FormatUint(ws.Checkpoint, 10))},
		{Key: "seq", Value: toon.String(strconv.FormatUint(ws.Seq, 10))},
		{Key: "next_entity", Value: toon.String(strconv.FormatUint(ws.NextEntity, 10))},
		{Key: "next_event", Value: toon.String(strconv.FormatUint(ws.NextEvent, 10))},
		{Key: "next_question", Value: toon.String(strconv.FormatUint(ws.NextQuestion, 10))},
		{Key: "created_at", Value: toon.String(ws.CreatedAt.Format(time.RFC3339Nano))},
		{Key: "updated_at", Value: toon.String(ws.UpdatedAt.Format(time.RFC3339Nano))},
	}

	entities := toon.Block{Name: "entities"}
	states := toon.Block{Name: "states"}
	for _, id := range ws.EntityIDs {
		entity := ws.Entities[id]

		aliases, err := joinList(entity.Aliases)
		if err != nil {
			return nil, helper.NewError("encoding entity aliases", err)
		}
		roles, err := joinList(entity.Roles)
		if err != nil {
			return nil, helper.NewError("encoding entity roles", err)
		}
		cases, err := joinList(entity.Cases)
		if err != nil {
			return nil, helper.NewError("encoding entity cases", err)
		}
		chunks, err := joinList(entity.Chunks)
		if err != nil {
			return nil, helper.NewError("encoding entity chunks", err)
		}

		entities.Records = append(entities.Records, toon.Record{
			{Key: "id", Value: toon.String(entity.ID)},
			{Key: "name", Value: toon.String(entity.Name)},
			{Key: "type", Value: toon.String(string(entity.Type))},
			{Key: "aliases", Value: aliases},
			{Key: "roles", Value: roles},
			{Key: "cases", Value: cases},
			{Key: "chunks", Value: chunks},
		})

		keys := make([]string, 0, len(entity.States))
		for key := range entity.States {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			state := entity.States[key]
			var parsedAt *string
			if state.ParsedAt != nil {
				parsedAt = toon.String(state.ParsedAt.Format(time.RFC3339Nano))
			}
			states.Records = append(states.Records, toon.Record{
				{Key: "entity", Value: toon.String(entity.ID)},
				{Key: "key", Value: toon.String(key)},
				{Key: "value", Value: toon.String(state.Value)},
				{Key: "raw_date", Value: optional(state.RawDate)},
				{Key: "parsed_at", Value: parsedAt},
				{Key: "case", Value: optional(state.CaseID)},
				{Key: "seq", Value: toon.String(strconv.FormatUint(state.Seq, 10))},
			})
		}
	}

	events := toon.Block{Name: "events"}
	for _, event := range ws.Events {
		patients, err := joinList(event.PatientIDs)
		if err != nil {
			return nil, helper.NewError("encoding event patients", err)
		}
		events.Records = append(events.Records, toon.Record{
			{Key: "id", Value: toon.String(event.ID)},
			{Key: "verb", Value: toon.String(event.Verb)},
			{Key: "agent", Value: toon.String(event.AgentID)},
			{Key: "patients", Value: patients},
			{Key: "temporal", Value: optional(event.TemporalID)},
			{Key: "spatial", Value: optional(event.SpatialID)},
			{Key: "implicit", Value: toon.String(encodeBool(event.Implicit))},
			{Key: "case", Value: optional(event.CaseID)},
			{Key: "chunk", Value: optional(event.ChunkID)},
		})
	}

	questions := toon.Block{Name: "questions"}
	for _, question := range ws.Questions {
		questions.Records = append(questions.Records, toon.Record{
			{Key: "id", Value: toon.String(question.ID)},
			{Key: "subject", Value: optional(question.SubjectID)},
			{Key: "text", Value: toon.String(question.Text)},
			{Key: "answered", Value: toon.String(encodeBool(question.Answered))},
			{Key: "answer", Value: optional(question.Answer)},
			{Key: "case", Value: optional(question.CaseID)},
			{Key: "answered_in", Value: optional(question.AnsweredInChunk)},
		})
	}

	ontologyBlock := toon.Block{Name: "ontology"}
	terms := make([]model.Term, 0, len(ws.Ontology))
	for term := range ws.Ontology {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Kind != terms[j].Kind {
			return terms[i].Kind < terms[j].Kind
		}
		return terms[i].Text < terms[j].Text
	})
	for _, term := range terms {
		ontologyBlock.Records = append(ontologyBlock.Records, toon.Record{
			{Key: "kind", Value: toon.String(string(term.Kind))},
			{Key: "term", Value: toon.String(term.Text)},
			{Key: "count", Value: toon.String(strconv.Itoa(ws.Ontology[term]))},
		})
	}

	text, err := toon.Encode([]toon.Block{
		{Name: "meta", Records: []toon.Record{meta}},
		entities,
		states,
		events,
		questions,
		ontologyBlock,
	})
	if err != nil {
		return nil, helper.NewError("encoding snapshot", err)
	}
	return []byte(text), nil
}

// DecodeSnapshot parses TOON snapshot bytes back into a workspace. A
// snapshot either loads whole or not at all.
func DecodeSnapshot(data []byte) (*model.Workspace, error) {
	blocks, err := toon.Decode(string(data))
	if err != nil {
		return nil, helper.NewError("decoding snapshot", err)
	}

	byName := map[string]toon.Block{}
	for _, block := range blocks {
		byName[block.Name] = block
	}

	meta, ok := byName["meta"]
	if !ok || len(meta.Records) != 1 {
		return nil, helper.NewError("decoding snapshot", fmt.Errorf("%w: missing meta block", ErrSchemaMismatch))
	}
	metaRecord := meta.Records[0]
	if schema := metaRecord.GetString("schema"); schema != SnapshotSchema {
		return nil, helper.NewError("decoding snapshot", fmt.Errorf("%w: got %q, want %q", ErrSchemaMismatch, schema, SnapshotSchema))
	}

	ws := model.NewWorkspace(metaRecord.GetString("domain"))
	if ws.Checkpoint, err = parseUint(metaRecord, "checkpoint"); err != nil {
		return nil, err
	}
	if ws.Seq, err = parseUint(metaRecord, "seq"); err != nil {
		return nil, err
	}
	if ws.NextEntity, err = parseUint(metaRecord, "next_entity"); err != nil {
		return nil, err
	}
	if ws.NextEvent, err = parseUint(metaRecord, "next_event"); err != nil {
		return nil, err
	}
	if ws.NextQuestion, err = parseUint(metaRecord, "next_question"); err != nil {
		return nil, err
	}
	if ws.CreatedAt, err = parseTime(metaRecord, "created_at"); err != nil {
		return nil, err
	}
	if ws.UpdatedAt, err = parseTime(metaRecord, "updated_at"); err != nil {
		return nil, err
	}

	for _, record := range byName["entities"].Records {
		entity := &model.Entity{
			ID:      record.GetString("id"),
			Name:    record.GetString("name"),
			Type:    model.EntityType(record.GetString("type")),
			Aliases: splitList(record, "aliases"),
			Roles:   splitList(record, "roles"),
			Cases:   splitList(record, "cases"),
			Chunks:  splitList(record, "chunks"),
			States:  map[string]model.StateValue{},
		}
		if entity.ID == "" {
			return nil, helper.NewError("decoding snapshot", fmt.Errorf("entity row without id"))
		}
		ws.AddEntity(entity)
	}

	for _, record := range byName["states"].Records {
		entity, ok := ws.Entities[record.GetString("entity")]
		if !ok {
			return nil, helper.NewError("decoding snapshot", fmt.Errorf("state row for unknown entity %q", record.GetString("entity")))
		}
		state := model.StateValue{
			Value:   record.GetString("value"),
			RawDate: record.GetString("raw_date"),
			CaseID:  record.GetString("case"),
		}
		if state.Seq, err = parseUint(record, "seq"); err != nil {
			return nil, err
		}
		if parsedAt, ok := record.Get("parsed_at"); ok && parsedAt != nil {
			parsed, err := time.Parse(time.RFC3339Nano, *parsedAt)
			if err != nil {
				return nil, helper.NewError("decoding snapshot", fmt.Errorf("invalid parsed_at %q: %w", *parsedAt, err))
			}
			parsed = parsed.UTC()
			state.ParsedAt = &parsed
		}
		entity.States[record.GetString("key")] = state
	}

	for _, record := range byName["events"].Records {
		event := &model.Event{
			ID:         record.GetString("id"),
			Verb:       record.GetString("verb"),
			AgentID:    record.GetString("agent"),
			PatientIDs: splitList(record, "patients"),
			TemporalID: record.GetString("temporal"),
			SpatialID:  record.GetString("spatial"),
			Implicit:   record.GetString("implicit") == "1",
			CaseID:     record.GetString("case"),
			ChunkID:    record.GetString("chunk"),
		}
		for _, ref := range event.References() {
			if _, ok := ws.Entities[ref]; !ok {
				return nil, helper.NewError("decoding snapshot", fmt.Errorf("%w: event %v references %v", ErrReferenceIntegrity, event.ID, ref))
			}
		}
		ws.Events = append(ws.Events, event)
	}

	for _, record := range byName["questions"].Records {
		ws.Questions = append(ws.Questions, &model.Question{
			ID:              record.GetString("id"),
			SubjectID:       record.GetString("subject"),
			Text:            record.GetString("text"),
			Answered:        record.GetString("answered") == "1",
			Answer:          record.GetString("answer"),
			CaseID:          record.GetString("case"),
			AnsweredInChunk: record.GetString("answered_in"),
		})
	}

	for _, record := range byName["ontology"].Records {
		count, err := strconv.Atoi(record.GetString("count"))
		if err != nil {
			return nil, helper.NewError("decoding snapshot", fmt.Errorf("invalid ontology count: %w", err))
		}
		term := model.Term{
			Kind: model.TermKind(record.GetString("kind")),
			Text: record.GetString("term"),
		}
		ws.Ontology[term] = count
	}

	return ws, nil
}

func joinList(values []string) (*string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	for _, v := range values {
		if strings.Contains(v, listSeparator) {
			return nil, fmt.Errorf("list value %q contains the separator %q", v, listSeparator)
		}
	}
	return toon.String(strings.Join(values, listSeparator)), nil
}

func splitList(record toon.Record, key string) []string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return nil
	}
	return strings.Split(*v, listSeparator)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return toon.String(s)
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseUint(record toon.Record, key string) (uint64, error) {
	value, err := strconv.ParseUint(record.GetString(key), 10, 64)
	if err != nil {
		return 0, helper.NewError("decoding snapshot", fmt.Errorf("invalid %v: %w", key, err))
	}
	return value, nil
}

func parseTime(record toon.Record, key string) (time.Time, error) {
	value, err := time.Parse(time.RFC3339Nano, record.GetString(key))
	if err != nil {
		return time.Time{}, helper.NewError("decoding snapshot", fmt.Errorf("invalid %v: %w", key, err))
	}
	return value.UTC(), nil
}
