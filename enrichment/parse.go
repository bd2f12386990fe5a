package enrichment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ModelRecord a recommendation as returned by the model, normalized once at
// the parse boundary. Empty string means the model gave no usable value.
type ModelRecord struct {
	Name             string
	Phone            string
	Service          string
	Date             string
	Recommender      string
	Context          string
	ChatMessageIndex *int
}

// ParseResponse extracts the recommendations array from a model response.
// Accepts a bare array, or an object keyed by "recommendations", "enhanced",
// "data", or numeric indices.
func ParseResponse(raw string) ([]ModelRecord, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty response")
	}

	var asList []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &asList); err == nil {
		return decodeRecords(asList)
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &asObject); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, key := range []string{"recommendations", "enhanced", "data"} {
		if payload, ok := asObject[key]; ok {
			var items []json.RawMessage
			if err := json.Unmarshal(payload, &items); err != nil {
				return nil, fmt.Errorf("failed to decode %q array: %w", key, err)
			}
			return decodeRecords(items)
		}
	}

	// Some models return {"0": {...}, "1": {...}} instead of an array.
	var indices []int
	for key := range asObject {
		if n, err := strconv.Atoi(key); err == nil {
			indices = append(indices, n)
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("could not find recommendations array in response")
	}
	sort.Ints(indices)

	items := make([]json.RawMessage, 0, len(indices))
	for _, n := range indices {
		items = append(items, asObject[strconv.Itoa(n)])
	}
	return decodeRecords(items)
}

func decodeRecords(items []json.RawMessage) ([]ModelRecord, error) {
	records := make([]ModelRecord, 0, len(items))
	for i, item := range items {
		var fields map[string]interface{}
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", i, err)
		}
		records = append(records, normalizeRecord(fields))
	}
	return records, nil
}

// normalizeRecord folds field name casing and drops literal "null"/"None"
// strings the model sometimes emits instead of JSON null.
func normalizeRecord(fields map[string]interface{}) ModelRecord {
	lowered := make(map[string]interface{}, len(fields))
	for key, val := range fields {
		lowered[strings.ToLower(key)] = val
	}

	rec := ModelRecord{
		Name:        fieldString(lowered, "name"),
		Phone:       fieldString(lowered, "phone"),
		Service:     fieldString(lowered, "service"),
		Date:        fieldString(lowered, "date"),
		Recommender: fieldString(lowered, "recommender"),
		Context:     fieldString(lowered, "context"),
	}

	if val, ok := lowered["chat_message_index"]; ok {
		switch v := val.(type) {
		case float64:
			idx := int(v)
			rec.ChatMessageIndex = &idx
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				rec.ChatMessageIndex = &n
			}
		}
	}

	return rec
}

func fieldString(fields map[string]interface{}, name string) string {
	val, ok := fields[name]
	if !ok || val == nil {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "null" || s == "None" {
		return ""
	}
	return s
}
