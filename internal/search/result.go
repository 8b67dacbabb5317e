package search

import (
	"bytes"
	"encoding/json"
)

// State tags a lookup outcome so downstream code never re-inspects the raw
// payload shape.
type State int

const (
	StateOK State = iota
	StateEmpty
	StateUpstreamError
)

// Result is the normalized outcome of one lookup. Upstream payloads arrive
// as a bare object or an array depending on hit count; both forms are
// lifted into Records exactly once, at this boundary.
type Result struct {
	State   State
	Records []json.RawMessage
	Message string // user-visible failure text, set only for StateUpstreamError
	Count   int    // per-kind hit count, recorded in search history
}

// OK builds a hit result.
func OK(records []json.RawMessage, count int) Result {
	return Result{State: StateOK, Records: records, Count: count}
}

// Empty builds a no-hits result.
func Empty() Result {
	return Result{State: StateEmpty, Records: []json.RawMessage{}}
}

// UpstreamError builds an embedded-failure result. Vehicle searches render
// these with HTTP 200 so the UI sees one response shape for that family.
func UpstreamError(message string) Result {
	return Result{State: StateUpstreamError, Message: message}
}

// normalizeRecords lifts an object-or-array payload into a record list.
// A single object becomes a one-element list; null and empty bodies become
// no records.
func normalizeRecords(raw json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil
		}
		return list
	}

	return []json.RawMessage{json.RawMessage(trimmed)}
}

// canonicalKey reduces a record to a key-order-independent form. Two
// records are duplicates iff their canonical forms are byte-identical.
func canonicalKey(record json.RawMessage) string {
	var value interface{}
	if err := json.Unmarshal(record, &value); err != nil {
		return string(record)
	}

	canonical, err := json.Marshal(value)
	if err != nil {
		return string(record)
	}
	return string(canonical)
}

// mergeRecords concatenates record lists dropping structural duplicates,
// keeping the first occurrence's position.
func mergeRecords(lists ...[]json.RawMessage) []json.RawMessage {
	seen := make(map[string]bool)
	merged := make([]json.RawMessage, 0)

	for _, list := range lists {
		for _, record := range list {
			key := canonicalKey(record)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, record)
		}
	}

	return merged
}
