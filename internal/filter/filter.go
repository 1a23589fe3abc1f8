// Package filter narrows JSON assets by request query parameters.
//
// A request such as /cities.json?country=GB keeps only the array elements whose
// "country" field equals "GB". Matching uses loose equality by default so that a
// query string like id=2643743 matches the numeric field {"id": 2643743}.
package filter

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// Filter applies query-parameter matching to JSON documents.
type Filter struct {
	equal Comparator
}

// New returns a Filter. strict selects StrictEqual instead of LooseEqual.
func New(strict bool) *Filter {
	if strict {
		return &Filter{equal: StrictEqual}
	}
	return &Filter{equal: LooseEqual}
}

// NewWithComparator returns a Filter that matches fields using cmp.
func NewWithComparator(cmp Comparator) *Filter {
	if cmp == nil {
		cmp = LooseEqual
	}
	return &Filter{equal: cmp}
}

// Apply returns data restricted to the elements matching every parameter.
// Empty params or input that is not JSON come back unchanged. A single JSON
// value is treated as a one-element array, so the result is always an array
// when filtering happens.
func (f *Filter) Apply(data []byte, params url.Values) []byte {
	if len(params) == 0 {
		return data
	}

	elements, ok := splitElements(data)
	if !ok {
		return data
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kept := make([]json.RawMessage, 0, len(elements))
	for _, el := range elements {
		if f.matches(el, keys, params) {
			kept = append(kept, el)
		}
	}
	out, err := json.Marshal(kept)
	if err != nil {
		return data
	}
	return out
}

func (f *Filter) matches(el json.RawMessage, keys []string, params url.Values) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(el, &fields); err != nil {
		// Arrays and scalars have no named fields; every parameter is a mismatch.
		fields = nil
	}
	for _, k := range keys {
		want := strings.Join(params[k], ",")
		raw, present := fields[k]
		var field any
		if present {
			if err := json.Unmarshal(raw, &field); err != nil {
				return false
			}
		}
		if !f.equal(field, present, want) {
			return false
		}
	}
	return true
}

// splitElements returns the top-level array elements of data, or data itself as
// the only element when it is a valid non-array JSON value.
func splitElements(data []byte) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false
	}
	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, false
		}
		return arr, true
	}
	if !json.Valid(trimmed) {
		return nil, false
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, true
}
