/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Canonical field names. Aliases used by the reporting export are mapped onto them.
const (
	FieldID          = "id"
	FieldPlate       = "plate"
	FieldGate        = "gate_label"
	FieldTimestamp   = "timestamp"
	FieldCategory    = "category"
	FieldColor       = "color"
	FieldZone        = "zone"
	FieldDescription = "description"
)

var fieldAliases = map[string]string{
	"id":            FieldID,
	"insertion_id":  FieldID,
	"plate":         FieldPlate,
	"license_plate": FieldPlate,
	"gate_label":    FieldGate,
	"gate":          FieldGate,
	"timestamp":     FieldTimestamp,
	"category":      FieldCategory,
	"color":         FieldColor,
	"zone":          FieldZone,
	"description":   FieldDescription,
}

// ErrMissingID is returned for a record without a usable numeric id.
var ErrMissingID = errors.New("event has no numeric id")

// CanonicalField maps a column or field name to its canonical name, or "" if it is not an event field.
func CanonicalField(name string) string {
	return fieldAliases[strings.ToLower(strings.TrimSpace(name))]
}

// FromRecord builds a RawEvent from string fields keyed by (possibly aliased) field names.
// When a record carries both a canonical name and its alias, the canonical one is used.
// Empty values are treated as absent.
func FromRecord(record map[string]string) (RawEvent, error) {
	fields := make(map[string]string, len(record))
	aliased := make(map[string]string)
	for k, v := range record {
		key := strings.ToLower(strings.TrimSpace(k))
		name := fieldAliases[key]
		switch {
		case name == "":
		case key == name:
			fields[name] = strings.TrimSpace(v)
		default:
			aliased[name] = strings.TrimSpace(v)
		}
	}
	for name, v := range aliased {
		if _, ok := fields[name]; !ok {
			fields[name] = v
		}
	}
	id, err := parseID(fields[FieldID])
	if err != nil {
		return RawEvent{}, err
	}
	return RawEvent{
		ID:          id,
		Plate:       fields[FieldPlate],
		GateLabel:   fields[FieldGate],
		Timestamp:   Optional(fields[FieldTimestamp]),
		Category:    Optional(fields[FieldCategory]),
		Color:       Optional(fields[FieldColor]),
		Zone:        Optional(fields[FieldZone]),
		Description: Optional(fields[FieldDescription]),
	}, nil
}

// FromValues builds a RawEvent from loosely typed values, as found in JSON objects or redis stream entries.
func FromValues(values map[string]interface{}) (RawEvent, error) {
	record := make(map[string]string, len(values))
	for k, v := range values {
		switch w := v.(type) {
		case nil:
		case string:
			record[k] = w
		case []byte:
			record[k] = string(w)
		case json.Number:
			record[k] = w.String()
		default:
			record[k] = fmt.Sprintf("%v", w)
		}
	}
	return FromRecord(record)
}

// DecodeJSON decodes a single JSON object into a RawEvent.
func DecodeJSON(data []byte) (RawEvent, error) {
	values := make(map[string]interface{})
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return RawEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return FromValues(values)
}

// parseID accepts integers and integral floats ("12.0"), which is how ids come out of spreadsheet exports.
func parseID(s string) (int64, error) {
	if s == "" {
		return 0, ErrMissingID
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q", ErrMissingID, s)
	}
	return int64(f), nil
}
