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

// Package events defines gate crossing events as they arrive from a source (RawEvent)
// and after normalization (ParsedEvent).
package events

import (
	"fmt"
	"strings"
	"time"
)

const (
	// EntrySuffix marks a gate label as an entry crossing, e.g. "north_in".
	EntrySuffix = "_in"
	// ExitSuffix marks a gate label as an exit crossing, e.g. "south_out".
	ExitSuffix = "_out"
)

// Direction is the crossing direction derived from the gate label suffix.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionEntry
	DirectionExit
)

func (d Direction) String() string {
	switch d {
	case DirectionEntry:
		return "entry"
	case DirectionExit:
		return "exit"
	default:
		return "unknown"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "entry":
		*d = DirectionEntry
	case "exit":
		*d = DirectionExit
	case "unknown", "":
		*d = DirectionUnknown
	default:
		return fmt.Errorf("unknown direction %q", string(text))
	}
	return nil
}

// Classify returns the direction encoded in the gate label suffix.
// Labels ending in neither suffix are DirectionUnknown.
func Classify(gateLabel string) Direction {
	switch {
	case strings.HasSuffix(gateLabel, EntrySuffix):
		return DirectionEntry
	case strings.HasSuffix(gateLabel, ExitSuffix):
		return DirectionExit
	default:
		return DirectionUnknown
	}
}

// RawEvent is one gate crossing as fetched from a source. Nil pointers are absent values.
type RawEvent struct {
	ID          int64   `json:"id"`
	Plate       string  `json:"plate"`
	GateLabel   string  `json:"gate_label"`
	Timestamp   *string `json:"timestamp,omitempty"`
	Category    *string `json:"category,omitempty"`
	Color       *string `json:"color,omitempty"`
	Zone        *string `json:"zone,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ParsedEvent is a RawEvent with a valid UTC timestamp and a classified direction.
type ParsedEvent struct {
	ID          int64     `json:"id"`
	Plate       string    `json:"plate"`
	GateLabel   string    `json:"gate_label"`
	Time        time.Time `json:"timestamp"`
	Direction   Direction `json:"direction"`
	Category    *string   `json:"category"`
	Color       *string   `json:"color"`
	Zone        *string   `json:"zone"`
	Description *string   `json:"description"`
}

// Less orders events by time, then by id.
func (e ParsedEvent) Less(o ParsedEvent) bool {
	if !e.Time.Equal(o.Time) {
		return e.Time.Before(o.Time)
	}
	return e.ID < o.ID
}

// StringOrEmpty dereferences an optional descriptive field.
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Optional returns nil for an empty string.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
