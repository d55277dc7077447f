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

// Package normalize turns raw gate events into typed events: the timestamp is parsed to a UTC
// instant and the direction is derived from the gate label. Records without a usable timestamp
// are dropped and counted, never reported as errors.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/numaproj/parksession/pkg/events"
)

// DefaultLayouts are tried, in order, before falling back to format detection.
var DefaultLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Drop reasons.
const (
	ReasonMissingTimestamp = "missing_timestamp"
	ReasonTimestamp        = "timestamp"
)

var ErrEmptyTimestamp = errors.New("empty timestamp")

// Stats describes one normalization pass.
type Stats struct {
	Total            int `json:"total"`
	Kept             int `json:"kept"`
	DroppedMissing   int `json:"dropped_missing_timestamp"`
	DroppedMalformed int `json:"dropped_malformed_timestamp"`
	Entries          int `json:"entries"`
	Exits            int `json:"exits"`
	Unknown          int `json:"unknown"`
}

// Dropped returns the number of records excluded from the output.
func (s Stats) Dropped() int {
	return s.DroppedMissing + s.DroppedMalformed
}

// DropsByReason returns the dropped counts keyed by reason.
func (s Stats) DropsByReason() map[string]int {
	return map[string]int{
		ReasonMissingTimestamp: s.DroppedMissing,
		ReasonTimestamp:        s.DroppedMalformed,
	}
}

// Normalizer parses timestamps against a declared set of encodings.
type Normalizer struct {
	layouts []string
}

type Option func(*Normalizer)

// WithLayouts puts extra Go time layouts in front of the defaults.
func WithLayouts(layouts ...string) Option {
	return func(n *Normalizer) {
		var merged []string
		for _, l := range layouts {
			if l = strings.TrimSpace(l); l != "" {
				merged = append(merged, l)
			}
		}
		n.layouts = append(merged, n.layouts...)
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		layouts: append([]string(nil), DefaultLayouts...),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// ParseTime parses s as a UTC instant. Values without a zone are taken as UTC, and
// ambiguous day/month orders are rejected.
func (n *Normalizer) ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	for _, layout := range n.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Normalize returns the events that carry a valid timestamp, in input order, together with the
// pass statistics. UNKNOWN direction events are kept. The input is not modified.
func (n *Normalizer) Normalize(raw []events.RawEvent) ([]events.ParsedEvent, Stats) {
	stats := Stats{Total: len(raw)}
	parsed := make([]events.ParsedEvent, 0, len(raw))
	for _, r := range raw {
		if r.Timestamp == nil || strings.TrimSpace(*r.Timestamp) == "" {
			stats.DroppedMissing++
			continue
		}
		t, err := n.ParseTime(*r.Timestamp)
		if err != nil {
			stats.DroppedMalformed++
			continue
		}
		direction := events.Classify(r.GateLabel)
		switch direction {
		case events.DirectionEntry:
			stats.Entries++
		case events.DirectionExit:
			stats.Exits++
		default:
			stats.Unknown++
		}
		parsed = append(parsed, events.ParsedEvent{
			ID:          r.ID,
			Plate:       r.Plate,
			GateLabel:   r.GateLabel,
			Time:        t,
			Direction:   direction,
			Category:    r.Category,
			Color:       r.Color,
			Zone:        r.Zone,
			Description: r.Description,
		})
	}
	stats.Kept = len(parsed)
	return parsed, stats
}

var defaultNormalizer = New()

// Normalize normalizes with the default layouts.
func Normalize(raw []events.RawEvent) []events.ParsedEvent {
	parsed, _ := defaultNormalizer.Normalize(raw)
	return parsed
}

// ParseTime parses with the default layouts.
func ParseTime(s string) (time.Time, error) {
	return defaultNormalizer.ParseTime(s)
}
