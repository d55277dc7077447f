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

// Package snapshot holds the immutable result of one load of all sources and the machinery
// that rebuilds and publishes it.
package snapshot

import (
	"time"

	"github.com/google/uuid"

	"github.com/numaproj/parksession/pkg/correlate"
	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/normalize"
	"github.com/numaproj/parksession/pkg/session"
)

// Settings are the correlation parameters a snapshot is built with.
type Settings struct {
	Tolerance time.Duration
	Policy    correlate.MatchPolicy
	Layouts   []string
	Timeout   time.Duration
}

// SourceStats describes what one source contributed to a snapshot.
type SourceStats struct {
	Name    string `json:"name"`
	Events  int    `json:"events"`
	Skipped int    `json:"skipped"`
}

// Snapshot is never modified after it is built. Readers may hold on to one while a newer one
// is published.
type Snapshot struct {
	ID         uuid.UUID
	Generation int64
	LoadedAt   time.Time
	// Events are the normalized events in source order, UNKNOWN direction included.
	Events   []events.ParsedEvent
	Sessions []session.Session
	Stats    normalize.Stats
	Sources  []SourceStats

	Tolerance   time.Duration
	Policy      correlate.MatchPolicy
	CorrelateIn time.Duration
}

// Build normalizes and correlates raw.
func Build(raw []events.RawEvent, settings Settings) *Snapshot {
	n := normalize.New(normalize.WithLayouts(settings.Layouts...))
	parsed, stats := n.Normalize(raw)
	engine := correlate.NewEngine(correlate.WithTolerance(settings.Tolerance), correlate.WithMatchPolicy(settings.Policy))
	start := time.Now()
	sessions := engine.Correlate(parsed)
	return &Snapshot{
		ID:          uuid.New(),
		LoadedAt:    time.Now().UTC(),
		Events:      parsed,
		Sessions:    sessions,
		Stats:       stats,
		Tolerance:   engine.Tolerance(),
		Policy:      engine.Policy(),
		CorrelateIn: time.Since(start),
	}
}

// Matched returns the number of sessions with an exit.
func (s *Snapshot) Matched() int {
	n := 0
	for _, sess := range s.Sessions {
		if sess.Matched() {
			n++
		}
	}
	return n
}
