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

// Package correlate pairs entry events with exit events of the same plate.
//
// For every entry the engine picks, among exits with the same plate, the earliest exit whose
// time lies in [entry.Time, entry.Time+tolerance]. Exits with equal times are taken by
// ascending id. Under the default MatchNearest policy every entry is matched independently,
// so two entries may share one exit. MatchExclusive walks entries in chronological order and
// removes each matched exit from its plate's pool.
//
// The engine is a pure function of its input: it never mutates the events it is given and
// produces exactly one session per entry, ordered by entry time and then entry id.
package correlate

import (
	"fmt"
	"sort"
	"time"

	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/session"
)

// DefaultTolerance bounds the gap between an entry and its exit.
const DefaultTolerance = 7 * 24 * time.Hour

// MatchPolicy decides whether an exit can be paired with more than one entry.
type MatchPolicy string

const (
	MatchNearest   MatchPolicy = "nearest"
	MatchExclusive MatchPolicy = "exclusive"
)

// ParseMatchPolicy parses a policy name; the empty string selects MatchNearest.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(s) {
	case "", MatchNearest:
		return MatchNearest, nil
	case MatchExclusive:
		return MatchExclusive, nil
	default:
		return "", fmt.Errorf("unknown match policy %q, expected %q or %q", s, MatchNearest, MatchExclusive)
	}
}

type Engine struct {
	tolerance time.Duration
	policy    MatchPolicy
}

type Option func(*Engine)

// WithTolerance sets the maximum entry to exit gap. Zero keeps DefaultTolerance. A negative
// gap admits no exit, so every entry stays unmatched.
func WithTolerance(d time.Duration) Option {
	return func(e *Engine) {
		if d != 0 {
			e.tolerance = d
		}
	}
}

// WithMatchPolicy sets the exit sharing policy.
func WithMatchPolicy(p MatchPolicy) Option {
	return func(e *Engine) {
		if p != "" {
			e.policy = p
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tolerance: DefaultTolerance,
		policy:    MatchNearest,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Engine) Tolerance() time.Duration {
	return e.tolerance
}

func (e *Engine) Policy() MatchPolicy {
	return e.policy
}

// Correlate builds one session per entry event found in parsed.
func (e *Engine) Correlate(parsed []events.ParsedEvent) []session.Session {
	entries, exits := partition(parsed)
	if len(entries) == 0 {
		return []session.Session{}
	}
	sortEvents(entries)
	sessions := make([]session.Session, len(entries))
	if len(exits) == 0 {
		for i, entry := range entries {
			sessions[i] = session.Assemble(entry, nil)
		}
		return sessions
	}
	sortEvents(exits)

	for _, g := range groupByPlate(entries, exits) {
		e.matchGroup(g, entries, exits, sessions)
	}
	return sessions
}

// plateGroup holds indexes into the sorted entry and exit slices for one plate, in sorted order.
type plateGroup struct {
	entries []int
	exits   []int
}

// matchGroup walks the plate's entries in order with a lower-bound pointer into its exits.
// Both sides are sorted, so the pointer only moves forward.
func (e *Engine) matchGroup(g *plateGroup, entries, exits []events.ParsedEvent, sessions []session.Session) {
	var pool *exitPool
	if e.policy == MatchExclusive {
		pool = newExitPool(len(g.exits))
	}
	lower := 0
	for _, ei := range g.entries {
		entry := entries[ei]
		for lower < len(g.exits) && exits[g.exits[lower]].Time.Before(entry.Time) {
			lower++
		}
		candidate := lower
		if pool != nil {
			candidate = pool.next(lower)
		}
		if candidate >= len(g.exits) {
			sessions[ei] = session.Assemble(entry, nil)
			continue
		}
		exit := exits[g.exits[candidate]]
		if exit.Time.Sub(entry.Time) > e.tolerance {
			sessions[ei] = session.Assemble(entry, nil)
			continue
		}
		if pool != nil {
			pool.take(candidate)
		}
		sessions[ei] = session.Assemble(entry, &exit)
	}
}

func partition(parsed []events.ParsedEvent) (entries, exits []events.ParsedEvent) {
	for _, p := range parsed {
		switch p.Direction {
		case events.DirectionEntry:
			entries = append(entries, p)
		case events.DirectionExit:
			exits = append(exits, p)
		}
	}
	return entries, exits
}

func sortEvents(list []events.ParsedEvent) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Less(list[j])
	})
}

func groupByPlate(entries, exits []events.ParsedEvent) map[string]*plateGroup {
	groups := make(map[string]*plateGroup)
	for i, entry := range entries {
		g, ok := groups[entry.Plate]
		if !ok {
			g = &plateGroup{}
			groups[entry.Plate] = g
		}
		g.entries = append(g.entries, i)
	}
	for i, exit := range exits {
		if g, ok := groups[exit.Plate]; ok {
			g.exits = append(g.exits, i)
		}
	}
	return groups
}

// Correlate runs the nearest policy with the given tolerance. A zero tolerance means
// DefaultTolerance; a negative one leaves every entry unmatched.
func Correlate(parsed []events.ParsedEvent, tolerance time.Duration) []session.Session {
	return NewEngine(WithTolerance(tolerance)).Correlate(parsed)
}
