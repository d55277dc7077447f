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

package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/session"
	"github.com/numaproj/parksession/pkg/shared/expr"
	"github.com/numaproj/parksession/pkg/shared/util"
)

// TimeParser parses the start_date and end_date parameters.
type TimeParser func(string) (time.Time, error)

// Filter is a compiled set of Params. The zero value of each criterion matches everything.
type Filter struct {
	search     string
	start      *time.Time
	end        *time.Time
	prefixes   []string
	categories []string
	colors     []string
	gates      []string
	status     Status
	program    *expr.Program
}

func newFilter(p Params, parse TimeParser, env map[string]interface{}) (*Filter, error) {
	f := &Filter{
		search:     strings.ToLower(p.Search),
		prefixes:   util.SplitList(p.LicensePrefix),
		categories: util.SplitList(p.Category),
		colors:     util.SplitList(p.Color),
		gates:      util.SplitList(p.Gate),
		status:     p.Status,
	}
	if p.StartDate != "" {
		t, err := parse(p.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid start_date: %v", ErrInvalidQuery, err)
		}
		f.start = &t
	}
	if p.EndDate != "" {
		t, err := parse(p.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid end_date: %v", ErrInvalidQuery, err)
		}
		f.end = &t
	}
	if p.Expr != "" {
		program, err := expr.Compile(p.Expr, env)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		f.program = program
	}
	return f, nil
}

// NewSessionFilter compiles p for sessions. The expression sees the fields of SessionEnv.
func NewSessionFilter(p Params, parse TimeParser) (*Filter, error) {
	return newFilter(p, parse, SessionEnv(session.Session{}))
}

// NewEventFilter compiles p for events. The expression sees the fields of EventEnv.
// The status criterion does not apply to events.
func NewEventFilter(p Params, parse TimeParser) (*Filter, error) {
	return newFilter(p, parse, EventEnv(events.ParsedEvent{}))
}

func (f *Filter) inRange(t time.Time) bool {
	if f.start != nil && t.Before(*f.start) {
		return false
	}
	if f.end != nil && t.After(*f.end) {
		return false
	}
	return true
}

func (f *Filter) hasPrefix(plate string) bool {
	if len(f.prefixes) == 0 {
		return true
	}
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(plate, prefix) {
			return true
		}
	}
	return false
}

func oneOf(list []string, value *string) bool {
	if len(list) == 0 {
		return true
	}
	return value != nil && util.StringSliceContains(list, *value)
}

func (f *Filter) contains(fields ...string) bool {
	if f.search == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), f.search) {
			return true
		}
	}
	return false
}

// MatchSession reports whether s satisfies every criterion.
func (f *Filter) MatchSession(s session.Session) (bool, error) {
	if !f.inRange(s.EntryTime) || !f.hasPrefix(s.Plate) {
		return false, nil
	}
	if !oneOf(f.categories, s.Category) || !oneOf(f.colors, s.Color) {
		return false, nil
	}
	if len(f.gates) > 0 && !util.StringSliceContains(f.gates, s.EntryGate) && !util.StringSliceContains(f.gates, s.ExitGate) {
		return false, nil
	}
	switch f.status {
	case StatusMatched:
		if !s.Matched() {
			return false, nil
		}
	case StatusUnmatched:
		if s.Matched() {
			return false, nil
		}
	}
	if !f.contains(s.Plate, events.StringOrEmpty(s.Category), events.StringOrEmpty(s.Color),
		events.StringOrEmpty(s.Zone), events.StringOrEmpty(s.Description), s.EntryGate, s.ExitGate) {
		return false, nil
	}
	if f.program != nil {
		return f.program.Match(SessionEnv(s))
	}
	return true, nil
}

// MatchEvent reports whether e satisfies every criterion. A gate criterion matches the
// event's own gate label.
func (f *Filter) MatchEvent(e events.ParsedEvent) (bool, error) {
	if !f.inRange(e.Time) || !f.hasPrefix(e.Plate) {
		return false, nil
	}
	if !oneOf(f.categories, e.Category) || !oneOf(f.colors, e.Color) {
		return false, nil
	}
	if len(f.gates) > 0 && !util.StringSliceContains(f.gates, e.GateLabel) {
		return false, nil
	}
	if !f.contains(e.Plate, e.GateLabel, events.StringOrEmpty(e.Category), events.StringOrEmpty(e.Color),
		events.StringOrEmpty(e.Zone), events.StringOrEmpty(e.Description)) {
		return false, nil
	}
	if f.program != nil {
		return f.program.Match(EventEnv(e))
	}
	return true, nil
}

// SessionEnv is the expression environment of a session. Absent strings are empty,
// an unmatched session has exit.time 0 and duration_seconds -1.
func SessionEnv(s session.Session) map[string]interface{} {
	var exitUnix int64
	exitHour := -1
	if s.ExitTime != nil {
		exitUnix = s.ExitTime.Unix()
		exitHour = s.ExitTime.Hour()
	}
	return map[string]interface{}{
		"plate":            s.Plate,
		"category":         events.StringOrEmpty(s.Category),
		"color":            events.StringOrEmpty(s.Color),
		"zone":             events.StringOrEmpty(s.Zone),
		"description":      events.StringOrEmpty(s.Description),
		"matched":          s.Matched(),
		"duration_seconds": s.DurationSeconds,
		"entry.id":         s.EntryID,
		"entry.gate":       s.EntryGate,
		"entry.time":       s.EntryTime.Unix(),
		"entry.hour":       s.EntryTime.Hour(),
		"exit.id":          s.ExitID,
		"exit.gate":        s.ExitGate,
		"exit.time":        exitUnix,
		"exit.hour":        exitHour,
	}
}

// EventEnv is the expression environment of an event.
func EventEnv(e events.ParsedEvent) map[string]interface{} {
	return map[string]interface{}{
		"id":          e.ID,
		"plate":       e.Plate,
		"gate":        e.GateLabel,
		"direction":   e.Direction.String(),
		"time":        e.Time.Unix(),
		"hour":        e.Time.Hour(),
		"category":    events.StringOrEmpty(e.Category),
		"color":       events.StringOrEmpty(e.Color),
		"zone":        events.StringOrEmpty(e.Zone),
		"description": events.StringOrEmpty(e.Description),
	}
}
