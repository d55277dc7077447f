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

// Package stats computes the dashboard statistics of a snapshot. All calendar arithmetic
// is in UTC.
package stats

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/normalize"
)

// RecentWindow is how far back the recent entries and exits counts look.
const RecentWindow = 10 * time.Minute

// ErrInvalidRange wraps every time range validation error.
var ErrInvalidRange = errors.New("invalid time range")

// Range selects the events the enhanced statistics are computed over.
type Range string

const (
	RangeAll    Range = "all"
	RangeToday  Range = "today"
	RangeWeek   Range = "week"
	RangeMonth  Range = "month"
	RangeCustom Range = "custom"
)

// ParseRange parses a range name; the empty string selects RangeAll.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeToday, RangeWeek, RangeMonth, RangeCustom:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown time_range %q", ErrInvalidRange, s)
	}
}

// Calculator computes statistics relative to a clock.
type Calculator struct {
	now   func() time.Time
	parse func(string) (time.Time, error)
}

type Option func(*Calculator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTimeParser sets the parser for start and end dates.
func WithTimeParser(parse func(string) (time.Time, error)) Option {
	return func(c *Calculator) {
		if parse != nil {
			c.parse = parse
		}
	}
}

func New(opts ...Option) *Calculator {
	c := &Calculator{now: time.Now, parse: normalize.ParseTime}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Calculator) utcNow() time.Time {
	return c.now().UTC()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (c *Calculator) parseOptional(name, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := c.parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %v", ErrInvalidRange, name, err)
	}
	return &t, nil
}

// Window is a closed time interval. A nil bound is open.
type Window struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

func (w Window) contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Resolve turns a range into a window. start and end are only read for RangeCustom.
// RangeAll spans the earliest to the latest event.
func (c *Calculator) Resolve(r Range, start, end string, evs []events.ParsedEvent) (Window, error) {
	now := c.utcNow()
	var from time.Time
	switch r {
	case RangeToday:
		from = startOfDay(now)
	case RangeWeek:
		// Monday is the first day of the week.
		offset := (int(now.Weekday()) + 6) % 7
		from = startOfDay(now).AddDate(0, 0, -offset)
	case RangeMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case RangeCustom:
		s, err := c.parseOptional("start_date", start)
		if err != nil {
			return Window{}, err
		}
		e, err := c.parseOptional("end_date", end)
		if err != nil {
			return Window{}, err
		}
		return Window{Start: s, End: e}, nil
	case RangeAll, "":
		if len(evs) == 0 {
			return Window{}, nil
		}
		lo, hi := evs[0].Time, evs[0].Time
		for _, e := range evs[1:] {
			if e.Time.Before(lo) {
				lo = e.Time
			}
			if e.Time.After(hi) {
				hi = e.Time
			}
		}
		return Window{Start: &lo, End: &hi}, nil
	default:
		return Window{}, fmt.Errorf("%w: unknown time_range %q", ErrInvalidRange, r)
	}
	return Window{Start: &from, End: &now}, nil
}

// Enhanced is the overview of the events in a window.
type Enhanced struct {
	Window            Window         `json:"window"`
	TotalEvents       int            `json:"total_events"`
	BusiestHour       *int           `json:"busiest_hour"`
	CategoryCounts    map[string]int `json:"category_counts"`
	GateUsage         map[string]int `json:"gate_usage"`
	HourlyTrend       map[string]int `json:"hourly_trend"`
	ColorDistribution map[string]int `json:"color_distribution"`
	ZoneCounts        map[string]int `json:"zone_counts"`
}

// Enhanced computes the overview of the events within range r.
func (c *Calculator) Enhanced(evs []events.ParsedEvent, r Range, start, end string) (*Enhanced, error) {
	window, err := c.Resolve(r, start, end, evs)
	if err != nil {
		return nil, err
	}
	result := &Enhanced{
		Window:            window,
		CategoryCounts:    map[string]int{},
		GateUsage:         map[string]int{},
		HourlyTrend:       map[string]int{},
		ColorDistribution: map[string]int{},
		ZoneCounts:        map[string]int{},
	}
	var hours [24]int
	var first, last time.Time
	for _, e := range evs {
		if !window.contains(e.Time) {
			continue
		}
		if result.TotalEvents == 0 || e.Time.Before(first) {
			first = e.Time
		}
		if result.TotalEvents == 0 || e.Time.After(last) {
			last = e.Time
		}
		result.TotalEvents++
		hours[e.Time.UTC().Hour()]++
		result.GateUsage[e.GateLabel]++
		count(result.CategoryCounts, e.Category)
		count(result.ColorDistribution, e.Color)
		count(result.ZoneCounts, e.Zone)
		result.HourlyTrend[e.Time.UTC().Truncate(time.Hour).Format(time.RFC3339)]++
	}
	if result.TotalEvents == 0 {
		return result, nil
	}
	busiest := 0
	for h := 1; h < len(hours); h++ {
		if hours[h] > hours[busiest] {
			busiest = h
		}
	}
	result.BusiestHour = &busiest
	for t := first.UTC().Truncate(time.Hour); !t.After(last); t = t.Add(time.Hour) {
		key := t.Format(time.RFC3339)
		if _, ok := result.HourlyTrend[key]; !ok {
			result.HourlyTrend[key] = 0
		}
	}
	return result, nil
}

func count(m map[string]int, value *string) {
	if value != nil {
		m[*value]++
	}
}

// CategoryCounts counts events by category between optional start and end dates.
// Only the UTC calendar date of the bounds and of each event is compared.
func (c *Calculator) CategoryCounts(evs []events.ParsedEvent, start, end string) (map[string]int, error) {
	s, err := c.parseOptional("start_date", start)
	if err != nil {
		return nil, err
	}
	e, err := c.parseOptional("end_date", end)
	if err != nil {
		return nil, err
	}
	var window Window
	if s != nil {
		from := startOfDay(s.UTC())
		window.Start = &from
	}
	if e != nil {
		to := startOfDay(e.UTC()).Add(24*time.Hour - time.Nanosecond)
		window.End = &to
	}
	result := map[string]int{}
	for _, ev := range evs {
		if window.contains(ev.Time) {
			count(result, ev.Category)
		}
	}
	return result, nil
}

// TodayCount counts the events on the current UTC date.
func (c *Calculator) TodayCount(evs []events.ParsedEvent) int {
	today := startOfDay(c.utcNow())
	n := 0
	for _, e := range evs {
		if startOfDay(e.Time.UTC()).Equal(today) {
			n++
		}
	}
	return n
}

// RecentCount counts the events of direction d within the last RecentWindow.
func (c *Calculator) RecentCount(evs []events.ParsedEvent, d events.Direction) int {
	since := c.utcNow().Add(-RecentWindow)
	n := 0
	for _, e := range evs {
		if e.Direction == d && !e.Time.Before(since) {
			n++
		}
	}
	return n
}

// Field selects a descriptive attribute of an event.
type Field func(events.ParsedEvent) *string

var (
	CategoryField Field = func(e events.ParsedEvent) *string { return e.Category }
	ColorField    Field = func(e events.ParsedEvent) *string { return e.Color }
	GateField     Field = func(e events.ParsedEvent) *string { return &e.GateLabel }
)

// Distinct returns the distinct present values of field in first-seen order.
func Distinct(evs []events.ParsedEvent, field Field) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, e := range evs {
		v := field(e)
		if v == nil {
			continue
		}
		if _, ok := seen[*v]; ok {
			continue
		}
		seen[*v] = struct{}{}
		result = append(result, *v)
	}
	return result
}
