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

package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/session"
)

// Wednesday
var now = time.Date(2025, 1, 22, 12, 0, 0, 0, time.UTC)

func ev(id int64, plate, gate, ts, category, color, zone string) events.ParsedEvent {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return events.ParsedEvent{
		ID:        id,
		Plate:     plate,
		GateLabel: gate,
		Time:      t,
		Direction: events.Classify(gate),
		Category:  events.Optional(category),
		Color:     events.Optional(color),
		Zone:      events.Optional(zone),
	}
}

func testEvents() []events.ParsedEvent {
	return []events.ParsedEvent{
		ev(1, "A", "north_in", "2025-01-22T11:55:00Z", "car", "red", "A"),
		ev(2, "A", "south_out", "2025-01-22T11:58:00Z", "car", "red", "A"),
		ev(3, "B", "north_in", "2025-01-22T08:10:00Z", "truck", "blue", ""),
		ev(4, "C", "east_in", "2025-01-21T08:30:00Z", "car", "", "B"),
		ev(5, "D", "lobby", "2025-01-19T09:00:00Z", "car", "", ""),
		ev(6, "E", "north_in", "2024-12-31T23:00:00Z", "bike", "red", ""),
		ev(7, "B", "south_out", "2025-01-22T11:50:00Z", "truck", "blue", ""),
	}
}

func newCalculator() *Calculator {
	return New(WithClock(func() time.Time { return now }))
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("")
	require.NoError(t, err)
	assert.Equal(t, RangeAll, r)
	r, err = ParseRange("Week")
	require.NoError(t, err)
	assert.Equal(t, RangeWeek, r)
	_, err = ParseRange("year")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCalculator_Resolve(t *testing.T) {
	c := newCalculator()
	tests := []struct {
		r    Range
		from time.Time
	}{
		{r: RangeToday, from: time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)},
		{r: RangeWeek, from: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)},
		{r: RangeMonth, from: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			w, err := c.Resolve(tt.r, "", "", nil)
			require.NoError(t, err)
			require.NotNil(t, w.Start)
			require.NotNil(t, w.End)
			assert.Equal(t, tt.from, *w.Start)
			assert.Equal(t, now, *w.End)
		})
	}

	t.Run("week on a monday", func(t *testing.T) {
		monday := time.Date(2025, 1, 20, 6, 0, 0, 0, time.UTC)
		w, err := New(WithClock(func() time.Time { return monday })).Resolve(RangeWeek, "", "", nil)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), *w.Start)
	})

	t.Run("week on a sunday", func(t *testing.T) {
		sunday := time.Date(2025, 1, 26, 6, 0, 0, 0, time.UTC)
		w, err := New(WithClock(func() time.Time { return sunday })).Resolve(RangeWeek, "", "", nil)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), *w.Start)
	})

	t.Run("all", func(t *testing.T) {
		w, err := c.Resolve(RangeAll, "", "", testEvents())
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), *w.Start)
		assert.Equal(t, time.Date(2025, 1, 22, 11, 58, 0, 0, time.UTC), *w.End)

		w, err = c.Resolve(RangeAll, "", "", nil)
		require.NoError(t, err)
		assert.Nil(t, w.Start)
		assert.Nil(t, w.End)
	})

	t.Run("custom", func(t *testing.T) {
		w, err := c.Resolve(RangeCustom, "2025-01-21T00:00:00Z", "", nil)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC), *w.Start)
		assert.Nil(t, w.End)

		_, err = c.Resolve(RangeCustom, "", "not-a-date", nil)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestCalculator_Enhanced(t *testing.T) {
	c := newCalculator()

	t.Run("today", func(t *testing.T) {
		s, err := c.Enhanced(testEvents(), RangeToday, "", "")
		require.NoError(t, err)
		assert.Equal(t, 4, s.TotalEvents)
		require.NotNil(t, s.BusiestHour)
		assert.Equal(t, 11, *s.BusiestHour)
		assert.Equal(t, map[string]int{"car": 2, "truck": 2}, s.CategoryCounts)
		assert.Equal(t, map[string]int{"north_in": 2, "south_out": 2}, s.GateUsage)
		assert.Equal(t, map[string]int{"red": 2, "blue": 2}, s.ColorDistribution)
		assert.Equal(t, map[string]int{"A": 2}, s.ZoneCounts)
		assert.Equal(t, map[string]int{
			"2025-01-22T08:00:00Z": 1,
			"2025-01-22T09:00:00Z": 0,
			"2025-01-22T10:00:00Z": 0,
			"2025-01-22T11:00:00Z": 3,
		}, s.HourlyTrend)
	})

	t.Run("week", func(t *testing.T) {
		s, err := c.Enhanced(testEvents(), RangeWeek, "", "")
		require.NoError(t, err)
		assert.Equal(t, 5, s.TotalEvents)
		assert.Equal(t, 11, *s.BusiestHour)
		assert.Equal(t, 1, s.GateUsage["east_in"])
	})

	t.Run("month", func(t *testing.T) {
		s, err := c.Enhanced(testEvents(), RangeMonth, "", "")
		require.NoError(t, err)
		assert.Equal(t, 6, s.TotalEvents)
		assert.Equal(t, 1, s.GateUsage["lobby"])
		assert.Zero(t, s.CategoryCounts["bike"])
	})

	t.Run("all", func(t *testing.T) {
		s, err := c.Enhanced(testEvents(), RangeAll, "", "")
		require.NoError(t, err)
		assert.Equal(t, 7, s.TotalEvents)
		assert.Len(t, s.HourlyTrend, 517)
		total := 0
		for _, n := range s.HourlyTrend {
			total += n
		}
		assert.Equal(t, 7, total)
	})

	t.Run("custom", func(t *testing.T) {
		s, err := c.Enhanced(testEvents(), RangeCustom, "2025-01-21T00:00:00Z", "2025-01-22T09:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, 2, s.TotalEvents)
		assert.Equal(t, 8, *s.BusiestHour)
	})

	t.Run("busiest hour tie takes the smallest hour", func(t *testing.T) {
		evs := []events.ParsedEvent{
			ev(1, "A", "north_in", "2025-01-22T15:00:00Z", "", "", ""),
			ev(2, "B", "north_in", "2025-01-22T03:00:00Z", "", "", ""),
		}
		s, err := c.Enhanced(evs, RangeAll, "", "")
		require.NoError(t, err)
		assert.Equal(t, 3, *s.BusiestHour)
		assert.Empty(t, s.CategoryCounts)
	})

	t.Run("empty window", func(t *testing.T) {
		s, err := c.Enhanced(testEvents(), RangeCustom, "2030-01-01T00:00:00Z", "")
		require.NoError(t, err)
		assert.Zero(t, s.TotalEvents)
		assert.Nil(t, s.BusiestHour)
		assert.Empty(t, s.HourlyTrend)
		assert.NotNil(t, s.GateUsage)
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := c.Enhanced(testEvents(), Range("decade"), "", "")
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestCalculator_CategoryCounts(t *testing.T) {
	c := newCalculator()
	counts, err := c.CategoryCounts(testEvents(), "", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"car": 4, "truck": 2, "bike": 1}, counts)

	// bounds are compared by date, so the time of day is ignored
	counts, err = c.CategoryCounts(testEvents(), "2025-01-22T23:00:00Z", "2025-01-22T00:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"car": 2, "truck": 2}, counts)

	counts, err = c.CategoryCounts(testEvents(), "2030-01-01", "")
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = c.CategoryCounts(testEvents(), "not-a-date", "")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCalculator_TodayAndRecent(t *testing.T) {
	c := newCalculator()
	evs := testEvents()
	assert.Equal(t, 4, c.TodayCount(evs))
	assert.Equal(t, 1, c.RecentCount(evs, events.DirectionEntry))
	assert.Equal(t, 2, c.RecentCount(evs, events.DirectionExit))
	assert.Equal(t, 0, c.RecentCount(evs, events.DirectionUnknown))
}

func TestDistinct(t *testing.T) {
	evs := testEvents()
	assert.Equal(t, []string{"car", "truck", "bike"}, Distinct(evs, CategoryField))
	assert.Equal(t, []string{"red", "blue"}, Distinct(evs, ColorField))
	assert.Equal(t, []string{"north_in", "south_out", "east_in", "lobby"}, Distinct(evs, GateField))
	assert.Equal(t, []string{}, Distinct(nil, GateField))
}

func TestDurations(t *testing.T) {
	entry := time.Date(2025, 1, 22, 8, 0, 0, 0, time.UTC)
	var sessions []session.Session
	for i, secs := range []int{300, 60, 240, 120, 180} {
		in := ev(int64(i*2+1), "P", "north_in", entry.Format(time.RFC3339), "", "", "")
		out := ev(int64(i*2+2), "P", "south_out", entry.Add(time.Duration(secs)*time.Second).Format(time.RFC3339), "", "", "")
		sessions = append(sessions, session.Assemble(in, &out))
	}
	sessions = append(sessions, session.Assemble(ev(99, "Q", "north_in", entry.Format(time.RFC3339), "", "", ""), nil))

	summary, err := Durations(sessions)
	require.NoError(t, err)
	assert.Equal(t, DurationSummary{Count: 5, Mean: 180, Median: 180, P90: 300, Max: 300}, summary)

	summary, err = Durations(sessions[5:])
	require.NoError(t, err)
	assert.Equal(t, DurationSummary{}, summary)
}
