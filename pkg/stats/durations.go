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
	mstats "github.com/montanaflynn/stats"

	"github.com/numaproj/parksession/pkg/session"
)

// DurationSummary describes the stay lengths of matched sessions, in seconds.
// Every statistic is zero when Count is zero.
type DurationSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_seconds"`
	Median float64 `json:"median_seconds"`
	P90    float64 `json:"p90_seconds"`
	Max    float64 `json:"max_seconds"`
}

// Durations summarizes the matched sessions. Unmatched sessions are ignored.
func Durations(sessions []session.Session) (DurationSummary, error) {
	data := make(mstats.Float64Data, 0, len(sessions))
	for _, s := range sessions {
		if s.Matched() {
			data = append(data, s.DurationSeconds)
		}
	}
	summary := DurationSummary{Count: len(data)}
	if len(data) == 0 {
		return summary, nil
	}
	var err error
	if summary.Mean, err = mstats.Mean(data); err != nil {
		return summary, err
	}
	if summary.Median, err = mstats.Median(data); err != nil {
		return summary, err
	}
	if summary.P90, err = mstats.PercentileNearestRank(data, 90); err != nil {
		return summary, err
	}
	if summary.Max, err = mstats.Max(data); err != nil {
		return summary, err
	}
	return summary, nil
}
