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

// Package session holds the reconstructed parking stay and the sentinel policy for stays
// that have no matching exit.
package session

import (
	"time"

	"github.com/numaproj/parksession/pkg/events"
)

const (
	// NoExitID is the exit id of an unmatched session.
	NoExitID int64 = -1
	// NoDuration is the duration of an unmatched session.
	NoDuration float64 = -1
)

// Session is one vehicle stay: an entry and, when found, the exit it was paired with.
// ExitTime is nil iff ExitID == NoExitID iff ExitGate == "" iff DurationSeconds == NoDuration.
type Session struct {
	EntryID         int64      `json:"entry_id"`
	Plate           string     `json:"plate"`
	Category        *string    `json:"category"`
	Color           *string    `json:"color"`
	Zone            *string    `json:"zone"`
	Description     *string    `json:"description"`
	EntryTime       time.Time  `json:"entry_time"`
	EntryGate       string     `json:"entry_gate"`
	ExitTime        *time.Time `json:"exit_time"`
	ExitGate        string     `json:"exit_gate"`
	ExitID          int64      `json:"exit_id"`
	DurationSeconds float64    `json:"duration_seconds"`
}

// Matched reports whether the session has an exit.
func (s Session) Matched() bool {
	return s.ExitTime != nil
}

// Duration returns the stay length, or zero for an unmatched session.
func (s Session) Duration() time.Duration {
	if s.ExitTime == nil {
		return 0
	}
	return s.ExitTime.Sub(s.EntryTime)
}

// Assemble builds the session for entry. exit is nil when no exit matched; the exit side
// then carries the sentinel values. Descriptive fields always come from the entry.
func Assemble(entry events.ParsedEvent, exit *events.ParsedEvent) Session {
	s := Session{
		EntryID:         entry.ID,
		Plate:           entry.Plate,
		Category:        entry.Category,
		Color:           entry.Color,
		Zone:            entry.Zone,
		Description:     entry.Description,
		EntryTime:       entry.Time,
		EntryGate:       entry.GateLabel,
		ExitID:          NoExitID,
		DurationSeconds: NoDuration,
	}
	if exit == nil {
		return s
	}
	exitTime := exit.Time
	s.ExitTime = &exitTime
	s.ExitGate = exit.GateLabel
	s.ExitID = exit.ID
	s.DurationSeconds = exit.Time.Sub(entry.Time).Seconds()
	return s
}
