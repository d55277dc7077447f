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

// Package export renders sessions as CSV or JSON lines and ships them to a writer or a bucket.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/session"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// Header is the CSV column order of the reporting export.
var Header = []string{
	"insertion_id",
	"license_plate",
	"category",
	"color",
	"entry_timestamp",
	"entry_gate",
	"exit_timestamp",
	"exit_gate",
	"zone",
	"description",
	"insertion_id_exit",
	"duration",
}

// ParseFormat parses a format name; the empty string selects FormatCSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q, expected %q or %q", s, FormatCSV, FormatJSONL)
	}
}

func (f Format) ContentType() string {
	if f == FormatJSONL {
		return "application/x-ndjson"
	}
	return "text/csv"
}

func (f Format) Extension() string {
	return "." + string(f)
}

// FileName is the default attachment name of an export taken at t.
func (f Format) FileName(t time.Time) string {
	return "sessions-" + t.UTC().Format("20060102T150405Z") + f.Extension()
}

// Write renders sessions to w in format f.
func Write(w io.Writer, f Format, sessions []session.Session) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, sessions)
	case FormatJSONL:
		return WriteJSONL(w, sessions)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// Record is the CSV row of s. Timestamps are RFC3339 with sub-second digits when present, absent values are empty cells.
func Record(s session.Session) []string {
	exitTime := ""
	if s.ExitTime != nil {
		exitTime = s.ExitTime.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		strconv.FormatInt(s.EntryID, 10),
		s.Plate,
		events.StringOrEmpty(s.Category),
		events.StringOrEmpty(s.Color),
		s.EntryTime.UTC().Format(time.RFC3339Nano),
		s.EntryGate,
		exitTime,
		s.ExitGate,
		events.StringOrEmpty(s.Zone),
		events.StringOrEmpty(s.Description),
		strconv.FormatInt(s.ExitID, 10),
		strconv.FormatFloat(s.DurationSeconds, 'f', -1, 64),
	}
}

func WriteCSV(w io.Writer, sessions []session.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range sessions {
		if err := cw.Write(Record(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSONL(w io.Writer, sessions []session.Session) error {
	enc := json.NewEncoder(w)
	for _, s := range sessions {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode session %d: %w", s.EntryID, err)
		}
	}
	return nil
}
