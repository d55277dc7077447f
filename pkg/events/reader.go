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

package events

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Encoding of a batch of events.
type Encoding string

const (
	EncodingCSV   Encoding = "csv"
	EncodingJSONL Encoding = "jsonl"
)

// EncodingFromName picks the encoding from a file or object name. Anything that is not
// .jsonl, .ndjson or .json is read as CSV.
func EncodingFromName(name string) Encoding {
	switch strings.ToLower(path.Ext(name)) {
	case ".jsonl", ".ndjson", ".json":
		return EncodingJSONL
	default:
		return EncodingCSV
	}
}

// Batch is the result of reading a batch of events. Skipped counts records that could not be
// turned into a RawEvent.
type Batch struct {
	Events  []RawEvent
	Skipped int
}

// Read reads a whole batch in the given encoding.
func Read(r io.Reader, enc Encoding) (Batch, error) {
	switch enc {
	case EncodingJSONL:
		return ReadJSONLines(r)
	case EncodingCSV:
		return ReadCSV(r)
	default:
		return Batch{}, fmt.Errorf("unsupported encoding %q", enc)
	}
}

// ReadCSV reads a CSV document with a header row. Unknown columns are ignored.
func ReadCSV(r io.Reader) (Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Batch{}, nil
	}
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		if name := strings.TrimPrefix(h, "\ufeff"); CanonicalField(name) != "" {
			columns[i] = name
		}
	}
	var batch Batch
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return batch, nil
		}
		if err != nil {
			return batch, fmt.Errorf("failed to read csv row: %w", err)
		}
		record := make(map[string]string, len(columns))
		for i, value := range row {
			if i < len(columns) && columns[i] != "" {
				record[columns[i]] = value
			}
		}
		event, err := FromRecord(record)
		if err != nil {
			batch.Skipped++
			continue
		}
		batch.Events = append(batch.Events, event)
	}
}

// ReadJSONLines reads one JSON object per line. Blank lines are ignored.
func ReadJSONLines(r io.Reader) (Batch, error) {
	var batch Batch
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		event, err := DecodeJSON([]byte(line))
		if err != nil {
			batch.Skipped++
			continue
		}
		batch.Events = append(batch.Events, event)
	}
	if err := scanner.Err(); err != nil {
		return batch, fmt.Errorf("failed to read json lines: %w", err)
	}
	return batch, nil
}
