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

// Package file reads gate events from a local CSV or JSON-lines file.
package file

import (
	"context"
	"fmt"
	"os"

	"github.com/numaproj/parksession/pkg/events"
)

type Source struct {
	name     string
	path     string
	encoding events.Encoding
}

// New returns a file source. format is "csv" or "jsonl"; when empty it is taken from the
// file extension.
func New(name, path, format string) *Source {
	enc := events.Encoding(format)
	if format == "" {
		enc = events.EncodingFromName(path)
	}
	return &Source{name: name, path: path, encoding: enc}
}

func (s *Source) Name() string {
	return s.name
}

// Fetch reads the whole file.
func (s *Source) Fetch(ctx context.Context) (events.Batch, error) {
	if err := ctx.Err(); err != nil {
		return events.Batch{}, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return events.Batch{}, fmt.Errorf("failed to open %q, %w", s.path, err)
	}
	defer f.Close()
	batch, err := events.Read(f, s.encoding)
	if err != nil {
		return events.Batch{}, fmt.Errorf("failed to read %q, %w", s.path, err)
	}
	return batch, nil
}

func (s *Source) Close() error {
	return nil
}
