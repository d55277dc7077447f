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

package snapshot

import (
	"context"
	"errors"

	"go.uber.org/atomic"
)

// ErrNoSnapshot is returned while nothing has been published.
var ErrNoSnapshot = errors.New("no snapshot published yet")

// Store publishes snapshots atomically. Load never blocks and never observes a partially
// built snapshot.
type Store struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Int64
}

func NewStore() *Store {
	return &Store{}
}

// Load returns the current snapshot, or nil before the first Publish.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Publish stamps snap with the next generation and makes it current.
func (s *Store) Publish(snap *Snapshot) {
	snap.Generation = s.generation.Inc()
	s.current.Store(snap)
}

// IsHealthy reports ready once a snapshot exists.
func (s *Store) IsHealthy(_ context.Context) error {
	if s.Load() == nil {
		return ErrNoSnapshot
	}
	return nil
}
