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

package v1

import (
	"time"

	"github.com/numaproj/parksession"
	"github.com/numaproj/parksession/pkg/snapshot"
)

// SnapshotInfo summarizes the published snapshot.
type SnapshotInfo struct {
	ID          string                 `json:"id"`
	Generation  int64                  `json:"generation"`
	LoadedAt    time.Time              `json:"loadedAt"`
	Events      int                    `json:"events"`
	Sessions    int                    `json:"sessions"`
	Matched     int                    `json:"matched"`
	Dropped     map[string]int         `json:"dropped"`
	Sources     []snapshot.SourceStats `json:"sources"`
	Tolerance   string                 `json:"tolerance"`
	MatchPolicy string                 `json:"matchPolicy"`
}

// NewSnapshotInfo returns nil for a nil snapshot.
func NewSnapshotInfo(snap *snapshot.Snapshot) *SnapshotInfo {
	if snap == nil {
		return nil
	}
	return &SnapshotInfo{
		ID:          snap.ID.String(),
		Generation:  snap.Generation,
		LoadedAt:    snap.LoadedAt,
		Events:      len(snap.Events),
		Sessions:    len(snap.Sessions),
		Matched:     snap.Matched(),
		Dropped:     snap.Stats.DropsByReason(),
		Sources:     snap.Sources,
		Tolerance:   snap.Tolerance.String(),
		MatchPolicy: string(snap.Policy),
	}
}

type SysInfoResponse struct {
	Version    parksession.Version `json:"version"`
	IsReadOnly bool                `json:"isReadOnly"`
	Snapshot   *SnapshotInfo       `json:"snapshot"`
}
