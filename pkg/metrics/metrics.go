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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parksession"

const (
	LabelVersion   = "version"
	LabelPlatform  = "platform"
	LabelComponent = "component"
	LabelReason    = "reason"
	LabelDirection = "direction"
	LabelMatched   = "matched"
	LabelStatus    = "status"
	LabelSource    = "source"

	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by parksession binary version, platform, and component",
	}, []string{LabelComponent, LabelVersion, LabelPlatform})
)

// Snapshot metrics describe the published snapshot. Every reload rebuilds the snapshot from
// the full source contents, so they are gauges set on publish.
var (
	SnapshotEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "events",
		Help:      "Number of normalized events in the published snapshot",
	})

	// SnapshotDirectionEvents splits SnapshotEvents by direction.
	SnapshotDirectionEvents = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "direction_events",
		Help:      "Number of normalized events in the published snapshot, by direction",
	}, []string{LabelDirection})

	// SnapshotDroppedEvents are the records the normalizer excluded, by reason.
	SnapshotDroppedEvents = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "dropped_events",
		Help:      "Number of source events dropped while building the published snapshot, by reason",
	}, []string{LabelReason})

	SnapshotSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "sessions",
		Help:      "Number of sessions in the published snapshot",
	}, []string{LabelMatched})

	CorrelatorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "correlator",
		Name:      "duration_seconds",
		Help:      "Time spent correlating one snapshot",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

// Reloader metrics
var (
	ReloadCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reloader",
		Name:      "reload_total",
		Help:      "Total number of snapshot reloads, by status",
	}, []string{LabelStatus})

	SourceFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "fetch_errors_total",
		Help:      "Total number of failed source fetches",
	}, []string{LabelSource})

	// SourceSkippedRecords are the records a source could not decode on its last successful fetch.
	SourceSkippedRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "skipped_records",
		Help:      "Number of records skipped on the last fetch because they could not be decoded",
	}, []string{LabelSource})
)

// Query metrics
var (
	QueryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "cache_hit_total",
		Help:      "Total number of session queries served from the cache",
	})
)
