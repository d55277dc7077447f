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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/metrics"
	"github.com/numaproj/parksession/pkg/shared/logging"
	"github.com/numaproj/parksession/pkg/sources"
)

// ErrReloadInProgress is returned by ReloadNow when another reload is running.
var ErrReloadInProgress = errors.New("reload already in progress")

// Reloader rebuilds the snapshot from all sources, on demand or on a cron schedule.
type Reloader struct {
	store    *Store
	sources  []sources.Source
	settings func() Settings
	running  atomic.Bool

	lock     sync.Mutex
	cron     *cron.Cron
	runCtx   context.Context
	entryID  cron.EntryID
	schedule string
}

func NewReloader(store *Store, srcs []sources.Source, settings func() Settings) *Reloader {
	return &Reloader{
		store:    store,
		sources:  srcs,
		settings: settings,
	}
}

// ReloadNow fetches every source and publishes a new snapshot. If any source fails the
// reload fails and the current snapshot stays in place.
func (r *Reloader) ReloadNow(ctx context.Context) (*Snapshot, error) {
	if !r.running.CompareAndSwap(false, true) {
		metrics.ReloadCount.WithLabelValues(metrics.StatusSkipped).Inc()
		return nil, ErrReloadInProgress
	}
	defer r.running.Store(false)

	log := logging.FromContext(ctx)
	settings := r.settings()
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}
	raw, perSource, err := r.fetchAll(ctx)
	if err != nil {
		metrics.ReloadCount.WithLabelValues(metrics.StatusFailure).Inc()
		return nil, err
	}
	snap := Build(raw, settings)
	snap.Sources = perSource
	r.store.Publish(snap)
	record(snap)
	metrics.ReloadCount.WithLabelValues(metrics.StatusSuccess).Inc()
	log.Infow("Published snapshot",
		zap.String("id", snap.ID.String()),
		zap.Int64("generation", snap.Generation),
		zap.Int("events", len(snap.Events)),
		zap.Int("sessions", len(snap.Sessions)),
		zap.Int("dropped", snap.Stats.Dropped()),
		zap.Duration("correlateIn", snap.CorrelateIn))
	return snap, nil
}

func (r *Reloader) fetchAll(ctx context.Context) ([]events.RawEvent, []SourceStats, error) {
	batches := make([]events.Batch, len(r.sources))
	errs := make([]error, len(r.sources))
	var g errgroup.Group
	for i, src := range r.sources {
		i, src := i, src
		g.Go(func() error {
			batch, err := src.Fetch(ctx)
			if err != nil {
				metrics.SourceFetchErrors.WithLabelValues(src.Name()).Inc()
				errs[i] = fmt.Errorf("source %q: %w", src.Name(), err)
				return nil
			}
			batches[i] = batch
			return nil
		})
	}
	_ = g.Wait()
	if err := multierr.Combine(errs...); err != nil {
		return nil, nil, err
	}
	total := 0
	for _, b := range batches {
		total += len(b.Events)
	}
	raw := make([]events.RawEvent, 0, total)
	perSource := make([]SourceStats, len(r.sources))
	for i, b := range batches {
		raw = append(raw, b.Events...)
		perSource[i] = SourceStats{Name: r.sources[i].Name(), Events: len(b.Events), Skipped: b.Skipped}
		metrics.SourceSkippedRecords.WithLabelValues(r.sources[i].Name()).Set(float64(b.Skipped))
	}
	return raw, perSource, nil
}

func record(snap *Snapshot) {
	for reason, n := range snap.Stats.DropsByReason() {
		metrics.SnapshotDroppedEvents.WithLabelValues(reason).Set(float64(n))
	}
	metrics.SnapshotDirectionEvents.WithLabelValues("entry").Set(float64(snap.Stats.Entries))
	metrics.SnapshotDirectionEvents.WithLabelValues("exit").Set(float64(snap.Stats.Exits))
	metrics.SnapshotDirectionEvents.WithLabelValues("unknown").Set(float64(snap.Stats.Unknown))
	matched := snap.Matched()
	metrics.SnapshotSessions.WithLabelValues(strconv.FormatBool(true)).Set(float64(matched))
	metrics.SnapshotSessions.WithLabelValues(strconv.FormatBool(false)).Set(float64(len(snap.Sessions) - matched))
	metrics.CorrelatorDuration.Observe(snap.CorrelateIn.Seconds())
	metrics.SnapshotEvents.Set(float64(len(snap.Events)))
}

// Run loads a first snapshot, then reloads on schedule until ctx is done. A failed first load
// is logged; the schedule keeps retrying.
func (r *Reloader) Run(ctx context.Context, schedule string) error {
	log := logging.FromContext(ctx).Named("reloader")
	ctx = logging.WithLogger(ctx, log)
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger)))
	r.lock.Lock()
	id, err := c.AddFunc(schedule, func() { r.scheduled(ctx) })
	if err != nil {
		r.lock.Unlock()
		return fmt.Errorf("invalid reload schedule %q, %w", schedule, err)
	}
	r.cron, r.runCtx, r.entryID, r.schedule = c, ctx, id, schedule
	r.lock.Unlock()

	r.scheduled(ctx)
	c.Start()
	log.Infow("Reloader started", zap.String("schedule", schedule))
	<-ctx.Done()
	<-c.Stop().Done()
	r.lock.Lock()
	r.cron, r.runCtx = nil, nil
	r.lock.Unlock()
	log.Info("Reloader stopped")
	return nil
}

func (r *Reloader) scheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.ReloadNow(ctx); err != nil {
		log := logging.FromContext(ctx)
		if errors.Is(err, ErrReloadInProgress) {
			log.Infow("Skipping scheduled reload", zap.Error(err))
			return
		}
		log.Errorw("Scheduled reload failed", zap.Error(err))
	}
}

// SetSchedule replaces the schedule of a running reloader. It is a no-op when the schedule
// is unchanged or the reloader is not running.
func (r *Reloader) SetSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid reload schedule %q, %w", schedule, err)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.cron == nil || schedule == r.schedule {
		return nil
	}
	ctx := r.runCtx
	id, err := r.cron.AddFunc(schedule, func() { r.scheduled(ctx) })
	if err != nil {
		return err
	}
	r.cron.Remove(r.entryID)
	r.entryID, r.schedule = id, schedule
	logging.FromContext(ctx).Infow("Reload schedule updated", zap.String("schedule", schedule))
	return nil
}

// Schedule returns the active schedule, or "" when not running.
func (r *Reloader) Schedule() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.cron == nil {
		return ""
	}
	return r.schedule
}

// Next returns when the next scheduled reload fires.
func (r *Reloader) Next() time.Time {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.cron == nil {
		return time.Time{}
	}
	return r.cron.Entry(r.entryID).Next
}
