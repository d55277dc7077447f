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
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/numaproj/parksession"
	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/export"
	"github.com/numaproj/parksession/pkg/query"
	"github.com/numaproj/parksession/pkg/shared/logging"
	"github.com/numaproj/parksession/pkg/snapshot"
	"github.com/numaproj/parksession/pkg/stats"
)

// Reloader rebuilds the snapshot on demand.
type Reloader interface {
	ReloadNow(ctx context.Context) (*snapshot.Snapshot, error)
}

type handlerOptions struct {
	// readonly disables POST /reload
	readonly bool
	query    *query.Engine
	now      func() time.Time
}

func defaultHandlerOptions() *handlerOptions {
	return &handlerOptions{
		readonly: false,
		now:      time.Now,
	}
}

type HandlerOption func(*handlerOptions)

// WithReadOnlyMode sets the server to read only mode
func WithReadOnlyMode() HandlerOption {
	return func(o *handlerOptions) {
		o.readonly = true
	}
}

// WithQueryEngine replaces the default query engine, which has no cache.
func WithQueryEngine(e *query.Engine) HandlerOption {
	return func(o *handlerOptions) {
		o.query = e
	}
}

// WithClock sets the clock of the time relative statistics.
func WithClock(now func() time.Time) HandlerOption {
	return func(o *handlerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

type handler struct {
	store    *snapshot.Store
	reloader Reloader
	query    *query.Engine
	stats    *stats.Calculator
	log      *zap.SugaredLogger
	opts     *handlerOptions
}

// NewHandler is used to provide a new instance of the handler type
func NewHandler(ctx context.Context, store *snapshot.Store, reloader Reloader, opts ...HandlerOption) *handler {
	o := defaultHandlerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	q := o.query
	if q == nil {
		q = query.NewEngine()
	}
	return &handler{
		store:    store,
		reloader: reloader,
		query:    q,
		stats:    stats.New(stats.WithClock(o.now)),
		log:      logging.FromContext(ctx),
		opts:     o,
	}
}

func (h *handler) respondWithError(c *gin.Context, status int, message string) {
	c.JSON(status, NewAPIResponse(&message, nil))
}

// errorStatus maps validation errors to 400 and everything else to 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidQuery), errors.Is(err, stats.ErrInvalidRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// snapshot loads the current snapshot once for the request, or responds with 503.
func (h *handler) snapshot(c *gin.Context) (*snapshot.Snapshot, bool) {
	snap := h.store.Load()
	if snap == nil {
		h.respondWithError(c, http.StatusServiceUnavailable, snapshot.ErrNoSnapshot.Error())
		return nil, false
	}
	return snap, true
}

func (h *handler) bindParams(c *gin.Context) (query.Params, bool) {
	var params query.Params
	if err := c.ShouldBindQuery(&params); err != nil {
		h.respondWithError(c, http.StatusBadRequest, fmt.Sprintf("Failed to parse query parameters: %v", err))
		return params, false
	}
	return params, true
}

func (h *handler) bindStatsQuery(c *gin.Context) (StatsQuery, bool) {
	var q StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondWithError(c, http.StatusBadRequest, fmt.Sprintf("Failed to parse query parameters: %v", err))
		return q, false
	}
	return q, true
}

// ListSessions is used to provide one page of reconstructed sessions
func (h *handler) ListSessions(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	page, err := h.query.Sessions(snap, params)
	if err != nil {
		h.respondWithError(c, errorStatus(err), fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, page))
}

// ListEvents is used to provide one page of normalized events, newest first
func (h *handler) ListEvents(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	page, err := h.query.Events(snap, params)
	if err != nil {
		h.respondWithError(c, errorStatus(err), fmt.Sprintf("Failed to list events: %v", err))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, page))
}

// GetCategoryStats is used to provide the event count per category
func (h *handler) GetCategoryStats(c *gin.Context) {
	q, ok := h.bindStatsQuery(c)
	if !ok {
		return
	}
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	counts, err := h.stats.CategoryCounts(snap.Events, q.StartDate, q.EndDate)
	if err != nil {
		h.respondWithError(c, errorStatus(err), fmt.Sprintf("Failed to get category stats: %v", err))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, NewCategoryStatsResponse(counts)))
}

// GetEnhancedStats is used to provide the event overview of a time range
func (h *handler) GetEnhancedStats(c *gin.Context) {
	q, ok := h.bindStatsQuery(c)
	if !ok {
		return
	}
	r, err := stats.ParseRange(q.TimeRange)
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	result, err := h.stats.Enhanced(snap.Events, r, q.StartDate, q.EndDate)
	if err != nil {
		h.respondWithError(c, errorStatus(err), fmt.Sprintf("Failed to get enhanced stats: %v", err))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, result))
}

// GetTodayCount is used to provide the number of events of the current UTC day
func (h *handler) GetTodayCount(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, NewCountResponse(h.stats.TodayCount(snap.Events))))
}

// GetRecentEntries is used to provide the number of entries in the last ten minutes
func (h *handler) GetRecentEntries(c *gin.Context) {
	h.recentCount(c, events.DirectionEntry)
}

// GetRecentExits is used to provide the number of exits in the last ten minutes
func (h *handler) GetRecentExits(c *gin.Context) {
	h.recentCount(c, events.DirectionExit)
}

func (h *handler) recentCount(c *gin.Context, d events.Direction) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, NewCountResponse(h.stats.RecentCount(snap.Events, d))))
}

// GetDurationStats is used to provide the stay length summary of the sessions matching the query
func (h *handler) GetDurationStats(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	sessions, err := h.query.FilterSessions(snap, params)
	if err != nil {
		h.respondWithError(c, errorStatus(err), fmt.Sprintf("Failed to get duration stats: %v", err))
		return
	}
	summary, err := stats.Durations(sessions)
	if err != nil {
		h.respondWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to get duration stats: %v", err))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, summary))
}

// ListCategories is used to provide the distinct categories
func (h *handler) ListCategories(c *gin.Context) {
	h.distinct(c, "categories", stats.CategoryField)
}

// ListColors is used to provide the distinct colors
func (h *handler) ListColors(c *gin.Context) {
	h.distinct(c, "colors", stats.ColorField)
}

// ListGates is used to provide the distinct gate labels
func (h *handler) ListGates(c *gin.Context) {
	h.distinct(c, "gates", stats.GateField)
}

func (h *handler) distinct(c *gin.Context, name string, field stats.Field) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, map[string][]string{name: stats.Distinct(snap.Events, field)}))
}

// Export is used to download the sessions matching the query as csv or jsonl
func (h *handler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	params, ok := h.bindParams(c)
	if !ok {
		return
	}
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	sessions, err := h.query.FilterSessions(snap, params)
	if err != nil {
		h.respondWithError(c, errorStatus(err), fmt.Sprintf("Failed to export sessions: %v", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName(h.opts.now())))
	c.Header("Content-Type", format.ContentType())
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, sessions); err != nil {
		// the status line is already sent
		h.log.Errorw("Failed to write export", zap.String("format", string(format)), zap.Error(err))
	}
}

// Reload is used to rebuild the snapshot from all sources
func (h *handler) Reload(c *gin.Context) {
	if h.opts.readonly {
		h.respondWithError(c, http.StatusForbidden, "Failed to perform this operation in read only mode")
		return
	}
	ctx := logging.WithLogger(c.Request.Context(), h.log)
	snap, err := h.reloader.ReloadNow(ctx)
	switch {
	case errors.Is(err, snapshot.ErrReloadInProgress):
		h.respondWithError(c, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.respondWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to reload: %v", err))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, NewSnapshotInfo(snap)))
}

// GetSysInfo is used to provide the build and the published snapshot information
func (h *handler) GetSysInfo(c *gin.Context) {
	c.JSON(http.StatusOK, NewAPIResponse(nil, SysInfoResponse{
		Version:    parksession.GetVersion(),
		IsReadOnly: h.opts.readonly,
		Snapshot:   NewSnapshotInfo(h.store.Load()),
	}))
}
