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

// Package query filters, sorts and pages the sessions and events of a snapshot.
package query

import (
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/metrics"
	"github.com/numaproj/parksession/pkg/normalize"
	"github.com/numaproj/parksession/pkg/session"
	"github.com/numaproj/parksession/pkg/snapshot"
)

const (
	viewSessions = "sessions"
	viewEvents   = "events"
)

// Engine answers list queries. Results are cached per snapshot, so a newly published
// snapshot never serves a stale page.
type Engine struct {
	parse TimeParser
	cache *expirable.LRU[string, interface{}]
}

type Option func(*Engine)

// WithTimeParser sets the parser for start_date and end_date.
func WithTimeParser(parse TimeParser) Option {
	return func(e *Engine) {
		if parse != nil {
			e.parse = parse
		}
	}
}

// WithCache enables the result cache. A size <= 0 disables it.
func WithCache(size int, ttl time.Duration) Option {
	return func(e *Engine) {
		if size <= 0 {
			e.cache = nil
			return
		}
		e.cache = expirable.NewLRU[string, interface{}](size, nil, ttl)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{parse: normalize.ParseTime}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func cacheKey(snap *snapshot.Snapshot, view string, p Params) string {
	return snap.ID.String() + "/" + view + "/" + p.key()
}

func (e *Engine) cached(key string) (interface{}, bool) {
	if e.cache == nil {
		return nil, false
	}
	v, ok := e.cache.Get(key)
	if ok {
		metrics.QueryCacheHits.Inc()
	}
	return v, ok
}

func (e *Engine) store(key string, v interface{}) {
	if e.cache != nil {
		e.cache.Add(key, v)
	}
}

// FilterSessions returns every session of snap matching p, sorted by entry time descending
// and then by entry id descending. Paging parameters are ignored.
func (e *Engine) FilterSessions(snap *snapshot.Snapshot, p Params) ([]session.Session, error) {
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	return e.filterSessions(snap, p)
}

func (e *Engine) filterSessions(snap *snapshot.Snapshot, p Params) ([]session.Session, error) {
	f, err := NewSessionFilter(p, e.parse)
	if err != nil {
		return nil, err
	}
	result := make([]session.Session, 0)
	for _, s := range snap.Sessions {
		ok, err := f.MatchSession(s)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, s)
		}
	}
	SortSessions(result)
	return result, nil
}

// Sessions returns one page of the sessions of snap matching p.
func (e *Engine) Sessions(snap *snapshot.Snapshot, p Params) (*Page[session.Session], error) {
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	key := cacheKey(snap, viewSessions, p)
	if v, ok := e.cached(key); ok {
		return v.(*Page[session.Session]), nil
	}
	filtered, err := e.filterSessions(snap, p)
	if err != nil {
		return nil, err
	}
	page := Paginate(filtered, p.Page, p.PageSize)
	e.store(key, &page)
	return &page, nil
}

// Events returns one page of the normalized events of snap matching p, newest first.
// UNKNOWN direction events are included.
func (e *Engine) Events(snap *snapshot.Snapshot, p Params) (*Page[events.ParsedEvent], error) {
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	key := cacheKey(snap, viewEvents, p)
	if v, ok := e.cached(key); ok {
		return v.(*Page[events.ParsedEvent]), nil
	}
	f, err := NewEventFilter(p, e.parse)
	if err != nil {
		return nil, err
	}
	filtered := make([]events.ParsedEvent, 0)
	for _, ev := range snap.Events {
		ok, err := f.MatchEvent(ev)
		if err != nil {
			return nil, err
		}
		if ok {
			filtered = append(filtered, ev)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[j].Less(filtered[i])
	})
	page := Paginate(filtered, p.Page, p.PageSize)
	e.store(key, &page)
	return &page, nil
}

// SortSessions sorts by entry time descending, ties by entry id descending.
func SortSessions(sessions []session.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.EntryTime.Equal(b.EntryTime) {
			return a.EntryTime.After(b.EntryTime)
		}
		return a.EntryID > b.EntryID
	})
}
