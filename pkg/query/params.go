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

package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/numaproj/parksession/pkg/shared/util"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ErrInvalidQuery wraps every parameter validation error.
var ErrInvalidQuery = errors.New("invalid query")

// Status selects sessions by whether they have an exit.
type Status string

const (
	StatusAny       Status = ""
	StatusMatched   Status = "matched"
	StatusUnmatched Status = "unmatched"
)

// Params are the query string parameters of the list views. List parameters are comma
// separated.
type Params struct {
	Page          int    `form:"page" json:"page"`
	PageSize      int    `form:"page_size" json:"page_size"`
	Search        string `form:"search" json:"search,omitempty"`
	StartDate     string `form:"start_date" json:"start_date,omitempty"`
	EndDate       string `form:"end_date" json:"end_date,omitempty"`
	LicensePrefix string `form:"license_prefix" json:"license_prefix,omitempty"`
	Category      string `form:"category" json:"category,omitempty"`
	Color         string `form:"color" json:"color,omitempty"`
	Gate          string `form:"gate" json:"gate,omitempty"`
	Status        Status `form:"status" json:"status,omitempty"`
	Expr          string `form:"expr" json:"expr,omitempty"`
}

// Normalize fills in paging defaults, trims every field and sorts the comma lists so
// equivalent queries share one canonical form.
func (p Params) Normalize() (Params, error) {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Page < 1 {
		return p, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidQuery, p.Page)
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return p, fmt.Errorf("%w: page_size must be between 1 and %d, got %d", ErrInvalidQuery, MaxPageSize, p.PageSize)
	}
	p.Search = strings.TrimSpace(p.Search)
	p.StartDate = strings.TrimSpace(p.StartDate)
	p.EndDate = strings.TrimSpace(p.EndDate)
	p.Expr = strings.TrimSpace(p.Expr)
	p.LicensePrefix = canonicalList(p.LicensePrefix)
	p.Category = canonicalList(p.Category)
	p.Color = canonicalList(p.Color)
	p.Gate = canonicalList(p.Gate)
	switch Status(strings.ToLower(strings.TrimSpace(string(p.Status)))) {
	case StatusAny:
		p.Status = StatusAny
	case StatusMatched:
		p.Status = StatusMatched
	case StatusUnmatched:
		p.Status = StatusUnmatched
	default:
		return p, fmt.Errorf("%w: status must be %q or %q, got %q", ErrInvalidQuery, StatusMatched, StatusUnmatched, p.Status)
	}
	return p, nil
}

// key is the cache key of normalized params.
func (p Params) key() string {
	b, _ := json.Marshal(p)
	return string(b)
}

func canonicalList(s string) string {
	items := util.SplitList(s)
	if len(items) == 0 {
		return ""
	}
	sort.Strings(items)
	return strings.Join(items, ",")
}

// Page is one page of a list view.
type Page[T any] struct {
	Data         []T `json:"data"`
	TotalPages   int `json:"total_pages"`
	CurrentPage  int `json:"current_page"`
	TotalRecords int `json:"total_records"`
}

// Paginate slices items for page. A page past the end is empty, not an error.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)
	result := Page[T]{
		Data:         []T{},
		TotalPages:   (total + pageSize - 1) / pageSize,
		CurrentPage:  page,
		TotalRecords: total,
	}
	start := (page - 1) * pageSize
	if start >= total {
		return result
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	result.Data = items[start:end]
	return result
}
