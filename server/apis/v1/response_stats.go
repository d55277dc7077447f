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

// CountResponse is the body of the single counter endpoints.
type CountResponse struct {
	Count int `json:"count"`
}

func NewCountResponse(count int) CountResponse {
	return CountResponse{Count: count}
}

// CategoryStatsResponse is the body of the category stats endpoint.
type CategoryStatsResponse struct {
	CategoryCounts map[string]int `json:"category_counts"`
}

func NewCategoryStatsResponse(counts map[string]int) CategoryStatsResponse {
	return CategoryStatsResponse{CategoryCounts: counts}
}

// StatsQuery are the query parameters of the stats endpoints.
type StatsQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	TimeRange string `form:"time_range"`
}
