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

package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/numaproj/parksession/pkg/query"
	"github.com/numaproj/parksession/pkg/snapshot"
	"github.com/numaproj/parksession/server/apis"
	v1 "github.com/numaproj/parksession/server/apis/v1"
)

// SystemInfo carries what the API needs from the running process.
type SystemInfo struct {
	Store      *snapshot.Store
	Reloader   v1.Reloader
	Query      *query.Engine
	IsReadOnly bool
}

func Routes(ctx context.Context, r *gin.Engine, sysInfo SystemInfo, opts ...v1.HandlerOption) {
	r.GET("/livez", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	if sysInfo.Query != nil {
		opts = append(opts, v1.WithQueryEngine(sysInfo.Query))
	}
	if sysInfo.IsReadOnly {
		opts = append(opts, v1.WithReadOnlyMode())
	}
	handler := v1.NewHandler(ctx, sysInfo.Store, sysInfo.Reloader, opts...)
	v1Routes(r.Group("/api/v1"), handler)
}

func v1Routes(r gin.IRouter, handler apis.Handler) {
	r.GET("/sysinfo", handler.GetSysInfo)
	r.GET("/sessions", handler.ListSessions)
	r.GET("/events", handler.ListEvents)
	r.GET("/stats/category", handler.GetCategoryStats)
	r.GET("/stats/enhanced", handler.GetEnhancedStats)
	r.GET("/stats/today", handler.GetTodayCount)
	r.GET("/stats/recent-entries", handler.GetRecentEntries)
	r.GET("/stats/recent-exits", handler.GetRecentExits)
	r.GET("/stats/durations", handler.GetDurationStats)
	r.GET("/filters/categories", handler.ListCategories)
	r.GET("/filters/colors", handler.ListColors)
	r.GET("/filters/gates", handler.ListGates)
	r.GET("/export", handler.Export)
	r.POST("/reload", handler.Reload)
}
