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

package apis

import "github.com/gin-gonic/gin"

type Handler interface {
	GetSysInfo(c *gin.Context)
	ListSessions(c *gin.Context)
	ListEvents(c *gin.Context)
	GetCategoryStats(c *gin.Context)
	GetEnhancedStats(c *gin.Context)
	GetTodayCount(c *gin.Context)
	GetRecentEntries(c *gin.Context)
	GetRecentExits(c *gin.Context)
	GetDurationStats(c *gin.Context)
	ListCategories(c *gin.Context)
	ListColors(c *gin.Context)
	ListGates(c *gin.Context)
	Export(c *gin.Context)
	Reload(c *gin.Context)
}
