/*
Copyright 2024 Blnk Finance Authors.

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

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunMonitor runs one cycle synchronously and returns its report. The cycle is
// detached from the request so a disconnecting client cannot abort it halfway.
func (a Api) RunMonitor(c *gin.Context) {
	if a.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "monitor is not enabled on this instance"})
		return
	}

	report, err := a.monitor.RunOnce(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (a Api) MonitorStatus(c *gin.Context) {
	if a.monitor == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled":     true,
		"running":     a.monitor.IsRunning(),
		"in_cycle":    a.monitor.InCycle(),
		"last_report": a.monitor.LastReport(),
	})
}
