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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/blnkfinance/quakevault"
	"github.com/blnkfinance/quakevault/api/middleware"
	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/internal/apierror"
)

type Api struct {
	qv      *quakevault.QuakeVault
	monitor *quakevault.Monitor
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/health", a.Health)

	router.POST("/vaults", a.CreateVault)
	router.GET("/vaults", a.GetAllVaults)
	router.GET("/vaults/latest", a.GetLatestVault)
	router.GET("/vaults/:id", a.GetVault)

	router.POST("/monitor/run", middleware.MonitorRunLimitMiddleware(), a.RunMonitor)
	router.GET("/monitor/status", a.MonitorStatus)
	return a.router
}

// NewAPI builds the HTTP adapter. monitor may be nil when the process runs without one.
func NewAPI(qv *quakevault.QuakeVault, monitor *quakevault.Monitor) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{qv: qv, monitor: monitor, router: r}
}

func (a Api) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}
