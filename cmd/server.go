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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/quakevault"
	"github.com/blnkfinance/quakevault/api"
	"github.com/blnkfinance/quakevault/config"
	redlock "github.com/blnkfinance/quakevault/internal/lock"
	"github.com/blnkfinance/quakevault/internal/traces"
)

/*
serveTLS starts an HTTPS server with TLS enabled using CertMagic for automatic certificate management.
If no domain is specified, the server will default to running on localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: "./certmagic"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTPS server: %w", err)
	}

	return nil
}

// newMonitor builds the monitor loop, taking the distributed cycle lock when Redis is available.
func newMonitor(app *quakevaultInstance) *quakevault.Monitor {
	monitor := quakevault.NewMonitor(app.qv, app.cnf)
	if rdb := app.redisClient(); rdb != nil {
		monitor.WithLocker(redlock.NewCycleLocker(rdb, app.cnf.ProjectName))
	}
	return monitor
}

func initializeRouter(app *quakevaultInstance, monitor *quakevault.Monitor) (*gin.Engine, error) {
	a := api.NewAPI(app.qv, monitor)
	if a == nil {
		return nil, fmt.Errorf("api configuration not loaded")
	}
	return a.Router(), nil
}

// initializeObservability installs the OpenTelemetry providers when telemetry is enabled
// and mirrors logrus output into the log provider.
func initializeObservability(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}

	providers, err := traces.SetupOTelSDK(ctx, cfg.ProjectName, cfg.OtelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	logrus.AddHook(traces.NewLogrusHook(providers.LoggerProvider, cfg.ProjectName))
	return providers.Shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands returns the `start` command: the HTTP API with the monitor loop running beside it.
func serverCommands(app *quakevaultInstance) *cobra.Command {
	var withoutMonitor bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the quakevault server and monitor",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			shutdown, err := initializeObservability(ctx, app.cnf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			var monitor *quakevault.Monitor
			if !withoutMonitor {
				monitor = newMonitor(app)
				monitor.Start(ctx)
				defer monitor.Stop()
			}

			router, err := initializeRouter(app, monitor)
			if err != nil {
				log.Fatal(err)
			}

			if err := startServer(router, app.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}
	cmd.Flags().BoolVar(&withoutMonitor, "without-monitor", false, "serve the API without running the monitor loop")

	return cmd
}
