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
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/internal/settlement"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func initializeWorkerServer(redisOpt asynq.RedisClientOpt, conf *config.Configuration) *asynq.Server {
	return asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{conf.Settlement.Queue: 1},
		},
	)
}

// initializeTaskHandlers routes queued settlements to the webhook the queue
// settler stands in front of.
func initializeTaskHandlers(conf *config.Configuration, mux *asynq.ServeMux) {
	webhook := settlement.NewWebhookSettler(
		conf.Settlement.Webhook.Url,
		conf.Settlement.Webhook.Headers,
		time.Duration(conf.Settlement.Webhook.TimeoutSec)*time.Second,
	)
	mux.HandleFunc(settlement.TaskSettleDonation, settlement.ProcessSettlementTask(webhook))
}

// workerCommands defines the "workers" command that drains the settlement queue.
func workerCommands(app *quakevaultInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start quakevault settlement workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			conf := app.cnf

			if conf.Redis.Dns == "" {
				return errors.New("redis DNS is required to run workers")
			}
			if conf.Settlement.Webhook.Url == "" {
				return errors.New("settlement webhook url is required to run workers")
			}

			shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			redisOpt, err := settlement.RedisConnOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			if err != nil {
				return fmt.Errorf("error parsing Redis URL: %v", err)
			}

			srv := initializeWorkerServer(redisOpt, conf)
			mux := asynq.NewServeMux()
			initializeTaskHandlers(conf, mux)

			h := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: redisOpt,
			})
			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Settlement.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				return fmt.Errorf("could not run server: %v", err)
			}
			return nil
		},
	}

	return cmd
}
