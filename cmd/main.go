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
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/quakevault"
	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/database"
	"github.com/blnkfinance/quakevault/internal/notification"
	redis_db "github.com/blnkfinance/quakevault/internal/redis-db"
)

// QuakeVaultCLI represents the CLI application, encapsulating the root Cobra command.
type QuakeVaultCLI struct {
	cmd *cobra.Command
}

// quakevaultInstance holds the runtime pipeline and its configuration.
type quakevaultInstance struct {
	qv    *quakevault.QuakeVault
	cnf   *config.Configuration
	redis *redis_db.Redis
}

// redisClient returns the shared Redis client, or nil when none is configured.
func (q *quakevaultInstance) redisClient() redis.UniversalClient {
	if q.redis == nil {
		return nil
	}
	return q.redis.Client()
}

func (q *quakevaultInstance) close() {
	if q.qv != nil {
		if err := q.qv.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close datasource")
		}
	}
	if q.redis != nil {
		_ = q.redis.Close()
	}
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and opens the vault store before any command runs.
func preRun(app *quakevaultInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config ", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		if err := setupQuakeVault(app, cnf); err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.cnf = cnf
		return nil
	}
}

// setupQuakeVault connects the datasource and, when configured, Redis, then
// wires the pipeline around them.
func setupQuakeVault(app *quakevaultInstance, cfg *config.Configuration) error {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return fmt.Errorf("error getting datasource: %v", err)
	}

	if cfg.Redis.Dns != "" {
		rdb, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns}, cfg.Redis.SkipTLSVerify)
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable, continuing with in-process cache and no cycle lock")
		} else {
			app.redis = rdb
		}
	}

	qv, err := quakevault.NewFromConfig(cfg, db, app.redisClient())
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("error creating quakevault: %v", err)
	}
	app.qv = qv
	return nil
}

// NewCLI creates the command-line interface and registers every subcommand.
func NewCLI() *QuakeVaultCLI {
	var configFile string
	app := &quakevaultInstance{}

	var rootCmd = &cobra.Command{
		Use:   "quakevault",
		Short: "Earthquake-triggered donation vaults",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./quakevault.json", "Configuration file for quakevault")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		app.close()
	}

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(monitorCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(vaultCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(backupCommands(app))
	rootCmd.AddCommand(configCommands())

	return &QuakeVaultCLI{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w QuakeVaultCLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
