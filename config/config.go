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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT     = "5001"
	DEFAULT_DATA_DIR = "./data"
	DEFAULT_FEED_URL = "https://earthquake.usgs.gov/fdsnws/event/1/query"

	DEFAULT_CLASSIFIER_URL   = "https://api.openai.com/v1/responses"
	DEFAULT_CLASSIFIER_MODEL = "gpt-4.1-mini"

	SettlementModeNone    = "none"
	SettlementModeWebhook = "webhook"
	SettlementModeQueue   = "queue"
	SettlementModeFlow    = "flow"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"QUAKEVAULT_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"QUAKEVAULT_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"QUAKEVAULT_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"QUAKEVAULT_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"QUAKEVAULT_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"QUAKEVAULT_SERVER_PORT"`
}

// DataSourceConfig selects the vault store. A postgres:// DSN selects the Postgres store,
// anything else is treated as a directory (optionally prefixed with file://) for the JSON store.
type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"QUAKEVAULT_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"QUAKEVAULT_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"QUAKEVAULT_REDIS_SKIP_TLS_VERIFY"`
}

type FeedConfig struct {
	Url           string  `json:"url" envconfig:"QUAKEVAULT_FEED_URL"`
	TimeoutSec    int     `json:"timeout_sec" envconfig:"QUAKEVAULT_FEED_TIMEOUT_SEC"`
	MinMagnitude  float64 `json:"min_magnitude" envconfig:"QUAKEVAULT_FEED_MIN_MAGNITUDE"`
	WindowMinutes int     `json:"window_minutes" envconfig:"QUAKEVAULT_FEED_WINDOW_MINUTES"`
}

type ClassifierConfig struct {
	ApiKey          string `json:"api_key" envconfig:"QUAKEVAULT_CLASSIFIER_API_KEY"`
	Url             string `json:"url" envconfig:"QUAKEVAULT_CLASSIFIER_URL"`
	Model           string `json:"model" envconfig:"QUAKEVAULT_CLASSIFIER_MODEL"`
	TimeoutSec      int    `json:"timeout_sec" envconfig:"QUAKEVAULT_CLASSIFIER_TIMEOUT_SEC"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes" envconfig:"QUAKEVAULT_CLASSIFIER_CACHE_TTL_MINUTES"`
}

type MonitorConfig struct {
	IntervalMinutes int     `json:"interval_minutes" envconfig:"QUAKEVAULT_MONITOR_INTERVAL_MINUTES"`
	ActionMagnitude float64 `json:"action_magnitude" envconfig:"QUAKEVAULT_MONITOR_ACTION_MAGNITUDE"`
	MaxWorkers      int     `json:"max_workers" envconfig:"QUAKEVAULT_MONITOR_MAX_WORKERS"`
	FetchRetries    int     `json:"fetch_retries" envconfig:"QUAKEVAULT_MONITOR_FETCH_RETRIES"`
	LockTTLMinutes  int     `json:"lock_ttl_minutes" envconfig:"QUAKEVAULT_MONITOR_LOCK_TTL_MINUTES"`
}

type WebhookSettlement struct {
	Url        string            `json:"url" envconfig:"QUAKEVAULT_SETTLEMENT_WEBHOOK_URL"`
	Headers    map[string]string `json:"headers"`
	TimeoutSec int               `json:"timeout_sec" envconfig:"QUAKEVAULT_SETTLEMENT_WEBHOOK_TIMEOUT_SEC"`
}

type FlowSettlement struct {
	Binary      string `json:"binary" envconfig:"QUAKEVAULT_FLOW_BINARY"`
	Network     string `json:"network" envconfig:"QUAKEVAULT_FLOW_NETWORK"`
	Signer      string `json:"signer" envconfig:"QUAKEVAULT_FLOW_ORACLE_SIGNER"`
	Transaction string `json:"transaction" envconfig:"QUAKEVAULT_FLOW_TRANSACTION"`
	WorkDir     string `json:"work_dir" envconfig:"QUAKEVAULT_FLOW_WORK_DIR"`
}

type SettlementConfig struct {
	Mode       string            `json:"mode" envconfig:"QUAKEVAULT_SETTLEMENT_MODE"`
	Queue      string            `json:"queue" envconfig:"QUAKEVAULT_SETTLEMENT_QUEUE"`
	MaxRetries int               `json:"max_retries" envconfig:"QUAKEVAULT_SETTLEMENT_MAX_RETRIES"`
	Webhook    WebhookSettlement `json:"webhook"`
	Flow       FlowSettlement    `json:"flow"`
	// MonitoringPort serves the queue dashboard next to the settlement workers.
	MonitoringPort string `json:"monitoring_port" envconfig:"QUAKEVAULT_SETTLEMENT_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"QUAKEVAULT_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"QUAKEVAULT_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"QUAKEVAULT_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"QUAKEVAULT_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type BackupConfig struct {
	S3Endpoint         string `json:"s3_endpoint" envconfig:"QUAKEVAULT_S3_ENDPOINT"`
	S3BucketName       string `json:"s3_bucket_name" envconfig:"QUAKEVAULT_S3_BUCKET_NAME"`
	S3Region           string `json:"s3_region" envconfig:"QUAKEVAULT_S3_REGION"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"QUAKEVAULT_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"QUAKEVAULT_AWS_SECRET_ACCESS_KEY"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"QUAKEVAULT_PROJECT_NAME"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Feed            FeedConfig       `json:"feed"`
	Classifier      ClassifierConfig `json:"classifier"`
	Monitor         MonitorConfig    `json:"monitor"`
	Settlement      SettlementConfig `json:"settlement"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Backup          BackupConfig     `json:"backup"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"QUAKEVAULT_ENABLE_TELEMETRY"`
	OtelEndpoint    string           `json:"otel_endpoint" envconfig:"QUAKEVAULT_OTEL_ENDPOINT"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("quakevault", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called quakevault.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "QuakeVault"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Settlement.Mode = strings.ToLower(strings.TrimSpace(cnf.Settlement.Mode))

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
	}

	if cnf.DataSource.Dns == "" {
		log.Printf("Warning: Data source not specified. Using file store in %s", DEFAULT_DATA_DIR)
		cnf.DataSource.Dns = DEFAULT_DATA_DIR
	}

	cnf.setFeedDefaults()
	cnf.setClassifierDefaults()
	cnf.setMonitorDefaults()

	if err := cnf.setSettlementDefaults(); err != nil {
		return err
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) setFeedDefaults() {
	if cnf.Feed.Url == "" {
		cnf.Feed.Url = DEFAULT_FEED_URL
	}
	if cnf.Feed.TimeoutSec <= 0 {
		cnf.Feed.TimeoutSec = 30
	}
	if cnf.Feed.MinMagnitude <= 0 {
		cnf.Feed.MinMagnitude = 5.0
	}
	if cnf.Feed.WindowMinutes <= 0 {
		cnf.Feed.WindowMinutes = 6 * 60
	}
}

func (cnf *Configuration) setClassifierDefaults() {
	// The classifier keeps honouring the conventional OpenAI variable.
	if cnf.Classifier.ApiKey == "" {
		cnf.Classifier.ApiKey = os.Getenv("OPENAI_API_KEY")
	}
	if cnf.Classifier.Url == "" {
		cnf.Classifier.Url = DEFAULT_CLASSIFIER_URL
	}
	if cnf.Classifier.Model == "" {
		cnf.Classifier.Model = DEFAULT_CLASSIFIER_MODEL
	}
	if cnf.Classifier.TimeoutSec <= 0 {
		cnf.Classifier.TimeoutSec = 30
	}
	if cnf.Classifier.CacheTTLMinutes <= 0 {
		cnf.Classifier.CacheTTLMinutes = 12 * 60
	}
}

func (cnf *Configuration) setMonitorDefaults() {
	if cnf.Monitor.IntervalMinutes <= 0 {
		cnf.Monitor.IntervalMinutes = 6 * 60
	}
	if cnf.Monitor.ActionMagnitude <= 0 {
		cnf.Monitor.ActionMagnitude = 6.0
	}
	if cnf.Monitor.MaxWorkers <= 0 {
		cnf.Monitor.MaxWorkers = 1
	}
	if cnf.Monitor.FetchRetries <= 0 {
		cnf.Monitor.FetchRetries = 3
	}
	if cnf.Monitor.LockTTLMinutes <= 0 {
		cnf.Monitor.LockTTLMinutes = 30
	}
}

func (cnf *Configuration) setSettlementDefaults() error {
	if cnf.Settlement.Mode == "" {
		cnf.Settlement.Mode = SettlementModeNone
	}
	if cnf.Settlement.Queue == "" {
		cnf.Settlement.Queue = "settlement"
	}
	if cnf.Settlement.MaxRetries <= 0 {
		cnf.Settlement.MaxRetries = 5
	}
	if cnf.Settlement.MonitoringPort == "" {
		cnf.Settlement.MonitoringPort = "5004"
	}
	if cnf.Settlement.Webhook.TimeoutSec <= 0 {
		cnf.Settlement.Webhook.TimeoutSec = 30
	}
	if cnf.Settlement.Flow.Binary == "" {
		cnf.Settlement.Flow.Binary = "flow"
	}
	if cnf.Settlement.Flow.Network == "" {
		cnf.Settlement.Flow.Network = "testnet"
	}
	if cnf.Settlement.Flow.Signer == "" {
		cnf.Settlement.Flow.Signer = "oracle-account"
	}
	if cnf.Settlement.Flow.Transaction == "" {
		cnf.Settlement.Flow.Transaction = "cadence/transactions/update_oracle.cdc"
	}

	switch cnf.Settlement.Mode {
	case SettlementModeNone, SettlementModeFlow:
	case SettlementModeWebhook:
		if cnf.Settlement.Webhook.Url == "" {
			return errors.New("settlement webhook url is required")
		}
	case SettlementModeQueue:
		if cnf.Settlement.Webhook.Url == "" {
			return errors.New("settlement webhook url is required")
		}
		if cnf.Redis.Dns == "" {
			return errors.New("redis DNS is required for queued settlement")
		}
	default:
		return errors.New("unknown settlement mode: " + cnf.Settlement.Mode)
	}
	return nil
}

// MonitorInterval is the period between two scheduled monitoring cycles.
func (cnf *Configuration) MonitorInterval() time.Duration {
	return time.Duration(cnf.Monitor.IntervalMinutes) * time.Minute
}

// FeedWindow is how far back each cycle looks for events.
func (cnf *Configuration) FeedWindow() time.Duration {
	return time.Duration(cnf.Feed.WindowMinutes) * time.Minute
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
