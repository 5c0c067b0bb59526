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

package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis_db "github.com/blnkfinance/quakevault/internal/redis-db"
	"github.com/blnkfinance/quakevault/model"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// TaskSettleDonation is the asynq task type for queued settlements.
const TaskSettleDonation = "settlement:donation"

// RedisConnOpt converts a Redis DSN into asynq connection options.
func RedisConnOpt(dns string, skipTLSVerify bool) (asynq.RedisClientOpt, error) {
	opts, err := redis_db.ParseRedisURL(dns, skipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// QueueSettler enqueues disbursements so a worker can deliver them with retries.
// The fingerprint is the task id, so an event is enqueued at most once while
// its task is retained.
type QueueSettler struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

func NewQueueSettler(opt asynq.RedisConnOpt, queue string, maxRetry int) *QueueSettler {
	return &QueueSettler{client: asynq.NewClient(opt), queue: queue, maxRetry: maxRetry}
}

func (q *QueueSettler) Settle(ctx context.Context, d model.Disbursement) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskSettleDonation, payload,
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.maxRetry),
		asynq.TaskID(d.Fingerprint),
	)
	info, err := q.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logrus.WithField("fingerprint", d.Fingerprint).Info("settlement already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue settlement: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"task_id":  info.ID,
		"queue":    info.Queue,
		"vault_id": d.VaultID,
	}).Info("settlement queued")
	return nil
}

func (q *QueueSettler) Close() error {
	return q.client.Close()
}

// ProcessSettlementTask returns the worker handler that delivers queued
// disbursements through next. A returned error makes asynq retry the task.
func ProcessSettlementTask(next Settler) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var d model.Disbursement
		if err := json.Unmarshal(task.Payload(), &d); err != nil {
			logrus.WithError(err).Error("Error unmarshaling settlement task payload")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logrus.WithFields(logrus.Fields{
			"vault_id":    d.VaultID,
			"fingerprint": d.Fingerprint,
		}).Info("Processing settlement")
		return next.Settle(ctx, d)
	}
}
