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

// Package settlement hands recorded donations to the downstream mechanism
// that pays them out. Settlement is best effort: the vault ledger stays the
// source of truth and a failed settlement can be replayed from it.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/model"
	"github.com/sirupsen/logrus"
)

// EventDonationRecorded is the event name carried by every settlement notification.
const EventDonationRecorded = "donation.recorded"

// Settler submits a recorded disbursement downstream.
type Settler interface {
	Settle(ctx context.Context, d model.Disbursement) error
}

// Notification is the JSON body posted to webhook targets.
type Notification struct {
	Event string             `json:"event"`
	Data  model.Disbursement `json:"data"`
}

// Noop only logs the disbursement. It is used when no settlement mode is configured.
type Noop struct{}

func (Noop) Settle(_ context.Context, d model.Disbursement) error {
	logrus.WithFields(logrus.Fields{
		"vault_id":    d.VaultID,
		"source_id":   d.Event.ID,
		"fingerprint": d.Fingerprint,
	}).Info("settlement disabled, donation kept in ledger only")
	return nil
}

// New builds the settler for the configured mode.
func New(cnf *config.Configuration) (Settler, error) {
	s := cnf.Settlement
	switch s.Mode {
	case config.SettlementModeNone, "":
		return Noop{}, nil
	case config.SettlementModeWebhook:
		return NewWebhookSettler(s.Webhook.Url, s.Webhook.Headers, time.Duration(s.Webhook.TimeoutSec)*time.Second), nil
	case config.SettlementModeQueue:
		opt, err := RedisConnOpt(cnf.Redis.Dns, cnf.Redis.SkipTLSVerify)
		if err != nil {
			return nil, err
		}
		return NewQueueSettler(opt, s.Queue, s.MaxRetries), nil
	case config.SettlementModeFlow:
		return NewFlowSettler(s.Flow), nil
	default:
		return nil, fmt.Errorf("unknown settlement mode: %s", s.Mode)
	}
}
