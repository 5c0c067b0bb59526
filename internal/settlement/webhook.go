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
	"fmt"
	"net/http"
	"time"

	"github.com/blnkfinance/quakevault/internal/request"
	"github.com/blnkfinance/quakevault/model"
	"github.com/sirupsen/logrus"
)

// WebhookSettler POSTs each disbursement to a URL. It makes a single attempt;
// retries belong to the queue in front of it.
type WebhookSettler struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func NewWebhookSettler(url string, headers map[string]string, timeout time.Duration) *WebhookSettler {
	return &WebhookSettler{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

func (w *WebhookSettler) Settle(ctx context.Context, d model.Disbursement) error {
	payload, err := request.ToJsonReq(Notification{Event: EventDonationRecorded, Data: d})
	if err != nil {
		return fmt.Errorf("failed to marshal settlement payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, payload)
	if err != nil {
		return fmt.Errorf("failed to create settlement request: %w", err)
	}
	for key, value := range w.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("X-Settlement-Event", EventDonationRecorded)
	req.Header.Set("X-Settlement-Fingerprint", d.Fingerprint)

	logger := logrus.WithFields(logrus.Fields{
		"vault_id":    d.VaultID,
		"source_id":   d.Event.ID,
		"fingerprint": d.Fingerprint,
		"url":         w.url,
	})
	logger.Info("Executing settlement webhook")

	resp, err := request.CallWithClient(w.client, req, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("settlement webhook failed: %w", err)
	}

	logger.WithField("status_code", resp.StatusCode).Info("Settlement webhook delivered")
	return nil
}
