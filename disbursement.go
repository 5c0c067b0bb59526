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

package quakevault

import (
	"context"
	"errors"
	"fmt"

	"github.com/blnkfinance/quakevault/internal/notification"
	"github.com/blnkfinance/quakevault/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// RecordDisbursement pays out a severe event from the latest vault.
//
// It returns nil without error when no vault exists. A repeated event yields a
// disbursement marked Duplicate and leaves the vault untouched. New donations
// are handed to the settler; settlement failures are reported but never undo
// the ledger entry.
func (q *QuakeVault) RecordDisbursement(ctx context.Context, event model.SeismicEvent) (*model.Disbursement, error) {
	ctx, span := tracer.Start(ctx, "RecordDisbursement")
	defer span.End()

	fingerprint := event.Fingerprint()
	span.SetAttributes(attribute.String("event.id", event.ID), attribute.String("event.fingerprint", fingerprint))

	logger := logrus.WithFields(logrus.Fields{
		"source_id":   event.ID,
		"magnitude":   event.Magnitude.String(),
		"place":       event.Place,
		"fingerprint": fingerprint,
	})

	vault, err := q.datasource.GetLatestVault(ctx)
	if errors.Is(err, model.ErrNoActiveVault) {
		logger.Warn("no vaults available, waiting for a vault before executing donations")
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load latest vault: %w", err)
	}

	logger = logger.WithField("vault_id", vault.ID)
	logger.WithField("max_donation", vault.MaxDonation.StringFixed(2)).Info("executing donation")

	donation, updated, err := q.AppendDonation(ctx, vault.ID, model.DonationRequest{
		SourceID:  event.ID,
		Magnitude: event.Magnitude,
		Amount:    vault.MaxDonation,
		Location:  event.Place,
	})
	if err != nil {
		return nil, fmt.Errorf("append donation to vault %d: %w", vault.ID, err)
	}

	disbursement := &model.Disbursement{
		VaultID:     updated.ID,
		Recipient:   updated.Recipient,
		Donation:    donation,
		Event:       event,
		Fingerprint: fingerprint,
		Duplicate:   donation == nil,
		RecordedAt:  q.now().UTC(),
	}

	if donation == nil {
		logger.Info("event already recorded for this vault, skipping")
		return disbursement, nil
	}

	logger.WithFields(logrus.Fields{
		"amount":  donation.Amount.StringFixed(2),
		"balance": updated.Balance.StringFixed(2),
	}).Info("donation recorded")

	if err := q.settler.Settle(ctx, *disbursement); err != nil {
		span.RecordError(err)
		notification.NotifyError(fmt.Errorf("settlement of vault %d donation for %s failed: %w", updated.ID, event.ID, err))
	}
	return disbursement, nil
}
