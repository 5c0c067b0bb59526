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

	"github.com/blnkfinance/quakevault/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreateVault opens a vault. Negative deposits open an empty vault and
// scheduled defaults to true.
func (q *QuakeVault) CreateVault(ctx context.Context, params model.CreateVault) (model.Vault, error) {
	ctx, span := tracer.Start(ctx, "CreateVault")
	defer span.End()

	vault, err := q.datasource.CreateVault(ctx, params)
	if err != nil {
		span.RecordError(err)
		return model.Vault{}, err
	}

	span.SetAttributes(attribute.Int64("vault.id", vault.ID))
	logrus.WithFields(logrus.Fields{
		"vault_id":     vault.ID,
		"balance":      vault.Balance.String(),
		"max_donation": vault.MaxDonation.String(),
		"recipient":    vault.Recipient,
	}).Info("vault created")
	return vault, nil
}

// ListVaults returns copies of every vault in creation order.
func (q *QuakeVault) ListVaults(ctx context.Context) ([]model.Vault, error) {
	ctx, span := tracer.Start(ctx, "ListVaults")
	defer span.End()

	return q.datasource.GetAllVaults(ctx)
}

func (q *QuakeVault) GetVault(ctx context.Context, id int64) (*model.Vault, error) {
	ctx, span := tracer.Start(ctx, "GetVault", trace.WithAttributes(attribute.Int64("vault.id", id)))
	defer span.End()

	return q.datasource.GetVaultByID(ctx, id)
}

// GetLatestVault returns the most recently created vault, or model.ErrNoActiveVault.
func (q *QuakeVault) GetLatestVault(ctx context.Context) (*model.Vault, error) {
	ctx, span := tracer.Start(ctx, "GetLatestVault")
	defer span.End()

	return q.datasource.GetLatestVault(ctx)
}

// AppendDonation records a donation against a vault. The donation is nil when
// the source id was already recorded for that vault.
func (q *QuakeVault) AppendDonation(ctx context.Context, vaultID int64, req model.DonationRequest) (*model.Donation, model.Vault, error) {
	ctx, span := tracer.Start(ctx, "AppendDonation")
	defer span.End()
	span.SetAttributes(attribute.Int64("vault.id", vaultID), attribute.String("donation.source_id", req.SourceID))

	donation, vault, err := q.datasource.AppendDonation(ctx, vaultID, req)
	if err != nil {
		span.RecordError(err)
		return nil, model.Vault{}, err
	}
	return donation, vault, nil
}
