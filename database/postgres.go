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

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/blnkfinance/quakevault/internal/apierror"
	"github.com/blnkfinance/quakevault/model"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresStore keeps vaults and donations in the quakevault schema. Appends
// lock the vault row so concurrent callers cannot overdraw it.
type PostgresStore struct {
	Conn *sql.DB
	now  func() time.Time
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{Conn: conn, now: time.Now}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (p *PostgresStore) CreateVault(ctx context.Context, params model.CreateVault) (model.Vault, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.CreateVault")
	defer span.End()

	vault := model.NewVault(0, params, p.now())
	err := p.Conn.QueryRowContext(ctx, `
		INSERT INTO quakevault.vaults (balance, threshold, max_donation, recipient, scheduled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, vault.Balance, vault.Threshold, vault.MaxDonation, vault.Recipient, vault.Scheduled, vault.CreatedAt).Scan(&vault.ID)
	if err != nil {
		span.RecordError(err)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "check_violation" {
			return model.Vault{}, apierror.NewAPIError(apierror.ErrInvalidInput, "Vault violates a balance constraint", err)
		}
		return model.Vault{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create vault", err)
	}
	return vault, nil
}

func (p *PostgresStore) GetAllVaults(ctx context.Context) ([]model.Vault, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.GetAllVaults")
	defer span.End()

	rows, err := p.Conn.QueryContext(ctx, `
		SELECT id, balance, threshold, max_donation, recipient, scheduled, created_at
		FROM quakevault.vaults
		ORDER BY id
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve vaults", err)
	}
	defer rows.Close()

	vaults := []model.Vault{}
	index := map[int64]int{}
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan vault data", err)
		}
		index[v.ID] = len(vaults)
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over vaults", err)
	}

	donations, err := p.Conn.QueryContext(ctx, `
		SELECT vault_id, source_id, magnitude, amount, location, created_at
		FROM quakevault.donations
		ORDER BY vault_id, id
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve donations", err)
	}
	defer donations.Close()

	for donations.Next() {
		var (
			vaultID int64
			d       model.Donation
		)
		if err := donations.Scan(&vaultID, &d.SourceID, &d.Magnitude, &d.Amount, &d.Location, &d.Timestamp); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan donation data", err)
		}
		if i, ok := index[vaultID]; ok {
			vaults[i].Donations = append(vaults[i].Donations, d)
		}
	}
	if err := donations.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over donations", err)
	}
	return vaults, nil
}

func (p *PostgresStore) GetVaultByID(ctx context.Context, id int64) (*model.Vault, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.GetVaultByID")
	defer span.End()

	row := p.Conn.QueryRowContext(ctx, `
		SELECT id, balance, threshold, max_donation, recipient, scheduled, created_at
		FROM quakevault.vaults
		WHERE id = $1
	`, id)
	return p.loadVault(ctx, p.Conn, row, func() error { return vaultNotFound(id) })
}

func (p *PostgresStore) GetLatestVault(ctx context.Context) (*model.Vault, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.GetLatestVault")
	defer span.End()

	row := p.Conn.QueryRowContext(ctx, `
		SELECT id, balance, threshold, max_donation, recipient, scheduled, created_at
		FROM quakevault.vaults
		ORDER BY id DESC
		LIMIT 1
	`)
	return p.loadVault(ctx, p.Conn, row, noActiveVault)
}

func (p *PostgresStore) AppendDonation(ctx context.Context, vaultID int64, req model.DonationRequest) (*model.Donation, model.Vault, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.AppendDonation")
	defer span.End()

	tx, err := p.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.Vault{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT id, balance, threshold, max_donation, recipient, scheduled, created_at
		FROM quakevault.vaults
		WHERE id = $1
		FOR UPDATE
	`, vaultID)
	vault, err := p.loadVault(ctx, tx, row, func() error { return vaultNotFound(vaultID) })
	if err != nil {
		span.RecordError(err)
		return nil, model.Vault{}, err
	}

	donation := vault.ApplyDonation(req, p.now())
	if donation == nil {
		return nil, *vault, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quakevault.donations (vault_id, source_id, magnitude, amount, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, vaultID, donation.SourceID, donation.Magnitude, donation.Amount, donation.Location, donation.Timestamp)
	if err != nil {
		span.RecordError(err)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, model.Vault{}, apierror.NewAPIError(apierror.ErrConflict, "Donation already recorded for this event", err)
		}
		return nil, model.Vault{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record donation", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE quakevault.vaults SET balance = $1 WHERE id = $2`, vault.Balance, vaultID)
	if err != nil {
		span.RecordError(err)
		return nil, model.Vault{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update vault balance", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, model.Vault{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit donation", err)
	}
	return donation, *vault, nil
}

func (p *PostgresStore) ClearStore(ctx context.Context) error {
	_, err := p.Conn.ExecContext(ctx, `TRUNCATE quakevault.donations, quakevault.vaults RESTART IDENTITY`)
	return errors.Wrap(err, "clear vault store")
}

func (p *PostgresStore) Close() error {
	return p.Conn.Close()
}

// loadVault scans a vault row and attaches its donations in insertion order.
func (p *PostgresStore) loadVault(ctx context.Context, q queryer, row *sql.Row, missing func() error) (*model.Vault, error) {
	v, err := scanVault(row)
	if err == sql.ErrNoRows {
		return nil, missing()
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve vault", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT source_id, magnitude, amount, location, created_at
		FROM quakevault.donations
		WHERE vault_id = $1
		ORDER BY id
	`, v.ID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve donations", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.Donation
		if err := rows.Scan(&d.SourceID, &d.Magnitude, &d.Amount, &d.Location, &d.Timestamp); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan donation data", err)
		}
		v.Donations = append(v.Donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over donations", err)
	}
	return &v, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVault(s scanner) (model.Vault, error) {
	v := model.Vault{Donations: []model.Donation{}}
	err := s.Scan(&v.ID, &v.Balance, &v.Threshold, &v.MaxDonation, &v.Recipient, &v.Scheduled, &v.CreatedAt)
	if err != nil {
		return model.Vault{}, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}
