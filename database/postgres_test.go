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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/quakevault/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vaultColumns    = []string{"id", "balance", "threshold", "max_donation", "recipient", "scheduled", "created_at"}
	donationColumns = []string{"source_id", "magnitude", "amount", "location", "created_at"}
	createdAt       = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresCreateVault(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO quakevault.vaults`).
		WithArgs("100", "6", "10", "0xabc", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	v, err := store.CreateVault(context.Background(), model.CreateVault{
		Threshold:     d("6"),
		MaxDonation:   d("10"),
		DepositAmount: d("100"),
		Recipient:     "0xabc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.ID)
	assert.True(t, d("100").Equal(v.Balance))
	assert.Empty(t, v.Donations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateVaultFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO quakevault.vaults`).WillReturnError(errors.New("connection lost"))

	_, err := store.CreateVault(context.Background(), vaultParams("1", "1"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetLatestVault(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM quakevault.vaults\s+ORDER BY id DESC\s+LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(vaultColumns).AddRow(int64(2), "40", "6", "10", "0xabc", true, createdAt))
	mock.ExpectQuery(`FROM quakevault.donations\s+WHERE vault_id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(donationColumns).
			AddRow("ev-1", "6.4", "10", "Coast", createdAt).
			AddRow("ev-2", "7.1", "10", "Inland", createdAt.Add(time.Hour)))

	v, err := store.GetLatestVault(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.ID)
	require.Len(t, v.Donations, 2)
	assert.Equal(t, "ev-1", v.Donations[0].SourceID)
	assert.Equal(t, "ev-2", v.Donations[1].SourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetLatestVaultEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`ORDER BY id DESC`).WillReturnRows(sqlmock.NewRows(vaultColumns))

	_, err := store.GetLatestVault(context.Background())
	assert.ErrorIs(t, err, model.ErrNoActiveVault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetVaultByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE id = \$1`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	_, err := store.GetVaultByID(context.Background(), 9)
	assert.ErrorIs(t, err, model.ErrVaultNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAllVaults(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM quakevault.vaults\s+ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(vaultColumns).
			AddRow(int64(1), "0", "6", "50", "0x01", true, createdAt).
			AddRow(int64(2), "100", "6", "10", "0x02", false, createdAt))
	mock.ExpectQuery(`FROM quakevault.donations\s+ORDER BY vault_id, id`).
		WillReturnRows(sqlmock.NewRows(append([]string{"vault_id"}, donationColumns...)).
			AddRow(int64(1), "ev-1", "6.8", "50", "Coast", createdAt))

	vaults, err := store.GetAllVaults(context.Background())
	require.NoError(t, err)
	require.Len(t, vaults, 2)
	assert.Len(t, vaults[0].Donations, 1)
	assert.Empty(t, vaults[1].Donations)
	assert.False(t, vaults[1].Scheduled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectLockedVault(mock sqlmock.Sqlmock, balance string, donations *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM quakevault.vaults\s+WHERE id = \$1\s+FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(vaultColumns).AddRow(int64(1), balance, "6", "10", "0xabc", true, createdAt))
	mock.ExpectQuery(`FROM quakevault.donations\s+WHERE vault_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(donations)
}

func TestPostgresAppendDonation(t *testing.T) {
	store, mock := newMockStore(t)

	expectLockedVault(mock, "100", sqlmock.NewRows(donationColumns))
	mock.ExpectExec(`INSERT INTO quakevault.donations`).
		WithArgs(int64(1), "ev-1", "6.5", "10", "Coast", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE quakevault.vaults SET balance = \$1 WHERE id = \$2`).
		WithArgs("90", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	donation, vault, err := store.AppendDonation(context.Background(), 1, model.DonationRequest{
		SourceID:  "ev-1",
		Magnitude: d("6.5"),
		Amount:    d("10"),
		Location:  "Coast",
	})
	require.NoError(t, err)
	require.NotNil(t, donation)
	assert.True(t, d("10").Equal(donation.Amount))
	assert.True(t, d("90").Equal(vault.Balance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendDonationCapsAtBalance(t *testing.T) {
	store, mock := newMockStore(t)

	expectLockedVault(mock, "4.5", sqlmock.NewRows(donationColumns))
	mock.ExpectExec(`INSERT INTO quakevault.donations`).
		WithArgs(int64(1), "ev-1", "6.5", "4.5", "Coast", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE quakevault.vaults`).
		WithArgs("0", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	donation, vault, err := store.AppendDonation(context.Background(), 1, model.DonationRequest{
		SourceID: "ev-1", Magnitude: d("6.5"), Amount: d("10"), Location: "Coast",
	})
	require.NoError(t, err)
	assert.True(t, d("4.5").Equal(donation.Amount))
	assert.True(t, vault.Balance.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendDonationDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	expectLockedVault(mock, "90", sqlmock.NewRows(donationColumns).AddRow("ev-1", "6.5", "10", "Coast", createdAt))
	mock.ExpectRollback()

	donation, vault, err := store.AppendDonation(context.Background(), 1, model.DonationRequest{
		SourceID: "ev-1", Magnitude: d("6.5"), Amount: d("10"), Location: "Coast",
	})
	require.NoError(t, err)
	assert.Nil(t, donation)
	assert.True(t, d("90").Equal(vault.Balance))
	assert.Len(t, vault.Donations, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendDonationUnknownVault(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows(vaultColumns))
	mock.ExpectRollback()

	_, _, err := store.AppendDonation(context.Background(), 1, donation("ev-1", "1"))
	assert.ErrorIs(t, err, model.ErrVaultNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendDonationUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	expectLockedVault(mock, "100", sqlmock.NewRows(donationColumns))
	mock.ExpectExec(`INSERT INTO quakevault.donations`).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, _, err := store.AppendDonation(context.Background(), 1, model.DonationRequest{
		SourceID: "ev-1", Magnitude: d("6.5"), Amount: d("10"), Location: "Coast",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFLICT")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClearStore(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`TRUNCATE quakevault.donations, quakevault.vaults RESTART IDENTITY`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.ClearStore(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
