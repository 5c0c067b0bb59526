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
	"testing"

	"github.com/blnkfinance/quakevault/database/mocks"
	"github.com/blnkfinance/quakevault/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecordDisbursement(t *testing.T) {
	settler := &recordingSettler{}
	qv := newTestVault(t, &stubFeed{}, settler)
	ctx := context.Background()

	vault, err := qv.CreateVault(ctx, model.CreateVault{Threshold: dec("6"), MaxDonation: dec("100"), DepositAmount: dec("250"), Recipient: "0xabc"})
	require.NoError(t, err)

	ev := event("ev1", "6.5", "Test")
	d, err := qv.RecordDisbursement(ctx, ev)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.False(t, d.Duplicate)
	assert.Equal(t, vault.ID, d.VaultID)
	assert.Equal(t, "0xabc", d.Recipient)
	assert.Equal(t, ev.Fingerprint(), d.Fingerprint)
	assert.True(t, dec("100").Equal(d.Donation.Amount))
	assert.Equal(t, "Test", d.Donation.Location)

	require.Len(t, settler.got, 1)
	assert.Equal(t, d.Fingerprint, settler.got[0].Fingerprint)

	latest, err := qv.GetLatestVault(ctx)
	require.NoError(t, err)
	assert.True(t, dec("150").Equal(latest.Balance))
}

func TestRecordDisbursementDuplicate(t *testing.T) {
	settler := &recordingSettler{}
	qv := newTestVault(t, &stubFeed{}, settler)
	ctx := context.Background()

	_, err := qv.CreateVault(ctx, model.CreateVault{MaxDonation: dec("10"), DepositAmount: dec("100")})
	require.NoError(t, err)

	ev := event("ev1", "6.5", "Test")
	_, err = qv.RecordDisbursement(ctx, ev)
	require.NoError(t, err)

	d, err := qv.RecordDisbursement(ctx, ev)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.Duplicate)
	assert.Nil(t, d.Donation)
	assert.Len(t, settler.got, 1)
}

func TestRecordDisbursementNoVault(t *testing.T) {
	settler := &recordingSettler{}
	qv := newTestVault(t, &stubFeed{}, settler)

	d, err := qv.RecordDisbursement(context.Background(), event("ev1", "7", "Test"))
	assert.NoError(t, err)
	assert.Nil(t, d)
	assert.Empty(t, settler.got)
}

func TestRecordDisbursementUsesLatestVault(t *testing.T) {
	qv := newTestVault(t, &stubFeed{}, &recordingSettler{})
	ctx := context.Background()

	_, err := qv.CreateVault(ctx, model.CreateVault{MaxDonation: dec("10"), DepositAmount: dec("100")})
	require.NoError(t, err)
	second, err := qv.CreateVault(ctx, model.CreateVault{MaxDonation: dec("5"), DepositAmount: dec("20")})
	require.NoError(t, err)

	d, err := qv.RecordDisbursement(ctx, event("ev1", "7", "Test"))
	require.NoError(t, err)
	assert.Equal(t, second.ID, d.VaultID)
	assert.True(t, dec("5").Equal(d.Donation.Amount))
}

func TestRecordDisbursementSettlementFailureKeepsLedger(t *testing.T) {
	settler := &recordingSettler{err: errors.New("webhook down")}
	qv := newTestVault(t, &stubFeed{}, settler)
	ctx := context.Background()

	_, err := qv.CreateVault(ctx, model.CreateVault{MaxDonation: dec("10"), DepositAmount: dec("100")})
	require.NoError(t, err)

	d, err := qv.RecordDisbursement(ctx, event("ev1", "7", "Test"))
	require.NoError(t, err)
	require.NotNil(t, d.Donation)

	latest, err := qv.GetLatestVault(ctx)
	require.NoError(t, err)
	assert.Len(t, latest.Donations, 1)
	assert.True(t, dec("90").Equal(latest.Balance))
}

func TestRecordDisbursementStoreFailure(t *testing.T) {
	ds := &mocks.MockDataSource{}
	settler := &recordingSettler{}
	qv := NewQuakeVault(ds, &stubFeed{}, nil, settler)

	vault := &model.Vault{ID: 3, MaxDonation: dec("10"), Balance: dec("100")}
	ds.On("GetLatestVault", mock.Anything).Return(vault, nil)
	ds.On("AppendDonation", mock.Anything, int64(3), mock.MatchedBy(func(req model.DonationRequest) bool {
		return req.SourceID == "ev1" && req.Amount.Equal(dec("10")) && req.Location == "Test"
	})).Return(nil, model.Vault{}, model.ErrVaultNotFound)

	_, err := qv.RecordDisbursement(context.Background(), event("ev1", "7", "Test"))
	assert.ErrorIs(t, err, model.ErrVaultNotFound)
	assert.Empty(t, settler.got)
	ds.AssertExpectations(t)
}
