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

	"github.com/blnkfinance/quakevault/model"
)

// IDataSource is the vault ledger contract. Every mutation is an atomic
// read-modify-write against the backing store.
type IDataSource interface {
	vault
	// ClearStore wipes every vault. It exists for test isolation only.
	ClearStore(ctx context.Context) error
	Close() error
}

type vault interface {
	CreateVault(ctx context.Context, params model.CreateVault) (model.Vault, error)
	GetAllVaults(ctx context.Context) ([]model.Vault, error)
	GetVaultByID(ctx context.Context, id int64) (*model.Vault, error)
	GetLatestVault(ctx context.Context) (*model.Vault, error)
	// AppendDonation returns a nil donation, and the unchanged vault, when the
	// source id was already recorded for this vault.
	AppendDonation(ctx context.Context, vaultID int64, req model.DonationRequest) (*model.Donation, model.Vault, error)
}
