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

package mocks

import (
	"context"

	"github.com/blnkfinance/quakevault/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) CreateVault(ctx context.Context, params model.CreateVault) (model.Vault, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Vault), args.Error(1)
}

func (m *MockDataSource) GetAllVaults(ctx context.Context) ([]model.Vault, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Vault), args.Error(1)
}

func (m *MockDataSource) GetVaultByID(ctx context.Context, id int64) (*model.Vault, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Vault), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) GetLatestVault(ctx context.Context) (*model.Vault, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*model.Vault), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) AppendDonation(ctx context.Context, vaultID int64, req model.DonationRequest) (*model.Donation, model.Vault, error) {
	args := m.Called(ctx, vaultID, req)
	var donation *model.Donation
	if d := args.Get(0); d != nil {
		donation = d.(*model.Donation)
	}
	return donation, args.Get(1).(model.Vault), args.Error(2)
}

func (m *MockDataSource) ClearStore(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDataSource) Close() error {
	args := m.Called()
	return args.Error(0)
}
