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

package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/quakevault/config"
)

func TestParseVaultParams(t *testing.T) {
	params, err := parseVaultParams("6", "100", "250", "0xrelief", false)
	require.NoError(t, err)
	assert.True(t, params.Threshold.Equal(decimal.NewFromInt(6)))
	assert.True(t, params.MaxDonation.Equal(decimal.NewFromInt(100)))
	assert.True(t, params.DepositAmount.Equal(decimal.NewFromInt(250)))
	require.NotNil(t, params.Scheduled)
	assert.False(t, *params.Scheduled)

	tests := []struct {
		name                                     string
		threshold, maxDonation, deposit, address string
	}{
		{name: "missing recipient", threshold: "6", maxDonation: "1", deposit: "1"},
		{name: "bad deposit", threshold: "6", maxDonation: "1", deposit: "lots", address: "0x1"},
		{name: "missing cap", threshold: "6", deposit: "1", address: "0x1"},
		{name: "negative cap", threshold: "6", maxDonation: "-1", deposit: "1", address: "0x1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseVaultParams(tt.threshold, tt.maxDonation, tt.deposit, tt.address, true)
			assert.Error(t, err)
		})
	}
}

func TestRedactConfig(t *testing.T) {
	cfg := config.Configuration{
		Server:     config.ServerConfig{SecretKey: "s3cret"},
		Classifier: config.ClassifierConfig{ApiKey: "sk-test"},
	}
	redacted := redactConfig(cfg)
	assert.Equal(t, "********", redacted.Server.SecretKey)
	assert.Equal(t, "********", redacted.Classifier.ApiKey)
	assert.Empty(t, redacted.Backup.AwsSecretAccessKey)
	assert.Equal(t, "s3cret", cfg.Server.SecretKey)
}
