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

package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
	"github.com/wacul/ptr"

	"github.com/blnkfinance/quakevault/model"
)

// CreateVault is the body of POST /vaults.
type CreateVault struct {
	Threshold     *decimal.Decimal `json:"threshold"`
	MaxDonation   *decimal.Decimal `json:"maxDonation"`
	DepositAmount *decimal.Decimal `json:"depositAmount"`
	Recipient     string           `json:"recipient"`
	Scheduled     *bool            `json:"scheduled,omitempty"`
}

var nonNegative = validation.By(func(value interface{}) error {
	var d decimal.Decimal
	switch v := value.(type) {
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		d = *v
	case decimal.Decimal:
		d = v
	default:
		return errors.New("must be a decimal")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
})

func (v *CreateVault) ValidateCreateVault() error {
	return validation.ValidateStruct(v,
		validation.Field(&v.Threshold, validation.NotNil, nonNegative),
		validation.Field(&v.MaxDonation, validation.NotNil, nonNegative),
		validation.Field(&v.DepositAmount, validation.NotNil),
		validation.Field(&v.Recipient, validation.Required),
	)
}

// ToCreateVault converts a validated request. Vaults are scheduled unless the caller opts out.
func (v *CreateVault) ToCreateVault() model.CreateVault {
	scheduled := v.Scheduled
	if scheduled == nil {
		scheduled = ptr.Bool(true)
	}
	return model.CreateVault{
		Threshold:     *v.Threshold,
		MaxDonation:   *v.MaxDonation,
		DepositAmount: *v.DepositAmount,
		Recipient:     v.Recipient,
		Scheduled:     scheduled,
	}
}
