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
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/quakevault/model"
)

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// parseVaultParams turns command line values into vault creation parameters.
func parseVaultParams(threshold, maxDonation, deposit, recipient string, scheduled bool) (model.CreateVault, error) {
	var params model.CreateVault
	if recipient == "" {
		return params, fmt.Errorf("recipient is required")
	}

	values := map[string]*decimal.Decimal{
		"threshold":    &params.Threshold,
		"max-donation": &params.MaxDonation,
		"deposit":      &params.DepositAmount,
	}
	raw := map[string]string{
		"threshold":    threshold,
		"max-donation": maxDonation,
		"deposit":      deposit,
	}
	for name, target := range values {
		d, err := decimal.NewFromString(raw[name])
		if err != nil {
			return params, fmt.Errorf("invalid %s %q: %w", name, raw[name], err)
		}
		*target = d
	}
	if params.Threshold.IsNegative() || params.MaxDonation.IsNegative() {
		return params, fmt.Errorf("threshold and max-donation must not be negative")
	}

	params.Recipient = recipient
	params.Scheduled = &scheduled
	return params, nil
}

func vaultCommands(app *quakevaultInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "manage donation vaults",
	}

	cmd.AddCommand(vaultCreateCommand(app))
	cmd.AddCommand(vaultListCommand(app))
	cmd.AddCommand(vaultLatestCommand(app))

	return cmd
}

func vaultCreateCommand(app *quakevaultInstance) *cobra.Command {
	var (
		threshold   string
		maxDonation string
		deposit     string
		recipient   string
		scheduled   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "open a new vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseVaultParams(threshold, maxDonation, deposit, recipient, scheduled)
			if err != nil {
				return err
			}
			vault, err := app.qv.CreateVault(context.Background(), params)
			if err != nil {
				return err
			}
			return printJSON(vault)
		},
	}
	cmd.Flags().StringVar(&threshold, "threshold", "6", "minimum magnitude that qualifies")
	cmd.Flags().StringVar(&maxDonation, "max-donation", "", "per-event donation cap")
	cmd.Flags().StringVar(&deposit, "deposit", "", "initial deposit")
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient address")
	cmd.Flags().BoolVar(&scheduled, "scheduled", true, "enable automated monitoring for the vault")

	return cmd
}

func vaultListCommand(app *quakevaultInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list every vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			vaults, err := app.qv.ListVaults(context.Background())
			if err != nil {
				return err
			}
			return printJSON(vaults)
		},
	}
}

func vaultLatestCommand(app *quakevaultInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "show the active vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := app.qv.GetLatestVault(context.Background())
			if err != nil {
				return err
			}
			return printJSON(vault)
		},
	}
}
