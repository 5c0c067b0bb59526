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

package settlement

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/model"
	"github.com/sirupsen/logrus"
)

// runner executes a command and returns its stdout and stderr.
type runner func(ctx context.Context, dir, name string, args ...string) (string, string, error)

func execRunner(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// FlowSettler publishes the event to the on-chain oracle with the Flow CLI.
type FlowSettler struct {
	cfg config.FlowSettlement
	run runner
}

func NewFlowSettler(cfg config.FlowSettlement) *FlowSettler {
	return &FlowSettler{cfg: cfg, run: execRunner}
}

// Args renders the CLI arguments for an oracle update.
func (f *FlowSettler) Args(d model.Disbursement) []string {
	place := strings.ReplaceAll(d.Event.Place, `\`, `\\`)
	place = strings.ReplaceAll(place, `"`, `\"`)

	return []string{
		"transactions", "send", f.cfg.Transaction,
		"--network", f.cfg.Network,
		"--signer", f.cfg.Signer,
		"--arg", "UFix64:" + d.Event.Magnitude.StringFixed(1),
		"--arg", `String:"` + place + `"`,
		"--arg", "String:" + d.Fingerprint,
	}
}

func (f *FlowSettler) Settle(ctx context.Context, d model.Disbursement) error {
	stdout, stderr, err := f.run(ctx, f.cfg.WorkDir, f.cfg.Binary, f.Args(d)...)
	logger := logrus.WithFields(logrus.Fields{
		"vault_id":    d.VaultID,
		"fingerprint": d.Fingerprint,
		"network":     f.cfg.Network,
	})
	if out := strings.TrimSpace(stdout); out != "" {
		logger.WithField("stdout", out).Info("Flow CLI output")
	}
	if out := strings.TrimSpace(stderr); out != "" {
		logger.WithField("stderr", out).Warn("Flow CLI stderr")
	}
	if err != nil {
		return fmt.Errorf("flow transaction failed: %w", err)
	}
	return nil
}
