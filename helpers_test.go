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
	"sync"
	"testing"
	"time"

	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/database"
	"github.com/blnkfinance/quakevault/internal/severity"
	"github.com/blnkfinance/quakevault/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubFeed returns a scripted batch of events per call.
type stubFeed struct {
	mu      sync.Mutex
	batches [][]model.SeismicEvent
	errs    []error
	calls   int

	windowStart  time.Time
	minMagnitude decimal.Decimal
}

func (s *stubFeed) FetchRecentEvents(_ context.Context, windowStart time.Time, minMagnitude decimal.Decimal) ([]model.SeismicEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windowStart = windowStart
	s.minMagnitude = minMagnitude
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i], nil
}

func (s *stubFeed) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastQuery returns the arguments of the most recent fetch.
func (s *stubFeed) LastQuery() (time.Time, decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowStart, s.minMagnitude
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) AssessSeverity(ctx context.Context, magnitude decimal.Decimal, place string) (bool, error) {
	args := m.Called(ctx, magnitude, place)
	return args.Bool(0), args.Error(1)
}

type recordingSettler struct {
	mu  sync.Mutex
	got []model.Disbursement
	err error
}

func (r *recordingSettler) Settle(_ context.Context, d model.Disbursement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, d)
	return r.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func event(id, mag, place string) model.SeismicEvent {
	return model.SeismicEvent{ID: id, Magnitude: dec(mag), Place: place, Time: time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)}
}

func newTestStore(t *testing.T) database.IDataSource {
	fs, err := database.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return fs
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Feed:    config.FeedConfig{MinMagnitude: 5, WindowMinutes: 360},
		Monitor: config.MonitorConfig{IntervalMinutes: 360, ActionMagnitude: 6, MaxWorkers: 1, FetchRetries: 3},
	}
}

// newTestVault builds a QuakeVault on a temporary file store with the rule classifier.
func newTestVault(t *testing.T, feed *stubFeed, settler *recordingSettler) *QuakeVault {
	return NewQuakeVault(newTestStore(t), feed, severity.NewRuleClassifier(severity.SevereMagnitude), settler)
}

func newTestMonitor(qv *QuakeVault) *Monitor {
	m := NewMonitor(qv, testConfig())
	m.retryInterval = time.Millisecond
	return m
}
