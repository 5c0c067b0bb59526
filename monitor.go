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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blnkfinance/quakevault/config"
	redlock "github.com/blnkfinance/quakevault/internal/lock"
	"github.com/blnkfinance/quakevault/internal/notification"
	"github.com/blnkfinance/quakevault/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// CycleReport summarises one monitoring cycle.
type CycleReport struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	WindowStart      time.Time `json:"window_start"`
	Fetched          int       `json:"fetched"`
	BelowThreshold   int       `json:"below_threshold"`
	NotSevere        int       `json:"not_severe"`
	ClassifierErrors int       `json:"classifier_errors"`
	Recorded         int       `json:"recorded"`
	Duplicates       int       `json:"duplicates"`
	NoVault          int       `json:"no_vault"`
	Failures         int       `json:"failures"`
	Skipped          bool      `json:"skipped"`
	Error            string    `json:"error,omitempty"`
}

// Monitor polls the feed on a fixed period and records disbursements for
// severe events. Cycles never overlap: a cycle requested while another one is
// running is rejected with model.ErrCycleInProgress.
type Monitor struct {
	qv               *QuakeVault
	interval         time.Duration
	window           time.Duration
	feedMinMagnitude decimal.Decimal
	actionMagnitude  decimal.Decimal
	maxWorkers       int
	fetchRetries     int
	retryInterval    time.Duration
	locker           *redlock.Locker
	lockTTL          time.Duration

	cycling atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
	last    *CycleReport
}

func NewMonitor(qv *QuakeVault, cnf *config.Configuration) *Monitor {
	return &Monitor{
		qv:               qv,
		interval:         cnf.MonitorInterval(),
		window:           cnf.FeedWindow(),
		feedMinMagnitude: decimal.NewFromFloat(cnf.Feed.MinMagnitude),
		actionMagnitude:  decimal.NewFromFloat(cnf.Monitor.ActionMagnitude),
		maxWorkers:       cnf.Monitor.MaxWorkers,
		fetchRetries:     cnf.Monitor.FetchRetries,
		retryInterval:    2 * time.Second,
		lockTTL:          time.Duration(cnf.Monitor.LockTTLMinutes) * time.Minute,
		stopCh:           make(chan struct{}),
	}
}

// WithLocker makes every cycle take a distributed lock first, so only one
// monitor per deployment runs a cycle at a time.
func (m *Monitor) WithLocker(l *redlock.Locker) *Monitor {
	m.locker = l
	return m
}

// Start runs one cycle immediately and then one per interval until Stop is
// called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()

	logrus.WithField("interval", m.interval.String()).Info("earthquake monitor started")
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	logrus.Info("earthquake monitor stopped")
}

// IsRunning reports whether the periodic loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// InCycle reports whether a cycle is executing right now.
func (m *Monitor) InCycle() bool {
	return m.cycling.Load()
}

// LastReport returns the report of the most recent finished cycle, if any.
func (m *Monitor) LastReport() *CycleReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	report := *m.last
	return &report
}

func (m *Monitor) run(ctx context.Context) {
	m.tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("earthquake monitor context cancelled")
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		case <-m.stopCh:
			logrus.Info("earthquake monitor stop signal received")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if _, err := m.RunOnce(ctx); err != nil {
		if errors.Is(err, model.ErrCycleInProgress) {
			logrus.Info("previous monitor cycle still running, skipping tick")
			return
		}
		logrus.WithError(err).Error("monitor cycle failed")
	}
}

// RunOnce executes a single cycle. A feed failure aborts the cycle and is
// returned; per-event failures are counted in the report and never abort it.
func (m *Monitor) RunOnce(ctx context.Context) (*CycleReport, error) {
	if !m.cycling.CompareAndSwap(false, true) {
		return nil, model.ErrCycleInProgress
	}
	defer m.cycling.Store(false)

	ctx, span := tracer.Start(ctx, "Monitor.RunOnce")
	defer span.End()

	now := m.qv.now()
	report := &CycleReport{
		ID:          model.GenerateUUIDWithSuffix("cycle"),
		StartedAt:   now.UTC(),
		WindowStart: now.Add(-m.window).UTC(),
	}
	defer m.finish(report)

	if m.locker != nil {
		if err := m.locker.Lock(ctx, m.lockTTL); err != nil {
			if errors.Is(err, redlock.ErrLockHeld) {
				logrus.WithField("key", m.locker.Key()).Info("another monitor instance holds the cycle lock, skipping")
				report.Skipped = true
				return report, nil
			}
			report.Error = err.Error()
			return report, fmt.Errorf("acquire cycle lock: %w", err)
		}
		defer func() {
			if err := m.locker.Unlock(context.Background()); err != nil {
				logrus.WithError(err).Warn("failed to release cycle lock")
			}
		}()
	}

	events, err := m.fetch(ctx, report.WindowStart)
	if err != nil {
		span.RecordError(err)
		report.Error = err.Error()
		notification.NotifyError(fmt.Errorf("monitor cycle %s aborted: %w", report.ID, err))
		return report, err
	}
	report.Fetched = len(events)
	span.SetAttributes(attribute.Int("events.fetched", len(events)))

	m.processEvents(ctx, events, report)

	logrus.WithFields(logrus.Fields{
		"cycle_id":          report.ID,
		"fetched":           report.Fetched,
		"below_threshold":   report.BelowThreshold,
		"not_severe":        report.NotSevere,
		"classifier_errors": report.ClassifierErrors,
		"recorded":          report.Recorded,
		"duplicates":        report.Duplicates,
		"failures":          report.Failures,
	}).Info("monitor cycle completed")
	return report, nil
}

func (m *Monitor) finish(report *CycleReport) {
	report.FinishedAt = m.qv.now().UTC()
	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
}

// fetch retries the feed with exponential backoff for a bounded number of attempts.
func (m *Monitor) fetch(ctx context.Context, windowStart time.Time) ([]model.SeismicEvent, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retryInterval
	policy.MaxElapsedTime = 0

	var events []model.SeismicEvent
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		events, err = m.qv.feed.FetchRecentEvents(ctx, windowStart, m.feedMinMagnitude)
		if err != nil {
			logrus.WithError(err).WithField("attempt", attempt).Warn("earthquake feed request failed")
		}
		return err
	}

	retries := m.fetchRetries - 1
	if retries < 0 {
		retries = 0
	}
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
	return events, err
}

type outcome int

const (
	outcomeBelowThreshold outcome = iota
	outcomeNotSevere
	outcomeClassifierError
	outcomeRecorded
	outcomeDuplicate
	outcomeNoVault
	outcomeFailure
	// severe events still have to be recorded; never counted
	outcomeSevere
)

func (r *CycleReport) count(o outcome) {
	switch o {
	case outcomeBelowThreshold:
		r.BelowThreshold++
	case outcomeNotSevere:
		r.NotSevere++
	case outcomeClassifierError:
		r.ClassifierErrors++
	case outcomeRecorded:
		r.Recorded++
	case outcomeDuplicate:
		r.Duplicates++
	case outcomeNoVault:
		r.NoVault++
	case outcomeFailure:
		r.Failures++
	}
}

// processEvents handles events in feed order. With more than one worker only
// classification is fanned out; disbursements are always recorded oldest
// first so the vault drains in feed order.
func (m *Monitor) processEvents(ctx context.Context, events []model.SeismicEvent, report *CycleReport) {
	if m.maxWorkers <= 1 {
		for _, event := range events {
			o := m.assess(ctx, event)
			if o == outcomeSevere {
				o = m.record(ctx, event)
			}
			report.count(o)
		}
		return
	}

	verdicts := make([]outcome, len(events))
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.maxWorkers)
	for i, event := range events {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, e model.SeismicEvent) {
			defer wg.Done()
			defer func() { <-sem }()
			verdicts[i] = m.assess(ctx, e)
		}(i, event)
	}
	wg.Wait()

	for i, event := range events {
		o := verdicts[i]
		if o == outcomeSevere {
			o = m.record(ctx, event)
		}
		report.count(o)
	}
}

func eventLogger(event model.SeismicEvent) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"source_id": event.ID,
		"magnitude": event.Magnitude.String(),
		"place":     event.Place,
	})
}

// assess returns outcomeSevere when the event qualifies for a donation.
func (m *Monitor) assess(ctx context.Context, event model.SeismicEvent) outcome {
	if event.Magnitude.LessThan(m.actionMagnitude) {
		return outcomeBelowThreshold
	}

	severe, err := m.qv.classifier.AssessSeverity(ctx, event.Magnitude, event.Place)
	if err != nil {
		eventLogger(event).WithError(err).Warn("severity classification failed, treating event as not severe")
		return outcomeClassifierError
	}
	if !severe {
		return outcomeNotSevere
	}
	return outcomeSevere
}

func (m *Monitor) record(ctx context.Context, event model.SeismicEvent) outcome {
	disbursement, err := m.qv.RecordDisbursement(ctx, event)
	if err != nil {
		eventLogger(event).WithError(err).Error("failed to record disbursement")
		return outcomeFailure
	}
	switch {
	case disbursement == nil:
		return outcomeNoVault
	case disbursement.Duplicate:
		return outcomeDuplicate
	default:
		return outcomeRecorded
	}
}
