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

// Package severity decides whether an earthquake likely needs immediate
// humanitarian aid.
package severity

import (
	"context"
	"time"

	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/internal/cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Classifier returns true when an event of the given magnitude at place is severe.
// Implementations report backend failures as model.ErrClassifierUnavailable.
type Classifier interface {
	AssessSeverity(ctx context.Context, magnitude decimal.Decimal, place string) (bool, error)
}

// SevereMagnitude is the cut-off used by the rule classifier.
var SevereMagnitude = decimal.NewFromInt(6)

// RuleClassifier flags every event at or above a fixed magnitude. It never fails.
type RuleClassifier struct {
	threshold decimal.Decimal
}

func NewRuleClassifier(threshold decimal.Decimal) *RuleClassifier {
	return &RuleClassifier{threshold: threshold}
}

func (r *RuleClassifier) AssessSeverity(_ context.Context, magnitude decimal.Decimal, _ string) (bool, error) {
	return magnitude.GreaterThanOrEqual(r.threshold), nil
}

// New picks the classifier variant once at startup. A configured API key
// selects the language-model classifier, otherwise the magnitude rule applies.
// Model verdicts are cached in c when a cache TTL is configured.
func New(cnf *config.Configuration, c cache.Cache) Classifier {
	if cnf.Classifier.ApiKey == "" {
		logrus.WithField("threshold", SevereMagnitude.String()).Info("severity: using magnitude rule classifier")
		return NewRuleClassifier(SevereMagnitude)
	}

	logrus.WithField("model", cnf.Classifier.Model).Info("severity: using language model classifier")
	var classifier Classifier = NewModelClassifier(
		cnf.Classifier.ApiKey,
		cnf.Classifier.Url,
		cnf.Classifier.Model,
		time.Duration(cnf.Classifier.TimeoutSec)*time.Second,
	)

	if c != nil && cnf.Classifier.CacheTTLMinutes > 0 {
		classifier = NewCachedClassifier(classifier, c, time.Duration(cnf.Classifier.CacheTTLMinutes)*time.Minute)
	}
	return classifier
}
