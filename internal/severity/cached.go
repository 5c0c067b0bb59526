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

package severity

import (
	"context"
	"fmt"
	"time"

	"github.com/blnkfinance/quakevault/internal/cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CachedClassifier remembers verdicts so re-polled events are not sent to
// the backend again. Failures are never cached.
type CachedClassifier struct {
	next  Classifier
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedClassifier(next Classifier, c cache.Cache, ttl time.Duration) *CachedClassifier {
	return &CachedClassifier{next: next, cache: c, ttl: ttl}
}

func cacheKey(magnitude decimal.Decimal, place string) string {
	return fmt.Sprintf("severity:%s:%s", magnitude.String(), place)
}

func (c *CachedClassifier) AssessSeverity(ctx context.Context, magnitude decimal.Decimal, place string) (bool, error) {
	key := cacheKey(magnitude, place)

	var severe bool
	hit, err := c.cache.Get(ctx, key, &severe)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("severity: cache read failed")
	}
	if hit {
		return severe, nil
	}

	severe, err = c.next.AssessSeverity(ctx, magnitude, place)
	if err != nil {
		return false, err
	}

	if err := c.cache.Set(ctx, key, severe, c.ttl); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("severity: cache write failed")
	}
	return severe, nil
}
