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
	"embed"
	"time"

	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/database"
	"github.com/blnkfinance/quakevault/internal/cache"
	"github.com/blnkfinance/quakevault/internal/feed"
	"github.com/blnkfinance/quakevault/internal/settlement"
	"github.com/blnkfinance/quakevault/internal/severity"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var tracer = otel.Tracer("quakevault")

// QuakeVault ties the vault ledger to the event feed, the severity classifier
// and the settlement hook.
type QuakeVault struct {
	datasource database.IDataSource
	feed       feed.Fetcher
	classifier severity.Classifier
	settler    settlement.Settler
	now        func() time.Time
}

func NewQuakeVault(db database.IDataSource, fetcher feed.Fetcher, classifier severity.Classifier, settler settlement.Settler) *QuakeVault {
	if settler == nil {
		settler = settlement.Noop{}
	}
	return &QuakeVault{
		datasource: db,
		feed:       fetcher,
		classifier: classifier,
		settler:    settler,
		now:        time.Now,
	}
}

// NewFromConfig wires the collaborators described by the configuration around
// an open datasource. rdb may be nil, in which case classifier verdicts are
// cached in process memory only.
func NewFromConfig(cnf *config.Configuration, db database.IDataSource, rdb redis.UniversalClient) (*QuakeVault, error) {
	ttl := time.Duration(cnf.Classifier.CacheTTLMinutes) * time.Minute
	verdicts := cache.NewLocalCache(ttl)
	if rdb != nil {
		verdicts = cache.NewCache(rdb)
	}

	settler, err := settlement.New(cnf)
	if err != nil {
		return nil, err
	}

	fetcher := feed.NewClient(cnf.Feed.Url, time.Duration(cnf.Feed.TimeoutSec)*time.Second)
	return NewQuakeVault(db, fetcher, severity.New(cnf, verdicts), settler), nil
}

// DataSource exposes the underlying vault store.
func (q *QuakeVault) DataSource() database.IDataSource {
	return q.datasource
}

// Close releases the datasource and any settler that holds connections.
func (q *QuakeVault) Close() error {
	if closer, ok := q.settler.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	return q.datasource.Close()
}
