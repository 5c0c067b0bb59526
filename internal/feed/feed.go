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

// Package feed reads recent earthquakes from a USGS-style FDSN event service.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/blnkfinance/quakevault/internal/request"
	"github.com/blnkfinance/quakevault/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Fetcher is implemented by anything that can list recent seismic events.
type Fetcher interface {
	FetchRecentEvents(ctx context.Context, windowStart time.Time, minMagnitude decimal.Decimal) ([]model.SeismicEvent, error)
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag   *decimal.Decimal `json:"mag"`
		Place *string          `json:"place"`
		Time  int64            `json:"time"`
	} `json:"properties"`
}

// Client queries the event feed. It never retries; callers own the retry policy.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a feed client for the query endpoint at feedURL.
// Every request is bounded by timeout.
func NewClient(feedURL string, timeout time.Duration) *Client {
	return &Client{
		url:    feedURL,
		client: &http.Client{Timeout: timeout},
	}
}

// FetchRecentEvents returns events at or above minMagnitude since windowStart, oldest first.
// Transport failures, non-2XX answers and unreadable bodies are reported as model.ErrFeedUnavailable.
func (c *Client) FetchRecentEvents(ctx context.Context, windowStart time.Time, minMagnitude decimal.Decimal) ([]model.SeismicEvent, error) {
	endpoint, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid feed url: %v", model.ErrFeedUnavailable, err)
	}

	params := endpoint.Query()
	params.Set("format", "geojson")
	params.Set("starttime", windowStart.UTC().Format(time.RFC3339))
	params.Set("minmagnitude", minMagnitude.String())
	params.Set("orderby", "time")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	var collection featureCollection
	if _, err := request.CallWithClient(c.client, req, &collection); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFeedUnavailable, err)
	}

	events := make([]model.SeismicEvent, 0, len(collection.Features))
	for _, f := range collection.Features {
		if f.Properties.Mag == nil {
			logrus.WithField("event_id", f.ID).Debug("skipping feed event without magnitude")
			continue
		}
		place := model.UnknownLocation
		if f.Properties.Place != nil {
			place = *f.Properties.Place
		}
		events = append(events, model.SeismicEvent{
			ID:        f.ID,
			Magnitude: *f.Properties.Mag,
			Place:     place,
			Time:      time.UnixMilli(f.Properties.Time).UTC(),
		})
	}

	// The feed is asked for time order, but "time" there means newest first.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})

	return events, nil
}
