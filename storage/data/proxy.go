// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// ProxyDatabase forwards reads to a Database and records latency and failures.
type ProxyDatabase struct {
	Database
}

func NewProxyDatabase(database Database) *ProxyDatabase {
	return &ProxyDatabase{Database: database}
}

func observe(histogram prometheus.Histogram, operation string, start time.Time, err error) {
	histogram.Observe(time.Since(start).Seconds())
	if err != nil {
		ReadErrors.WithLabelValues(operation).Inc()
	}
}

func (p *ProxyDatabase) GetInteractions(ctx context.Context) ([]Interaction, error) {
	start := time.Now()
	interactions, err := p.Database.GetInteractions(ctx)
	observe(GetInteractionsSeconds, "get_interactions", start, err)
	return interactions, err
}

func (p *ProxyDatabase) GetUserInteractions(ctx context.Context, userId string) ([]Interaction, error) {
	start := time.Now()
	interactions, err := p.Database.GetUserInteractions(ctx, userId)
	observe(GetUserInteractionsSeconds, "get_user_interactions", start, err)
	return interactions, err
}

func (p *ProxyDatabase) GetBooks(ctx context.Context) ([]Book, error) {
	start := time.Now()
	books, err := p.Database.GetBooks(ctx)
	observe(GetBooksSeconds, "get_books", start, err)
	return books, err
}

func (p *ProxyDatabase) GetAverageRatings(ctx context.Context) (map[string]float64, error) {
	start := time.Now()
	averages, err := p.Database.GetAverageRatings(ctx)
	observe(GetAverageRatingsSeconds, "get_average_ratings", start, err)
	return averages, err
}

func (p *ProxyDatabase) GetUserIds(ctx context.Context) (mapset.Set[string], error) {
	start := time.Now()
	userIds, err := p.Database.GetUserIds(ctx)
	observe(GetUserIdsSeconds, "get_user_ids", start, err)
	return userIds, err
}
