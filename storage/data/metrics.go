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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GetInteractionsSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bookrec",
		Subsystem: "database",
		Name:      "get_interactions_seconds",
	})
	GetUserInteractionsSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bookrec",
		Subsystem: "database",
		Name:      "get_user_interactions_seconds",
	})
	GetBooksSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bookrec",
		Subsystem: "database",
		Name:      "get_books_seconds",
	})
	GetAverageRatingsSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bookrec",
		Subsystem: "database",
		Name:      "get_average_ratings_seconds",
	})
	GetUserIdsSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bookrec",
		Subsystem: "database",
		Name:      "get_user_ids_seconds",
	})
	ReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookrec",
		Subsystem: "database",
		Name:      "read_errors_total",
	}, []string{"operation"})
)
