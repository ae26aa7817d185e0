// Copyright 2021 gorse Project Authors
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

package master

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookrec",
		Subsystem: "master",
		Name:      "fit_seconds",
	})
	FitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookrec",
		Subsystem: "master",
		Name:      "fit_failures_total",
	})
	TrainSetRatings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookrec",
		Subsystem: "master",
		Name:      "train_set_ratings",
	})
	TrainSetUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookrec",
		Subsystem: "master",
		Name:      "train_set_users",
	})
	TrainSetItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookrec",
		Subsystem: "master",
		Name:      "train_set_items",
	})
	RecommendSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bookrec",
		Subsystem: "master",
		Name:      "recommend_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	ColdStartEstimatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookrec",
		Subsystem: "master",
		Name:      "cold_start_estimates_total",
	})
	LatentFactorFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookrec",
		Subsystem: "master",
		Name:      "latent_factor_fallbacks_total",
	})
)
