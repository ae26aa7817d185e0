// Copyright 2024 gorse Project Authors
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

package logics

import (
	"context"
	"math"
	"time"

	"github.com/gorse-io/bookrec/common/log"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model/cf"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const weightSumEpsilon = 1e-9

// Weights of the collaborative filtering, content and popularity signals. They
// should sum to 1, otherwise estimates leave the rating scale.
type Weights struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

func DefaultWeights() Weights {
	return Weights{Alpha: 0.5, Beta: 0.3, Gamma: 0.2}
}

// Validate rejects negative or non-finite weights, reporting the first of alpha,
// beta and gamma that is invalid. A sum other than 1 is allowed.
func (w Weights) Validate() error {
	for _, weight := range []struct {
		name  string
		value float64
	}{
		{"alpha", w.Alpha},
		{"beta", w.Beta},
		{"gamma", w.Gamma},
	} {
		if math.IsNaN(weight.value) || math.IsInf(weight.value, 0) || weight.value < 0 {
			return errors.NotValidf("weight %s = %v", weight.name, weight.value)
		}
	}
	return nil
}

// Sum of the weights.
func (w Weights) Sum() float64 {
	return w.Alpha + w.Beta + w.Gamma
}

// Normalized returns true if the weights sum to 1, so estimates stay on the rating scale.
func (w Weights) Normalized() bool {
	return math.Abs(w.Sum()-1) <= weightSumEpsilon
}

// Prediction is a scored candidate.
type Prediction struct {
	ItemId string
	Score  float64
}

// Estimate breaks an estimate down into its signals.
type Estimate struct {
	UserId string
	ItemId string
	// CF is the latent factor estimate, or the global mean if the model has none.
	CF float64
	// Content is the similarity weighted mean of the user's ratings, or the global mean.
	Content float64
	// Popularity is the normalized average rating of the item.
	Popularity float64
	Score      float64
	// ColdStart is set when the user or the item is unknown. Score is the global mean.
	ColdStart       bool
	CFFallback      bool
	ContentFallback bool
}

// Estimator scores a pair of user and item.
type Estimator interface {
	Estimate(userId, itemId string) float64
}

// Hybrid blends a latent factor model, content similarity and popularity. It is
// trained by exactly one Fit and read-only afterwards, so a trained Hybrid is safe
// for concurrent use.
type Hybrid struct {
	weights    Weights
	lf         cf.LatentFactorModel
	trainSet   *dataset.Dataset
	globalMean float64
	content    *ContentSimilarity
	popularity *Popularity
	trained    bool
}

func NewHybrid(lf cf.LatentFactorModel, weights Weights) *Hybrid {
	return &Hybrid{lf: lf, weights: weights}
}

// Fit trains the latent factor model and builds the content and popularity
// signals. Failures are returned as *TrainingError and leave the model untrained.
func (h *Hybrid) Fit(ctx context.Context, trainSet *dataset.Dataset, books []data.Book, averages map[string]float64) error {
	if h.trained {
		return errors.AlreadyExistsf("trained hybrid model")
	}
	if h.lf == nil {
		return NewTrainingError(errors.NotAssignedf("latent factor model"))
	}
	if err := h.weights.Validate(); err != nil {
		return NewTrainingError(err)
	}
	if trainSet == nil || trainSet.CountRatings() == 0 {
		return NewTrainingError(errors.NotValidf("empty training set"))
	}
	start := time.Now()
	if err := h.lf.Fit(ctx, trainSet); err != nil {
		return NewTrainingError(errors.Trace(err))
	}
	globalMean := trainSet.GlobalMean()
	content := NewContentSimilarity(books)
	popularity := NewPopularity(averages, globalMean)
	h.trainSet = trainSet
	h.globalMean = globalMean
	h.content = content
	h.popularity = popularity
	h.trained = true
	log.Logger().Info("fit hybrid model complete",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_ratings", trainSet.CountRatings()),
		zap.Int("n_books", content.Count()),
		zap.Float64("global_mean", globalMean),
		zap.Duration("fit_time", time.Since(start)))
	return nil
}

func (h *Hybrid) IsTrained() bool {
	return h != nil && h.trained
}

func (h *Hybrid) TrainSet() *dataset.Dataset {
	return h.trainSet
}

func (h *Hybrid) GlobalMean() float64 {
	return h.globalMean
}

func (h *Hybrid) Weights() Weights {
	return h.weights
}

func (h *Hybrid) Similarity(a, b string) float64 {
	if !h.trained {
		return 0
	}
	return h.content.Similarity(a, b)
}

// Estimate returns the blended rating. Unknown users and items get the global mean.
// An untrained model returns 0.
func (h *Hybrid) Estimate(userId, itemId string) float64 {
	return h.Explain(userId, itemId).Score
}

func (h *Hybrid) Explain(userId, itemId string) Estimate {
	est := Estimate{UserId: userId, ItemId: itemId}
	if !h.trained {
		return est
	}
	userIndex := h.trainSet.UserIndex(userId)
	itemIndex := h.trainSet.ItemIndex(itemId)
	if userIndex == dataset.NotId || itemIndex == dataset.NotId {
		est.ColdStart = true
		est.CF, est.Content = h.globalMean, h.globalMean
		est.Popularity = h.globalMean / PopularityNormalizer
		est.Score = h.globalMean
		return est
	}
	// collaborative filtering
	if score, ok := h.lf.Predict(userId, itemId); ok {
		est.CF = float64(score)
	} else {
		est.CF = h.globalMean
		est.CFFallback = true
	}
	// content similarity
	var weighted, weightSum float64
	for _, rating := range h.trainSet.UserRatings(userIndex) {
		similarity := h.content.Similarity(itemId, h.trainSet.ItemId(rating.Index))
		weighted += similarity * rating.Rating
		weightSum += similarity
	}
	if weightSum > 0 {
		est.Content = weighted / weightSum
	} else {
		est.Content = h.globalMean
		est.ContentFallback = true
	}
	// popularity
	est.Popularity = h.popularity.Score(itemId)
	est.Score = h.weights.Alpha*est.CF + h.weights.Beta*est.Content + h.weights.Gamma*est.Popularity
	return est
}

// LatentFactor exposes the raw latent factor estimates with the global mean as fallback.
func (h *Hybrid) LatentFactor() Estimator {
	return &latentFactorEstimator{model: h.lf, fallback: h.globalMean}
}

type latentFactorEstimator struct {
	model    cf.LatentFactorModel
	fallback float64
}

func (e *latentFactorEstimator) Estimate(userId, itemId string) float64 {
	if score, ok := e.model.Predict(userId, itemId); ok {
		return float64(score)
	}
	return e.fallback
}
