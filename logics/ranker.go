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
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bookrec/common/heap"
	"github.com/gorse-io/bookrec/common/log"
	"github.com/gorse-io/bookrec/common/parallel"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// CandidateStrategy picks the items to score for a user. Items in exclude must
// not be returned.
type CandidateStrategy interface {
	Name() string
	Candidates(trainSet *dataset.Dataset, userId string, exclude mapset.Set[string]) []string
}

// AllCandidates returns every rated item.
type AllCandidates struct{}

func (AllCandidates) Name() string {
	return "all"
}

func (AllCandidates) Candidates(trainSet *dataset.Dataset, _ string, exclude mapset.Set[string]) []string {
	return lo.Filter(trainSet.ItemIds(), func(itemId string, _ int) bool {
		return !exclude.Contains(itemId)
	})
}

// LimitCandidates returns the first Limit unrated items in first-seen order.
type LimitCandidates struct {
	Limit int
}

func (LimitCandidates) Name() string {
	return "limit"
}

func (s LimitCandidates) Candidates(trainSet *dataset.Dataset, _ string, exclude mapset.Set[string]) []string {
	var candidates []string
	for _, itemId := range trainSet.ItemIds() {
		if len(candidates) >= s.Limit {
			break
		}
		if !exclude.Contains(itemId) {
			candidates = append(candidates, itemId)
		}
	}
	return candidates
}

// NeighborCandidates returns items rated by users who share at least
// MinCommonItems rated items with the user.
type NeighborCandidates struct {
	MinCommonItems int
}

func (NeighborCandidates) Name() string {
	return "neighbors"
}

func (s NeighborCandidates) Candidates(trainSet *dataset.Dataset, userId string, exclude mapset.Set[string]) []string {
	userIndex := trainSet.UserIndex(userId)
	if userIndex == dataset.NotId {
		return nil
	}
	rated := mapset.NewThreadUnsafeSet[int32]()
	for _, rating := range trainSet.UserRatings(userIndex) {
		rated.Add(rating.Index)
	}
	// count common items per neighbor
	common := make(map[int32]mapset.Set[int32])
	for itemIndex := range rated.Iter() {
		for _, rating := range trainSet.ItemRatings(itemIndex) {
			if rating.Index == userIndex {
				continue
			}
			if _, exist := common[rating.Index]; !exist {
				common[rating.Index] = mapset.NewThreadUnsafeSet[int32]()
			}
			common[rating.Index].Add(itemIndex)
		}
	}
	candidates := mapset.NewThreadUnsafeSet[string]()
	for neighbor, items := range common {
		if items.Cardinality() < s.MinCommonItems {
			continue
		}
		for _, rating := range trainSet.UserRatings(neighbor) {
			itemId := trainSet.ItemId(rating.Index)
			if !exclude.Contains(itemId) {
				candidates.Add(itemId)
			}
		}
	}
	return candidates.ToSlice()
}

// NewCandidateStrategy creates a strategy by name.
func NewCandidateStrategy(name string, limit, minCommonItems int) (CandidateStrategy, error) {
	switch name {
	case "", "all":
		return AllCandidates{}, nil
	case "limit":
		if limit <= 0 {
			return nil, errors.NotValidf("candidate limit %d", limit)
		}
		return LimitCandidates{Limit: limit}, nil
	case "neighbors":
		if minCommonItems <= 0 {
			return nil, errors.NotValidf("minimum common items %d", minCommonItems)
		}
		return NeighborCandidates{MinCommonItems: minCommonItems}, nil
	default:
		return nil, errors.NotSupportedf("candidate strategy %s", name)
	}
}

// Ranker recommends the top scored candidates of a trained model.
type Ranker struct {
	model    *Hybrid
	store    data.Database
	strategy CandidateStrategy
	jobs     int
}

func NewRanker(model *Hybrid, store data.Database, strategy CandidateStrategy, jobs int) *Ranker {
	if strategy == nil {
		strategy = AllCandidates{}
	}
	return &Ranker{model: model, store: store, strategy: strategy, jobs: jobs}
}

// Recommend returns at most n items the user has not rated, by descending score.
// Ties are ordered by item id.
func (r *Ranker) Recommend(ctx context.Context, userId string, n int) ([]Prediction, error) {
	if !r.model.IsTrained() {
		return nil, ErrNotInitialized
	}
	if n < 0 {
		return nil, errors.NotValidf("number of recommendations %d", n)
	}
	if n == 0 {
		return []Prediction{}, nil
	}
	start := time.Now()
	trainSet := r.model.TrainSet()
	// exclude rated items
	exclude := mapset.NewThreadUnsafeSet[string]()
	for _, rating := range trainSet.UserRatings(trainSet.UserIndex(userId)) {
		exclude.Add(trainSet.ItemId(rating.Index))
	}
	if r.store != nil {
		interactions, err := r.store.GetUserInteractions(ctx, userId)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, interaction := range interactions {
			exclude.Add(interaction.ItemId)
		}
	}
	// score candidates
	candidates := r.strategy.Candidates(trainSet, userId, exclude)
	scores := make([]float64, len(candidates))
	if err := parallel.For(ctx, len(candidates), r.jobs, func(i int) {
		scores[i] = r.model.Estimate(userId, candidates[i])
	}); err != nil {
		return nil, errors.Trace(err)
	}
	filter := heap.NewTopKFilter[string, float64](n)
	for i, itemId := range candidates {
		filter.Push(itemId, scores[i])
	}
	predictions := lo.Map(filter.PopAll(), func(elem heap.Elem[string, float64], _ int) Prediction {
		return Prediction{ItemId: elem.Value, Score: elem.Weight}
	})
	log.Logger().Debug("recommend",
		zap.String("user_id", userId),
		zap.String("strategy", r.strategy.Name()),
		zap.Int("n_candidates", len(candidates)),
		zap.Int("n_excluded", exclude.Cardinality()),
		zap.Duration("recommend_time", time.Since(start)))
	return predictions, nil
}
