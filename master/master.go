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
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bookrec/common/log"
	"github.com/gorse-io/bookrec/common/util"
	"github.com/gorse-io/bookrec/config"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/logics"
	"github.com/gorse-io/bookrec/model/cf"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	readersKey   = "readers"
	loadMaxTries = 3
)

// snapshot is the content of the rating store read by one fit.
type snapshot struct {
	interactions []data.Interaction
	books        []data.Book
	averages     map[string]float64
}

// Master owns the published model. Fits are serialized and a new model replaces
// the old one only after it is fully trained, so readers always see a complete model.
type Master struct {
	Config *config.Config

	store    data.Database
	strategy logics.CandidateStrategy
	weights  logics.Weights

	model    atomic.Pointer[logics.Hybrid]
	fitMutex sync.Mutex

	// known readers
	readers *ttlcache.Cache[string, mapset.Set[string]]

	retryInterval time.Duration
}

// NewMaster creates a master serving recommendations from store.
func NewMaster(cfg *config.Config, store data.Database) (*Master, error) {
	strategy, err := logics.NewCandidateStrategy(cfg.Recommend.CandidateStrategy,
		cfg.Recommend.CandidateLimit, cfg.Recommend.MinCommonItems)
	if err != nil {
		return nil, errors.Trace(err)
	}
	weights := logics.Weights{
		Alpha: cfg.Hybrid.Alpha,
		Beta:  cfg.Hybrid.Beta,
		Gamma: cfg.Hybrid.Gamma,
	}
	if err = weights.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if !weights.Normalized() {
		log.Logger().Warn("hybrid weights do not sum to 1, estimates leave the rating scale",
			zap.Float64("alpha", weights.Alpha),
			zap.Float64("beta", weights.Beta),
			zap.Float64("gamma", weights.Gamma),
			zap.Float64("sum", weights.Sum()))
	}
	return &Master{
		Config:        cfg,
		store:         store,
		strategy:      strategy,
		weights:       weights,
		readers:       ttlcache.New(ttlcache.WithTTL[string, mapset.Set[string]](cfg.Recommend.UserCacheTTL)),
		retryInterval: 500 * time.Millisecond,
	}, nil
}

// Initialize fits a new model from the current content of the store and publishes
// it. On failure the previous model stays in use and a *logics.TrainingError is returned.
func (m *Master) Initialize(ctx context.Context) error {
	m.fitMutex.Lock()
	defer m.fitMutex.Unlock()
	start := time.Now()
	model, err := m.fit(ctx)
	if err != nil {
		FitFailuresTotal.Inc()
		log.Logger().Error("failed to fit recommender", zap.Error(err))
		return err
	}
	m.model.Store(model)
	m.readers.DeleteAll()
	trainSet := model.TrainSet()
	FitSeconds.Set(time.Since(start).Seconds())
	TrainSetRatings.Set(float64(trainSet.CountRatings()))
	TrainSetUsers.Set(float64(trainSet.CountUsers()))
	TrainSetItems.Set(float64(trainSet.CountItems()))
	log.Logger().Info("recommender initialized",
		zap.Int("n_ratings", trainSet.CountRatings()),
		zap.Duration("fit_time", time.Since(start)))
	return nil
}

func (m *Master) fit(ctx context.Context) (*logics.Hybrid, error) {
	snap, err := backoff.Retry(ctx, func() (*snapshot, error) {
		snap, err := m.load(ctx)
		if err != nil {
			if errors.Is(err, errors.NotAssigned) || errors.Is(err, context.Canceled) {
				return nil, backoff.Permanent(err)
			}
			log.Logger().Warn("failed to load rating store", zap.Error(err))
			return nil, err
		}
		return snap, nil
	}, backoff.WithBackOff(m.newBackOff()), backoff.WithMaxTries(loadMaxTries))
	if err != nil {
		return nil, logics.NewTrainingError(errors.Trace(err))
	}
	trainSet, err := dataset.Build(snap.interactions)
	if err != nil {
		return nil, logics.NewTrainingError(errors.Trace(err))
	}
	model := logics.NewHybrid(cf.NewSVD(m.Config.SVD.GetParams()), m.weights)
	if err = model.Fit(ctx, trainSet, snap.books, snap.averages); err != nil {
		return nil, errors.Trace(err)
	}
	return model, nil
}

func (m *Master) load(ctx context.Context) (*snapshot, error) {
	var (
		snap snapshot
		err  error
	)
	if snap.interactions, err = m.store.GetInteractions(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	if snap.books, err = m.store.GetBooks(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	if snap.averages, err = m.store.GetAverageRatings(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	return &snap, nil
}

func (m *Master) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retryInterval
	return b
}

// Model returns the published model or nil.
func (m *Master) Model() *logics.Hybrid {
	return m.model.Load()
}

// Recommend returns the top n items for a user. Negative n means the default number.
func (m *Master) Recommend(ctx context.Context, userId string, n int) ([]logics.Prediction, error) {
	model := m.model.Load()
	if model == nil {
		return nil, logics.ErrNotInitialized
	}
	if n < 0 {
		n = m.Config.Recommend.DefaultN
	}
	start := time.Now()
	ranker := logics.NewRanker(model, m.store, m.strategy, m.Config.Recommend.Jobs)
	predictions, err := ranker.Recommend(ctx, userId, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	RecommendSeconds.Observe(time.Since(start).Seconds())
	return predictions, nil
}

// Estimate returns the blended rating of a pair of user and item.
func (m *Master) Estimate(ctx context.Context, userId, itemId string) (float64, error) {
	est, err := m.Explain(ctx, userId, itemId)
	if err != nil {
		return 0, err
	}
	return est.Score, nil
}

func (m *Master) Explain(_ context.Context, userId, itemId string) (logics.Estimate, error) {
	model := m.model.Load()
	if model == nil {
		return logics.Estimate{}, logics.ErrNotInitialized
	}
	est := model.Explain(userId, itemId)
	if est.ColdStart {
		ColdStartEstimatesTotal.Inc()
	} else if est.CFFallback {
		LatentFactorFallbacksTotal.Inc()
	}
	return est, nil
}

// UserExists checks a reader against the store. Readers are cached for
// recommend.user_cache_ttl and refreshed after every fit.
func (m *Master) UserExists(ctx context.Context, userId string) (bool, error) {
	if m.Config.Recommend.UserCacheTTL > 0 {
		if item := m.readers.Get(readersKey); item != nil {
			return item.Value().Contains(userId), nil
		}
	}
	readers, err := m.store.GetUserIds(ctx)
	if err != nil {
		return false, errors.Trace(err)
	}
	if m.Config.Recommend.UserCacheTTL > 0 {
		m.readers.Set(readersKey, readers, ttlcache.DefaultTTL)
	}
	return readers.Contains(userId), nil
}

// Serve refits the model every recommend.fit_period until ctx is done. A zero
// period disables refitting.
func (m *Master) Serve(ctx context.Context) {
	defer util.CheckPanic()
	go m.readers.Start()
	defer m.readers.Stop()
	if m.Config.Recommend.FitPeriod <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(m.Config.Recommend.FitPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Initialize(ctx); err != nil && ctx.Err() == nil {
				log.Logger().Warn("previous model stays in use", zap.Error(err))
			}
		}
	}
}

func (m *Master) Close() error {
	return m.store.Close()
}
