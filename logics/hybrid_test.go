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
	"testing"

	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model"
	"github.com/gorse-io/bookrec/model/cf"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

// mockModel returns a fixed prediction for every pair.
type mockModel struct {
	score  float32
	ok     bool
	err    error
	fitted bool
}

func (m *mockModel) Fit(_ context.Context, _ *dataset.Dataset) error {
	if m.err != nil {
		return m.err
	}
	m.fitted = true
	return nil
}

func (m *mockModel) Predict(_, _ string) (float32, bool) {
	return m.score, m.ok
}

var (
	scenarioInteractions = []data.Interaction{
		{UserId: "u1", ItemId: "i1", Rating: 8},
		{UserId: "u1", ItemId: "i2", Rating: 6},
		{UserId: "u2", ItemId: "i1", Rating: 9},
	}
	scenarioBooks = []data.Book{
		{ItemId: "i1", Author: lo.ToPtr("authorA"), Genre: lo.ToPtr("genreX")},
		{ItemId: "i2", Author: lo.ToPtr("authorA"), Genre: lo.ToPtr("genreY")},
	}
)

// fitHybrid fits a model on a memory store the same way the serving layer does.
func fitHybrid(t *testing.T, lf cf.LatentFactorModel, weights Weights, store data.Database) *Hybrid {
	ctx := context.Background()
	interactions, err := store.GetInteractions(ctx)
	assert.NoError(t, err)
	books, err := store.GetBooks(ctx)
	assert.NoError(t, err)
	averages, err := store.GetAverageRatings(ctx)
	assert.NoError(t, err)
	trainSet, err := dataset.Build(interactions)
	assert.NoError(t, err)
	h := NewHybrid(lf, weights)
	assert.NoError(t, h.Fit(ctx, trainSet, books, averages))
	return h
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{Alpha: 1}.Validate())
	// a sum other than 1 is allowed
	assert.NoError(t, Weights{Alpha: 1, Beta: 1, Gamma: 1}.Validate())
	err := Weights{Alpha: -0.1, Beta: 0.6, Gamma: 0.5}.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	// the first invalid weight is reported
	for i := 0; i < 20; i++ {
		err = Weights{Alpha: 0.5, Beta: math.NaN(), Gamma: -1}.Validate()
		assert.True(t, errors.Is(err, errors.NotValid))
		assert.Contains(t, err.Error(), "beta")
	}
}

func TestWeights_Normalized(t *testing.T) {
	assert.True(t, DefaultWeights().Normalized())
	assert.True(t, Weights{Alpha: 0.1, Beta: 0.2, Gamma: 0.7}.Normalized())
	assert.False(t, Weights{Alpha: 1, Beta: 1, Gamma: 1}.Normalized())
	assert.Equal(t, 3.0, Weights{Alpha: 1, Beta: 1, Gamma: 1}.Sum())
}

func TestHybrid_Scenario(t *testing.T) {
	store := data.NewMemoryDatabase(scenarioInteractions, scenarioBooks)
	h := fitHybrid(t, cf.NewSVD(model.Params{model.NEpochs: 20}), DefaultWeights(), store)
	assert.True(t, h.IsTrained())
	assert.Equal(t, 0.5, h.Similarity("i1", "i2"))
	assert.Equal(t, 23.0/3, h.GlobalMean())
	// unseen item
	assert.Equal(t, 23.0/3, h.Estimate("u1", "i3"))
	assert.InDelta(t, 7.67, h.Estimate("u1", "i3"), 0.01)
	// unseen user
	assert.Equal(t, 23.0/3, h.Estimate("u3", "i1"))
	est := h.Explain("u3", "i1")
	assert.True(t, est.ColdStart)
}

func TestHybrid_Blend(t *testing.T) {
	store := data.NewMemoryDatabase(scenarioInteractions, scenarioBooks)
	lf := &mockModel{score: 5, ok: true}
	h := fitHybrid(t, lf, DefaultWeights(), store)
	assert.True(t, lf.fitted)

	est := h.Explain("u1", "i1")
	assert.False(t, est.ColdStart)
	assert.False(t, est.CFFallback)
	assert.False(t, est.ContentFallback)
	assert.Equal(t, 5.0, est.CF)
	// (1*8 + 0.5*6) / 1.5
	assert.InDelta(t, 11.0/1.5, est.Content, 1e-12)
	assert.InDelta(t, 0.85, est.Popularity, 1e-12)
	assert.InDelta(t, 0.5*5+0.3*11.0/1.5+0.2*0.85, est.Score, 1e-12)
	assert.Equal(t, est.Score, h.Estimate("u1", "i1"))

	// u2 only rated i1, which shares the author with i2
	est = h.Explain("u2", "i2")
	assert.InDelta(t, 9.0, est.Content, 1e-12)
	assert.InDelta(t, 0.6, est.Popularity, 1e-12)
}

func TestHybrid_Fallbacks(t *testing.T) {
	// i3 has no metadata and i4 shares nothing with the books of u2
	store := data.NewMemoryDatabase(append([]data.Interaction{
		{UserId: "u3", ItemId: "i3", Rating: 2},
		{UserId: "u3", ItemId: "i4", Rating: 3},
	}, scenarioInteractions...), append([]data.Book{
		{ItemId: "i4", Author: lo.ToPtr("authorB"), Genre: lo.ToPtr("genreZ")},
	}, scenarioBooks...))
	h := fitHybrid(t, &mockModel{ok: false}, DefaultWeights(), store)
	globalMean := h.GlobalMean()
	assert.InDelta(t, 28.0/5, globalMean, 1e-12)

	est := h.Explain("u2", "i4")
	assert.True(t, est.CFFallback)
	assert.Equal(t, globalMean, est.CF)
	assert.True(t, est.ContentFallback)
	assert.Equal(t, globalMean, est.Content)
	assert.InDelta(t, 0.3, est.Popularity, 1e-12)

	est = h.Explain("u2", "i3")
	assert.True(t, est.ContentFallback)
	assert.Equal(t, globalMean, est.Content)
}

func TestHybrid_LatentFactorOnly(t *testing.T) {
	store := data.NewMemoryDatabase(scenarioInteractions, scenarioBooks)
	svd := cf.NewSVD(model.Params{model.NEpochs: 20})
	h := fitHybrid(t, svd, Weights{Alpha: 1}, store)
	for _, userId := range []string{"u1", "u2"} {
		for _, itemId := range []string{"i1", "i2"} {
			score, ok := svd.Predict(userId, itemId)
			assert.True(t, ok)
			assert.Equal(t, float64(score), h.Estimate(userId, itemId))
			assert.Equal(t, float64(score), h.LatentFactor().Estimate(userId, itemId))
		}
	}
	assert.Equal(t, h.GlobalMean(), h.LatentFactor().Estimate("u9", "i9"))
}

func TestHybrid_Deterministic(t *testing.T) {
	store := data.NewMemoryDatabase(scenarioInteractions, scenarioBooks)
	params := model.Params{model.NEpochs: 20, model.RandomState: 7}
	a := fitHybrid(t, cf.NewSVD(params), DefaultWeights(), store)
	b := fitHybrid(t, cf.NewSVD(params), DefaultWeights(), store)
	for _, userId := range []string{"u1", "u2", "u3"} {
		for _, itemId := range []string{"i1", "i2", "i3"} {
			assert.Equal(t, a.Explain(userId, itemId), a.Explain(userId, itemId))
			assert.Equal(t, a.Estimate(userId, itemId), b.Estimate(userId, itemId))
		}
	}
}

func TestHybrid_FitErrors(t *testing.T) {
	ctx := context.Background()
	// empty store
	empty, err := dataset.Build(nil)
	assert.NoError(t, err)
	h := NewHybrid(cf.NewSVD(nil), DefaultWeights())
	err = h.Fit(ctx, empty, nil, nil)
	assert.True(t, IsTrainingError(err))
	assert.False(t, h.IsTrained())
	err = h.Fit(ctx, nil, nil, nil)
	assert.True(t, IsTrainingError(err))
	assert.Equal(t, 0.0, h.Estimate("u1", "i1"))

	trainSet, err := dataset.Build(scenarioInteractions)
	assert.NoError(t, err)
	// latent factor model failure
	cause := errors.New("diverged")
	h = NewHybrid(&mockModel{err: cause}, DefaultWeights())
	err = h.Fit(ctx, trainSet, scenarioBooks, nil)
	assert.True(t, IsTrainingError(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, h.IsTrained())
	// invalid weights
	h = NewHybrid(&mockModel{}, Weights{Alpha: -1})
	err = h.Fit(ctx, trainSet, scenarioBooks, nil)
	assert.True(t, IsTrainingError(err))
	// no latent factor model
	err = NewHybrid(nil, DefaultWeights()).Fit(ctx, trainSet, scenarioBooks, nil)
	assert.True(t, IsTrainingError(err))

	// trained models are not refitted
	h = NewHybrid(&mockModel{}, DefaultWeights())
	assert.NoError(t, h.Fit(ctx, trainSet, scenarioBooks, nil))
	err = h.Fit(ctx, trainSet, scenarioBooks, nil)
	assert.True(t, errors.Is(err, errors.AlreadyExists))
	assert.False(t, IsTrainingError(err))
}

func TestTrainingError(t *testing.T) {
	err := errors.Trace(NewTrainingError(errors.NotValidf("rating")))
	assert.True(t, IsTrainingError(err))
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "training failed")
	assert.False(t, IsTrainingError(ErrNotInitialized))
	assert.False(t, IsTrainingError(nil))
}
