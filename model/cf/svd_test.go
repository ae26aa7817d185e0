// Copyright 2020 gorse Project Authors
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

package cf

import (
	"context"
	"fmt"
	"testing"

	"github.com/chewxy/math32"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

// newBlockDataset returns ratings where readers of group g love books of group g.
func newBlockDataset(t *testing.T) *dataset.Dataset {
	var interactions []data.Interaction
	for u := 0; u < 20; u++ {
		for i := 0; i < 20; i++ {
			if (u+i)%3 == 0 {
				continue
			}
			rating := 2.0
			if u%2 == i%2 {
				rating = 9
			}
			interactions = append(interactions, data.Interaction{
				UserId: fmt.Sprintf("u%d", u),
				ItemId: fmt.Sprintf("i%d", i),
				Rating: rating,
			})
		}
	}
	d, err := dataset.Build(interactions)
	assert.NoError(t, err)
	return d
}

func rmse(svd *SVD, d *dataset.Dataset) float32 {
	var sum float32
	for u := int32(0); int(u) < d.CountUsers(); u++ {
		for _, r := range d.UserRatings(u) {
			est, _ := svd.Predict(d.UserId(u), d.ItemId(r.Index))
			sum += (est - float32(r.Rating)) * (est - float32(r.Rating))
		}
	}
	return math32.Sqrt(sum / float32(d.CountRatings()))
}

func TestSVD_NotFitted(t *testing.T) {
	svd := NewSVD(nil)
	_, ok := svd.Predict("u0", "i0")
	assert.False(t, ok)
}

func TestSVD_FitEmpty(t *testing.T) {
	svd := NewSVD(nil)
	err := svd.Fit(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.NotValid))
	d, err := dataset.Build(nil)
	assert.NoError(t, err)
	err = svd.Fit(context.Background(), d)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, ok := svd.Predict("u0", "i0")
	assert.False(t, ok)
}

func TestSVD_Fit(t *testing.T) {
	d := newBlockDataset(t)
	untrained := NewSVD(model.Params{model.NEpochs: 0})
	assert.NoError(t, untrained.Fit(context.Background(), d))
	svd := NewSVD(model.Params{
		model.NFactors: 10,
		model.NEpochs:  200,
		model.Lr:       0.01,
	})
	assert.NoError(t, svd.Fit(context.Background(), d))
	assert.Less(t, rmse(svd, d), rmse(untrained, d))
	assert.Less(t, rmse(svd, d), float32(2))
	// held out pairs follow the block structure
	high, ok := svd.Predict("u0", "i0")
	assert.True(t, ok)
	low, ok := svd.Predict("u0", "i1")
	assert.True(t, ok)
	assert.Greater(t, high, low)
}

func TestSVD_PredictRules(t *testing.T) {
	d := newBlockDataset(t)
	svd := NewSVD(model.Params{model.NEpochs: 5})
	assert.NoError(t, svd.Fit(context.Background(), d))
	u0, i1 := d.UserIndex("u0"), d.ItemIndex("i1")

	// only the user is known
	est, ok := svd.Predict("u0", "unknown")
	assert.True(t, ok)
	assert.InDelta(t, svd.GlobalMean+svd.UserBias[u0], est, 1e-6)
	// only the item is known
	est, ok = svd.Predict("unknown", "i1")
	assert.True(t, ok)
	assert.InDelta(t, svd.GlobalMean+svd.ItemBias[i1], est, 1e-6)
	// neither is known
	_, ok = svd.Predict("unknown", "unknown")
	assert.False(t, ok)

	// estimates are clipped to the rating scale
	svd.UserBias[u0] = 100
	est, ok = svd.Predict("u0", "i1")
	assert.True(t, ok)
	assert.Equal(t, float32(10), est)
	svd.UserBias[u0] = -100
	est, _ = svd.Predict("u0", "unknown")
	assert.Equal(t, float32(1), est)
}

func TestSVD_Deterministic(t *testing.T) {
	d := newBlockDataset(t)
	params := model.Params{model.NFactors: 8, model.NEpochs: 10, model.RandomState: int64(42)}
	a, b := NewSVD(params), NewSVD(params)
	assert.NoError(t, a.Fit(context.Background(), d))
	assert.NoError(t, b.Fit(context.Background(), d))
	assert.Equal(t, a.UserFactor, b.UserFactor)
	assert.Equal(t, a.ItemFactor, b.ItemFactor)
	assert.Equal(t, a.UserBias, b.UserBias)
	assert.Equal(t, a.ItemBias, b.ItemBias)
}

func TestSVD_FitCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svd := NewSVD(nil)
	err := svd.Fit(ctx, newBlockDataset(t))
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := svd.Predict("u0", "i0")
	assert.False(t, ok)
}

func TestSVD_Params(t *testing.T) {
	svd := NewSVD(nil)
	assert.Equal(t, 50, svd.nFactors)
	assert.Equal(t, 15, svd.nEpochs)
	assert.Equal(t, float32(0.005), svd.lr)
	assert.Equal(t, float32(0.02), svd.reg)
	assert.Equal(t, float32(0.1), svd.initStdDev)
	var _ LatentFactorModel = svd
}
