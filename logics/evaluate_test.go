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
	"sync/atomic"
	"testing"

	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

type constantEstimator float64

func (e constantEstimator) Estimate(_, _ string) float64 {
	return float64(e)
}

func TestEvaluate(t *testing.T) {
	test := []data.Interaction{
		{UserId: "u1", ItemId: "i1", Rating: 5},
		{UserId: "u1", ItemId: "i2", Rating: 8},
		{UserId: "u2", ItemId: "i1", Rating: 5},
		{UserId: "u2", ItemId: "i3", Rating: 2},
	}
	for _, jobs := range []int{1, 3} {
		var count atomic.Int32
		score, err := Evaluate(context.Background(), constantEstimator(5), test, jobs, func() {
			count.Add(1)
		})
		assert.NoError(t, err)
		assert.Equal(t, 4, score.Count)
		assert.InDelta(t, math.Sqrt(18.0/4), score.RMSE, 1e-12)
		assert.InDelta(t, 1.5, score.MAE, 1e-12)
		assert.Equal(t, int32(4), count.Load())
	}
}

func TestEvaluateHybrid(t *testing.T) {
	store := data.NewMemoryDatabase(scenarioInteractions, scenarioBooks)
	h := fitHybrid(t, &mockModel{ok: false}, DefaultWeights(), store)
	// cold start pairs score the global mean
	score, err := Evaluate(context.Background(), h, []data.Interaction{
		{UserId: "u9", ItemId: "i1", Rating: 23.0 / 3},
	}, 1, nil)
	assert.NoError(t, err)
	assert.Zero(t, score.RMSE)
	assert.Zero(t, score.MAE)
}

func TestEvaluateEmpty(t *testing.T) {
	_, err := Evaluate(context.Background(), constantEstimator(5), nil, 1, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}
