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

	"github.com/gorse-io/bookrec/common/parallel"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Score of an estimator on held out interactions.
type Score struct {
	RMSE  float64
	MAE   float64
	Count int
}

// Evaluate computes RMSE and MAE of an estimator. progress, if not nil, is called
// once per interaction from worker goroutines.
func Evaluate(ctx context.Context, estimator Estimator, test []data.Interaction, jobs int, progress func()) (Score, error) {
	if len(test) == 0 {
		return Score{}, errors.NotValidf("empty test set")
	}
	diffs := make([]float64, len(test))
	if err := parallel.ForEach(ctx, test, jobs, func(i int, interaction data.Interaction) {
		diffs[i] = estimator.Estimate(interaction.UserId, interaction.ItemId) - interaction.Rating
		if progress != nil {
			progress()
		}
	}); err != nil {
		return Score{}, errors.Trace(err)
	}
	n := float64(len(diffs))
	return Score{
		RMSE:  math.Sqrt(lo.SumBy(diffs, func(d float64) float64 { return d * d }) / n),
		MAE:   lo.SumBy(diffs, math.Abs) / n,
		Count: len(diffs),
	}, nil
}
