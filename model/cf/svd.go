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
	"time"

	"github.com/chewxy/math32"
	"github.com/gorse-io/bookrec/common/floats"
	"github.com/gorse-io/bookrec/common/log"
	"github.com/gorse-io/bookrec/common/util"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// SVD algorithm, as popularized by Simon Funk during the
// Netflix Prize. The prediction \hat{r}_{ui} is set as:
//
//	\hat{r}_{ui} = μ + b_u + b_i + q_i^Tp_u
//
// If user u is unknown, then the bias b_u and the factors p_u are
// assumed to be zero. The same applies for item i with b_i and q_i.
// Estimates are clipped to the rating scale of the training set.
type SVD struct {
	BaseMatrixFactorization
	UserBias   []float32 // b_u
	ItemBias   []float32 // b_i
	GlobalMean float32   // μ
	// Hyper parameters
	nFactors    int
	nEpochs     int
	lr          float32
	reg         float32
	initMean    float32
	initStdDev  float32
	randomState int64
	fitted      bool
}

// NewSVD creates a SVD model. Params:
//
//	NFactors    - The number of latent factors. Default is 50.
//	NEpochs     - The number of iteration of the SGD procedure. Default is 15.
//	Lr          - The learning rate of SGD. Default is 0.005.
//	Reg         - The regularization parameter of the cost function. Default is 0.02.
//	InitMean    - The mean of initial random latent factors. Default is 0.
//	InitStdDev  - The standard deviation of initial random latent factors. Default is 0.1.
//	RandomState - The seed of initial factors and SGD order. Default is 0.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

func (svd *SVD) SetParams(params model.Params) {
	svd.params = params
	svd.nFactors = params.GetInt(model.NFactors, 50)
	svd.nEpochs = params.GetInt(model.NEpochs, 15)
	svd.lr = params.GetFloat32(model.Lr, 0.005)
	svd.reg = params.GetFloat32(model.Reg, 0.02)
	svd.initMean = params.GetFloat32(model.InitMean, 0)
	svd.initStdDev = params.GetFloat32(model.InitStdDev, 0.1)
	svd.randomState = params.GetInt64(model.RandomState, 0)
}

// Fit trains the model by SGD over a shuffled permutation of all ratings in each epoch.
func (svd *SVD) Fit(ctx context.Context, trainSet *dataset.Dataset) error {
	if trainSet == nil || trainSet.CountRatings() == 0 {
		return errors.NotValidf("empty training set")
	}
	if svd.nFactors <= 0 {
		return errors.NotValidf("number of factors %d", svd.nFactors)
	}
	log.Logger().Info("fit svd",
		zap.Int("train_set_size", trainSet.CountRatings()),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Any("params", svd.GetParams()))
	svd.fitted = false
	svd.Init(trainSet)
	// Initialize parameters
	rng := util.NewRandomGenerator(svd.randomState)
	svd.GlobalMean = float32(trainSet.GlobalMean())
	svd.UserBias = make([]float32, trainSet.CountUsers())
	svd.ItemBias = make([]float32, trainSet.CountItems())
	svd.UserFactor = rng.NormalMatrix(trainSet.CountUsers(), svd.nFactors, svd.initMean, svd.initStdDev)
	svd.ItemFactor = rng.NormalMatrix(trainSet.CountItems(), svd.nFactors, svd.initMean, svd.initStdDev)
	// Flatten ratings
	userIndices := make([]int32, 0, trainSet.CountRatings())
	itemIndices := make([]int32, 0, trainSet.CountRatings())
	ratings := make([]float32, 0, trainSet.CountRatings())
	for userIndex := int32(0); int(userIndex) < trainSet.CountUsers(); userIndex++ {
		for _, rating := range trainSet.UserRatings(userIndex) {
			userIndices = append(userIndices, userIndex)
			itemIndices = append(itemIndices, rating.Index)
			ratings = append(ratings, float32(rating.Rating))
		}
	}
	// Create buffers
	userFactor := make([]float32, svd.nFactors)
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		fitStart := time.Now()
		var cost float32
		for _, i := range rng.Perm(len(ratings)) {
			userIndex, itemIndex := userIndices[i], itemIndices[i]
			// e_{ui} = r - \hat r
			diff := ratings[i] - svd.internalPredict(userIndex, itemIndex)
			cost += diff * diff
			// b_u <- b_u + \gamma (e_{ui} - \lambda b_u)
			svd.UserBias[userIndex] += svd.lr * (diff - svd.reg*svd.UserBias[userIndex])
			// b_i <- b_i + \gamma (e_{ui} - \lambda b_i)
			svd.ItemBias[itemIndex] += svd.lr * (diff - svd.reg*svd.ItemBias[itemIndex])
			// p_u <- p_u + \gamma (e_{ui} q_i - \lambda p_u)
			copy(userFactor, svd.UserFactor[userIndex])
			floats.MulConst(svd.UserFactor[userIndex], 1-svd.lr*svd.reg)
			floats.MulConstAdd(svd.ItemFactor[itemIndex], svd.lr*diff, svd.UserFactor[userIndex])
			// q_i <- q_i + \gamma (e_{ui} p_u - \lambda q_i)
			floats.MulConst(svd.ItemFactor[itemIndex], 1-svd.lr*svd.reg)
			floats.MulConstAdd(userFactor, svd.lr*diff, svd.ItemFactor[itemIndex])
		}
		log.Logger().Debug(fmt.Sprintf("fit svd %v/%v", epoch, svd.nEpochs),
			zap.String("fit_time", time.Since(fitStart).String()),
			zap.Float32("train_rmse", math32.Sqrt(cost/float32(len(ratings)))))
	}
	svd.fitted = true
	log.Logger().Info("fit svd complete")
	return nil
}

func (svd *SVD) internalPredict(userIndex, itemIndex int32) float32 {
	return svd.GlobalMean + svd.UserBias[userIndex] + svd.ItemBias[itemIndex] +
		floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex])
}

func (svd *SVD) Predict(userId, itemId string) (float32, bool) {
	if !svd.fitted {
		return 0, false
	}
	userIndex := svd.trainSet.UserIndex(userId)
	itemIndex := svd.trainSet.ItemIndex(itemId)
	userKnown := svd.IsUserPredictable(userIndex)
	itemKnown := svd.IsItemPredictable(itemIndex)
	var est float32
	switch {
	case userKnown && itemKnown:
		est = svd.internalPredict(userIndex, itemIndex)
	case userKnown:
		est = svd.GlobalMean + svd.UserBias[userIndex]
	case itemKnown:
		est = svd.GlobalMean + svd.ItemBias[itemIndex]
	default:
		return 0, false
	}
	scale := svd.trainSet.RatingScale()
	return float32(scale.Clip(float64(est))), true
}
