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

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model"
)

// LatentFactorModel predicts explicit ratings from a training set.
type LatentFactorModel interface {
	// Fit trains the model. Randomness is confined to Fit.
	Fit(ctx context.Context, trainSet *dataset.Dataset) error
	// Predict returns false if the model has no basis for an estimate: the model
	// is not fitted or neither the user nor the item was seen in training.
	Predict(userId, itemId string) (float32, bool)
}

type BaseMatrixFactorization struct {
	params          model.Params
	trainSet        *dataset.Dataset
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Model parameters
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
}

func (baseModel *BaseMatrixFactorization) GetParams() model.Params {
	return baseModel.params
}

func (baseModel *BaseMatrixFactorization) Init(trainSet *dataset.Dataset) {
	baseModel.trainSet = trainSet
	// set user trained flags
	baseModel.UserPredictable = bitset.New(uint(trainSet.CountUsers()))
	for userIndex := int32(0); int(userIndex) < trainSet.CountUsers(); userIndex++ {
		if len(trainSet.UserRatings(userIndex)) > 0 {
			baseModel.UserPredictable.Set(uint(userIndex))
		}
	}
	// set item trained flags
	baseModel.ItemPredictable = bitset.New(uint(trainSet.CountItems()))
	for itemIndex := int32(0); int(itemIndex) < trainSet.CountItems(); itemIndex++ {
		if len(trainSet.ItemRatings(itemIndex)) > 0 {
			baseModel.ItemPredictable.Set(uint(itemIndex))
		}
	}
}

// IsUserPredictable returns false if user has no feedback and its embedding vector never be trained.
func (baseModel *BaseMatrixFactorization) IsUserPredictable(userIndex int32) bool {
	if baseModel.trainSet == nil || userIndex < 0 || int(userIndex) >= baseModel.trainSet.CountUsers() {
		return false
	}
	return baseModel.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if item has no feedback and its embedding vector never be trained.
func (baseModel *BaseMatrixFactorization) IsItemPredictable(itemIndex int32) bool {
	if baseModel.trainSet == nil || itemIndex < 0 || int(itemIndex) >= baseModel.trainSet.CountItems() {
		return false
	}
	return baseModel.ItemPredictable.Test(uint(itemIndex))
}
