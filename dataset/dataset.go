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

package dataset

import (
	"math"
	"slices"

	"github.com/gorse-io/bookrec/common/util"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
)

// Ratings live on the scale [RatingLow, RatingHigh].
const (
	RatingLow  = 1.0
	RatingHigh = 10.0
)

type RatingScale struct {
	Low  float64
	High float64
}

// Clip x into the scale.
func (s RatingScale) Clip(x float64) float64 {
	return math.Max(s.Low, math.Min(s.High, x))
}

// Rating is a rating indexed by the dense id of the other side.
type Rating struct {
	Index  int32
	Rating float64
}

// Dataset is the training set projection of the rating store. It is immutable
// after Build.
type Dataset struct {
	userDict    *FreqDict
	itemDict    *FreqDict
	userRatings [][]Rating
	itemRatings [][]Rating
	count       int
	sum         float64
}

// Build indexes interactions. Users and items get dense ids in first-seen order.
// Empty ids and ratings that are NaN or off the scale are rejected.
func Build(interactions []data.Interaction) (*Dataset, error) {
	d := &Dataset{
		userDict: NewFreqDict(),
		itemDict: NewFreqDict(),
	}
	for i, interaction := range interactions {
		if interaction.UserId == "" {
			return nil, errors.NotValidf("interaction %d: empty reader id", i)
		}
		if interaction.ItemId == "" {
			return nil, errors.NotValidf("interaction %d: empty book id", i)
		}
		if math.IsNaN(interaction.Rating) || interaction.Rating < RatingLow || interaction.Rating > RatingHigh {
			return nil, errors.NotValidf("interaction %d: rating %v", i, interaction.Rating)
		}
		userIndex := d.userDict.Id(interaction.UserId)
		itemIndex := d.itemDict.Id(interaction.ItemId)
		if int(userIndex) == len(d.userRatings) {
			d.userRatings = append(d.userRatings, nil)
		}
		if int(itemIndex) == len(d.itemRatings) {
			d.itemRatings = append(d.itemRatings, nil)
		}
		d.userRatings[userIndex] = append(d.userRatings[userIndex], Rating{Index: itemIndex, Rating: interaction.Rating})
		d.itemRatings[itemIndex] = append(d.itemRatings[itemIndex], Rating{Index: userIndex, Rating: interaction.Rating})
		d.count++
		d.sum += interaction.Rating
	}
	return d, nil
}

func (d *Dataset) CountUsers() int {
	return d.userDict.Count()
}

func (d *Dataset) CountItems() int {
	return d.itemDict.Count()
}

func (d *Dataset) CountRatings() int {
	return d.count
}

// GlobalMean is the mean of all ratings, zero for an empty set.
func (d *Dataset) GlobalMean() float64 {
	if d.count == 0 {
		return 0
	}
	return d.sum / float64(d.count)
}

func (d *Dataset) RatingScale() RatingScale {
	return RatingScale{Low: RatingLow, High: RatingHigh}
}

// UserIndex returns the dense id of a user or NotId.
func (d *Dataset) UserIndex(userId string) int32 {
	return d.userDict.Lookup(userId)
}

// ItemIndex returns the dense id of an item or NotId.
func (d *Dataset) ItemIndex(itemId string) int32 {
	return d.itemDict.Lookup(itemId)
}

func (d *Dataset) UserId(index int32) string {
	s, _ := d.userDict.String(index)
	return s
}

func (d *Dataset) ItemId(index int32) string {
	s, _ := d.itemDict.String(index)
	return s
}

// ItemIds returns items in first-seen order.
func (d *Dataset) ItemIds() []string {
	return slices.Clone(d.itemDict.ToList())
}

func (d *Dataset) UserRatings(index int32) []Rating {
	if index < 0 || int(index) >= len(d.userRatings) {
		return nil
	}
	return d.userRatings[index]
}

func (d *Dataset) ItemRatings(index int32) []Rating {
	if index < 0 || int(index) >= len(d.itemRatings) {
		return nil
	}
	return d.itemRatings[index]
}

// Split holds out about testRatio of interactions, chosen by a generator seeded
// with seed. Both parts keep the input order.
func Split(interactions []data.Interaction, testRatio float64, seed int64) ([]data.Interaction, []data.Interaction, error) {
	if math.IsNaN(testRatio) || testRatio < 0 || testRatio >= 1 {
		return nil, nil, errors.NotValidf("test ratio %v", testRatio)
	}
	numTest := int(math.Round(testRatio * float64(len(interactions))))
	held := make([]bool, len(interactions))
	rng := util.NewRandomGenerator(seed)
	for _, i := range rng.Perm(len(interactions))[:numTest] {
		held[i] = true
	}
	train := make([]data.Interaction, 0, len(interactions)-numTest)
	test := make([]data.Interaction, 0, numTest)
	for i, interaction := range interactions {
		if held[i] {
			test = append(test, interaction)
		} else {
			train = append(train, interaction)
		}
	}
	return train, test, nil
}
