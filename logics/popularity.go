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

import "math"

// PopularityNormalizer maps average ratings on [1, 10] to roughly [0, 1].
const PopularityNormalizer = 10.0

// Popularity is the average rating of each book.
type Popularity struct {
	averages   map[string]float64
	globalMean float64
}

// NewPopularity skips averages that are not finite.
func NewPopularity(averages map[string]float64, globalMean float64) *Popularity {
	p := &Popularity{
		averages:   make(map[string]float64, len(averages)),
		globalMean: globalMean,
	}
	for itemId, average := range averages {
		if math.IsNaN(average) || math.IsInf(average, 0) {
			continue
		}
		p.averages[itemId] = average
	}
	return p
}

// Average returns the average rating of a book and whether the book has one.
// Books without an average get the global mean.
func (p *Popularity) Average(itemId string) (float64, bool) {
	if average, exist := p.averages[itemId]; exist {
		return average, true
	}
	return p.globalMean, false
}

// Score is the normalized popularity signal.
func (p *Popularity) Score(itemId string) float64 {
	average, _ := p.Average(itemId)
	return average / PopularityNormalizer
}

func (p *Popularity) Count() int {
	return len(p.averages)
}
