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

package data

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
)

// MemoryDatabase serves a fixed snapshot of interactions and books. It backs hold
// out evaluation, where the model must only see the training part of the store.
type MemoryDatabase struct {
	interactions []Interaction
	books        []Book
	users        map[string][]Interaction
	readers      mapset.Set[string]
}

func NewMemoryDatabase(interactions []Interaction, books []Book) *MemoryDatabase {
	return &MemoryDatabase{
		interactions: interactions,
		books:        books,
		users: lo.GroupBy(interactions, func(interaction Interaction) string {
			return interaction.UserId
		}),
		readers: mapset.NewSet(lo.Map(interactions, func(interaction Interaction, _ int) string {
			return interaction.UserId
		})...),
	}
}

// WithReaders registers readers that may have no interactions.
func (m *MemoryDatabase) WithReaders(userIds ...string) *MemoryDatabase {
	m.readers.Append(userIds...)
	return m
}

func (m *MemoryDatabase) Ping() error {
	return nil
}

func (m *MemoryDatabase) Close() error {
	return nil
}

func (m *MemoryDatabase) GetInteractions(_ context.Context) ([]Interaction, error) {
	return append([]Interaction{}, m.interactions...), nil
}

func (m *MemoryDatabase) GetUserInteractions(_ context.Context, userId string) ([]Interaction, error) {
	return append([]Interaction{}, m.users[userId]...), nil
}

func (m *MemoryDatabase) GetBooks(_ context.Context) ([]Book, error) {
	return append([]Book{}, m.books...), nil
}

func (m *MemoryDatabase) GetAverageRatings(_ context.Context) (map[string]float64, error) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, interaction := range m.interactions {
		sums[interaction.ItemId] += interaction.Rating
		counts[interaction.ItemId]++
	}
	return lo.MapValues(sums, func(sum float64, itemId string) float64 {
		return sum / float64(counts[itemId])
	}), nil
}

func (m *MemoryDatabase) GetUserIds(_ context.Context) (mapset.Set[string], error) {
	return m.readers.Clone(), nil
}
