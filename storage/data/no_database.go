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
)

// NoDatabase means that no database used.
type NoDatabase struct{}

// Ping a database.
func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

// Close method of NoDatabase returns ErrNoDatabase.
func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) GetInteractions(_ context.Context) ([]Interaction, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetUserInteractions(_ context.Context, _ string) ([]Interaction, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetBooks(_ context.Context) ([]Book, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetAverageRatings(_ context.Context) (map[string]float64, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetUserIds(_ context.Context) (mapset.Set[string], error) {
	return nil, ErrNoDatabase
}
