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

package data

import (
	"context"
	"os"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

var (
	testReaders = []string{"r1", "r2", "r3"}
	testBooks   = []Book{
		{ItemId: "b1", Author: lo.ToPtr("Tolkien"), Genre: lo.ToPtr("fantasy")},
		{ItemId: "b2", Author: lo.ToPtr("Tolkien"), Genre: lo.ToPtr("essay")},
		{ItemId: "b3", Author: lo.ToPtr("Le Guin"), Genre: lo.ToPtr("fantasy")},
		{ItemId: "b4", Author: lo.ToPtr("Asimov")},
	}
	testInteractions = []Interaction{
		{UserId: "r1", ItemId: "b1", Rating: 8},
		{UserId: "r1", ItemId: "b2", Rating: 6},
		{UserId: "r2", ItemId: "b1", Rating: 9},
		{UserId: "r2", ItemId: "b3", Rating: 4},
	}
)

func env(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// baseTestSuite runs the same reads against every backend. Backends seed
// testReaders, testBooks and testInteractions in SetupSuite.
type baseTestSuite struct {
	suite.Suite
	Database Database
}

func (suite *baseTestSuite) TestPing() {
	suite.NoError(suite.Database.Ping())
}

func (suite *baseTestSuite) TestGetInteractions() {
	interactions, err := suite.Database.GetInteractions(context.Background())
	suite.NoError(err)
	suite.ElementsMatch(testInteractions, interactions)
}

func (suite *baseTestSuite) TestGetUserInteractions() {
	ctx := context.Background()
	interactions, err := suite.Database.GetUserInteractions(ctx, "r1")
	suite.NoError(err)
	suite.ElementsMatch(testInteractions[:2], interactions)
	// reader without ratings
	interactions, err = suite.Database.GetUserInteractions(ctx, "r3")
	suite.NoError(err)
	suite.Empty(interactions)
	// unknown reader
	interactions, err = suite.Database.GetUserInteractions(ctx, "unknown")
	suite.NoError(err)
	suite.Empty(interactions)
}

func (suite *baseTestSuite) TestGetBooks() {
	books, err := suite.Database.GetBooks(context.Background())
	suite.NoError(err)
	suite.ElementsMatch(testBooks, books)
}

func (suite *baseTestSuite) TestGetAverageRatings() {
	averages, err := suite.Database.GetAverageRatings(context.Background())
	suite.NoError(err)
	suite.Len(averages, 3)
	suite.InDelta(8.5, averages["b1"], 1e-6)
	suite.InDelta(6.0, averages["b2"], 1e-6)
	suite.InDelta(4.0, averages["b3"], 1e-6)
}

func (suite *baseTestSuite) TestGetUserIds() {
	userIds, err := suite.Database.GetUserIds(context.Background())
	suite.NoError(err)
	suite.True(mapset.NewSet(testReaders...).Equal(userIds))
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("oracle://localhost:1521", "")
	assert.Error(t, err)
	_, err = Open("redis://localhost:abc", "")
	assert.Error(t, err)
}

func TestProxyDatabase(t *testing.T) {
	ctx := context.Background()
	proxy := NewProxyDatabase(NoDatabase{})
	before := testutil.ToFloat64(ReadErrors.WithLabelValues("get_books"))
	_, err := proxy.GetBooks(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	assert.Equal(t, before+1, testutil.ToFloat64(ReadErrors.WithLabelValues("get_books")))

	_, err = proxy.GetInteractions(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = proxy.GetUserInteractions(ctx, "r1")
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = proxy.GetAverageRatings(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = proxy.GetUserIds(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	assert.ErrorIs(t, proxy.Ping(), ErrNoDatabase)
}
