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
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorse-io/bookrec/storage"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type RedisTestSuite struct {
	baseTestSuite
	server *miniredis.Miniredis
}

func (suite *RedisTestSuite) SetupSuite() {
	ctx := context.Background()
	var err error
	suite.server, err = miniredis.Run()
	suite.NoError(err)
	suite.Database, err = Open(storage.RedisPrefix+suite.server.Addr(), "bk_")
	suite.NoError(err)
	db := suite.Database.(*Redis)
	for _, userId := range testReaders {
		suite.NoError(db.client.SAdd(ctx, db.Key(readersKey), userId).Err())
	}
	for _, book := range testBooks {
		suite.NoError(db.client.SAdd(ctx, db.Key(booksKey), book.ItemId).Err())
		var fields []any
		if book.Author != nil {
			fields = append(fields, "author", *book.Author)
		}
		if book.Genre != nil {
			fields = append(fields, "genre", *book.Genre)
		}
		suite.NoError(db.client.HSet(ctx, db.Key(bookKey+book.ItemId), fields...).Err())
	}
	for _, interaction := range testInteractions {
		suite.NoError(db.client.HSet(ctx, db.Key(ratingsKey+interaction.UserId),
			interaction.ItemId, strconv.FormatFloat(interaction.Rating, 'f', -1, 64)).Err())
	}
}

func (suite *RedisTestSuite) TearDownSuite() {
	suite.NoError(suite.Database.Close())
	suite.server.Close()
}

func (suite *RedisTestSuite) TestKeyPrefix() {
	suite.True(suite.server.Exists("bk_readers"))
	suite.True(suite.server.Exists("bk_ratings:r1"))
	suite.False(suite.server.Exists("readers"))
}

func (suite *RedisTestSuite) TestMalformedRating() {
	ctx := context.Background()
	db := suite.Database.(*Redis)
	suite.NoError(db.client.HSet(ctx, db.Key(ratingsKey+"bad"), "b1", "ten").Err())
	_, err := db.GetUserInteractions(ctx, "bad")
	suite.Error(err)
}

func (suite *RedisTestSuite) TestBooksWithoutMetadata() {
	ctx := context.Background()
	database, err := Open(storage.RedisPrefix+suite.server.Addr(), "other_")
	suite.NoError(err)
	defer database.Close()
	db := database.(*Redis)
	suite.NoError(db.client.SAdd(ctx, db.Key(booksKey), "a", "b", "c").Err())
	suite.NoError(db.client.HSet(ctx, db.Key(bookKey+"c"), "genre", "fantasy").Err())
	books, err := db.GetBooks(ctx)
	suite.NoError(err)
	suite.Equal([]Book{{ItemId: "c", Genre: lo.ToPtr("fantasy")}}, books)
}

func TestRedis(t *testing.T) {
	suite.Run(t, new(RedisTestSuite))
}
