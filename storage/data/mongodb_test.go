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
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
)

var mongoUri = env("MONGO_URI", "")

type MongoTestSuite struct {
	baseTestSuite
}

func (suite *MongoTestSuite) SetupSuite() {
	ctx := context.Background()
	var err error
	suite.Database, err = Open(mongoUri, "test_")
	suite.NoError(err)
	db := suite.Database.(*MongoDB)
	d := db.client.Database(db.dbName)
	for _, name := range []string{db.ReadersTable(), db.BooksTable(), db.InteractionsTable()} {
		suite.NoError(d.Collection(name).Drop(ctx))
	}
	_, err = d.Collection(db.ReadersTable()).InsertMany(ctx, lo.Map(testReaders, func(userId string, _ int) any {
		return bson.M{"reader_id": userId}
	}))
	suite.NoError(err)
	_, err = d.Collection(db.BooksTable()).InsertMany(ctx, lo.Map(testBooks, func(book Book, _ int) any {
		return book
	}))
	suite.NoError(err)
	_, err = d.Collection(db.InteractionsTable()).InsertMany(ctx, lo.Map(testInteractions, func(interaction Interaction, _ int) any {
		return interaction
	}))
	suite.NoError(err)
}

func (suite *MongoTestSuite) TearDownSuite() {
	ctx := context.Background()
	db := suite.Database.(*MongoDB)
	d := db.client.Database(db.dbName)
	for _, name := range []string{db.ReadersTable(), db.BooksTable(), db.InteractionsTable()} {
		suite.NoError(d.Collection(name).Drop(ctx))
	}
	suite.NoError(suite.Database.Close())
}

func TestMongo(t *testing.T) {
	if mongoUri == "" {
		t.Skip("MONGO_URI is not set")
	}
	suite.Run(t, new(MongoTestSuite))
}
