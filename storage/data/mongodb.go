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
	"github.com/gorse-io/bookrec/storage"
	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB is the data storage based on MongoDB.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

func (db *MongoDB) Ping() error {
	return db.client.Ping(context.Background(), nil)
}

func (db *MongoDB) Close() error {
	return db.client.Disconnect(context.Background())
}

func (db *MongoDB) GetInteractions(ctx context.Context) ([]Interaction, error) {
	c := db.client.Database(db.dbName).Collection(db.InteractionsTable())
	return db.findInteractions(ctx, c, bson.M{})
}

func (db *MongoDB) GetUserInteractions(ctx context.Context, userId string) ([]Interaction, error) {
	c := db.client.Database(db.dbName).Collection(db.InteractionsTable())
	return db.findInteractions(ctx, c, bson.M{"reader_id": userId})
}

func (db *MongoDB) findInteractions(ctx context.Context, c *mongo.Collection, filter bson.M) ([]Interaction, error) {
	opt := options.Find().SetProjection(bson.M{"_id": 0, "reader_id": 1, "book_id": 1, "rating": 1})
	r, err := c.Find(ctx, filter, opt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	interactions := make([]Interaction, 0)
	for r.Next(ctx) {
		var interaction Interaction
		if err = r.Decode(&interaction); err != nil {
			return nil, errors.Trace(err)
		}
		interactions = append(interactions, interaction)
	}
	return interactions, errors.Trace(r.Err())
}

func (db *MongoDB) GetBooks(ctx context.Context) ([]Book, error) {
	c := db.client.Database(db.dbName).Collection(db.BooksTable())
	r, err := c.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	books := make([]Book, 0)
	for r.Next(ctx) {
		var book Book
		if err = r.Decode(&book); err != nil {
			return nil, errors.Trace(err)
		}
		books = append(books, book)
	}
	return books, errors.Trace(r.Err())
}

func (db *MongoDB) GetAverageRatings(ctx context.Context) (map[string]float64, error) {
	c := db.client.Database(db.dbName).Collection(db.InteractionsTable())
	r, err := c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$book_id"},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	averages := make(map[string]float64)
	for r.Next(ctx) {
		var row struct {
			ItemId  string  `bson:"_id"`
			Average float64 `bson:"average"`
		}
		if err = r.Decode(&row); err != nil {
			return nil, errors.Trace(err)
		}
		averages[row.ItemId] = row.Average
	}
	return averages, errors.Trace(r.Err())
}

func (db *MongoDB) GetUserIds(ctx context.Context) (mapset.Set[string], error) {
	c := db.client.Database(db.dbName).Collection(db.ReadersTable())
	r, err := c.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 0, "reader_id": 1}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	userIds := mapset.NewSet[string]()
	for r.Next(ctx) {
		var row struct {
			UserId string `bson:"reader_id"`
		}
		if err = r.Decode(&row); err != nil {
			return nil, errors.Trace(err)
		}
		userIds.Add(row.UserId)
	}
	return userIds, errors.Trace(r.Err())
}
