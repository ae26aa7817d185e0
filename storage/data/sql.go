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
	"database/sql"

	mapset "github.com/deckarep/golang-set/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorse-io/bookrec/storage"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"gorm.io/gorm"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLDatabase reads ratings from MySQL, Postgres or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

func (d *SQLDatabase) GetInteractions(ctx context.Context) ([]Interaction, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).
		Select("reader_id, book_id, rating").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	return scanInteractions(result)
}

func (d *SQLDatabase) GetUserInteractions(ctx context.Context, userId string) ([]Interaction, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).
		Select("reader_id, book_id, rating").Where("reader_id = ?", userId).Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	return scanInteractions(result)
}

func scanInteractions(result *sql.Rows) ([]Interaction, error) {
	interactions := make([]Interaction, 0)
	for result.Next() {
		var interaction Interaction
		if err := result.Scan(&interaction.UserId, &interaction.ItemId, &interaction.Rating); err != nil {
			return nil, errors.Trace(err)
		}
		interactions = append(interactions, interaction)
	}
	return interactions, errors.Trace(result.Err())
}

func (d *SQLDatabase) GetBooks(ctx context.Context) ([]Book, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.BooksTable()).
		Select("book_id, author, genre").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	books := make([]Book, 0)
	for result.Next() {
		var (
			book          Book
			author, genre sql.NullString
		)
		if err = result.Scan(&book.ItemId, &author, &genre); err != nil {
			return nil, errors.Trace(err)
		}
		if author.Valid {
			book.Author = &author.String
		}
		if genre.Valid {
			book.Genre = &genre.String
		}
		books = append(books, book)
	}
	return books, errors.Trace(result.Err())
}

func (d *SQLDatabase) GetAverageRatings(ctx context.Context) (map[string]float64, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).
		Select("book_id, AVG(rating)").Group("book_id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	averages := make(map[string]float64)
	for result.Next() {
		var (
			itemId  string
			average float64
		)
		if err = result.Scan(&itemId, &average); err != nil {
			return nil, errors.Trace(err)
		}
		averages[itemId] = average
	}
	return averages, errors.Trace(result.Err())
}

func (d *SQLDatabase) GetUserIds(ctx context.Context) (mapset.Set[string], error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.ReadersTable()).Select("reader_id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	userIds := mapset.NewSet[string]()
	for result.Next() {
		var userId string
		if err = result.Scan(&userId); err != nil {
			return nil, errors.Trace(err)
		}
		userIds.Add(userId)
	}
	return userIds, errors.Trace(result.Err())
}
