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
	"sort"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bookrec/storage"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

const (
	readersKey = "readers"
	booksKey   = "books"
	bookKey    = "book:"
	ratingsKey = "ratings:"
)

// Redis reads ratings from Redis. Readers and books are kept in the sets "readers" and
// "books", book metadata in the hash "book:<book_id>" and ratings of a reader in the hash
// "ratings:<reader_id>" which maps book ids to ratings. The hash holds one rating per
// reader and book, so repeated ratings of a book cannot be stored here. A book without
// a metadata hash is absent from GetBooks.
type Redis struct {
	storage.TablePrefix
	client *redis.Client
}

func (r *Redis) Ping() error {
	return r.client.Ping(context.Background()).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) GetInteractions(ctx context.Context) ([]Interaction, error) {
	userIds, err := r.client.SMembers(ctx, r.Key(readersKey)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	sort.Strings(userIds)
	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIds))
	for i, userId := range userIds {
		cmds[i] = pipe.HGetAll(ctx, r.Key(ratingsKey+userId))
	}
	if _, err = pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errors.Trace(err)
	}
	interactions := make([]Interaction, 0)
	for i, userId := range userIds {
		ratings, err := parseRatings(userId, cmds[i].Val())
		if err != nil {
			return nil, errors.Trace(err)
		}
		interactions = append(interactions, ratings...)
	}
	return interactions, nil
}

func (r *Redis) GetUserInteractions(ctx context.Context, userId string) ([]Interaction, error) {
	values, err := r.client.HGetAll(ctx, r.Key(ratingsKey+userId)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return parseRatings(userId, values)
}

// parseRatings converts a ratings hash to interactions ordered by book id.
func parseRatings(userId string, values map[string]string) ([]Interaction, error) {
	interactions := make([]Interaction, 0, len(values))
	for itemId, value := range values {
		rating, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "rating of %s by %s", itemId, userId)
		}
		interactions = append(interactions, Interaction{UserId: userId, ItemId: itemId, Rating: rating})
	}
	sort.Slice(interactions, func(i, j int) bool {
		return interactions[i].ItemId < interactions[j].ItemId
	})
	return interactions, nil
}

func (r *Redis) GetBooks(ctx context.Context) ([]Book, error) {
	itemIds, err := r.client.SMembers(ctx, r.Key(booksKey)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	sort.Strings(itemIds)
	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(itemIds))
	for i, itemId := range itemIds {
		cmds[i] = pipe.HGetAll(ctx, r.Key(bookKey+itemId))
	}
	if _, err = pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errors.Trace(err)
	}
	books := make([]Book, 0, len(itemIds))
	for i, itemId := range itemIds {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// no metadata hash
			continue
		}
		book := Book{ItemId: itemId}
		if author, ok := fields["author"]; ok {
			book.Author = &author
		}
		if genre, ok := fields["genre"]; ok {
			book.Genre = &genre
		}
		books = append(books, book)
	}
	return books, nil
}

// GetAverageRatings aggregates on the client since Redis keeps no per-book index.
func (r *Redis) GetAverageRatings(ctx context.Context) (map[string]float64, error) {
	interactions, err := r.GetInteractions(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, interaction := range interactions {
		sums[interaction.ItemId] += interaction.Rating
		counts[interaction.ItemId]++
	}
	averages := make(map[string]float64, len(sums))
	for itemId, sum := range sums {
		averages[itemId] = sum / float64(counts[itemId])
	}
	return averages, nil
}

func (r *Redis) GetUserIds(ctx context.Context) (mapset.Set[string], error) {
	userIds, err := r.client.SMembers(ctx, r.Key(readersKey)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return mapset.NewSet(userIds...), nil
}
