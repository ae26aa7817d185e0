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

import (
	"github.com/gorse-io/bookrec/storage/data"
)

const (
	authorSimilarity = 0.5
	genreSimilarity  = 0.5
)

// ContentSimilarity scores pairs of books by shared author and genre.
type ContentSimilarity struct {
	books map[string]data.Book
}

// NewContentSimilarity indexes books by id. A later record of the same book replaces an earlier one.
func NewContentSimilarity(books []data.Book) *ContentSimilarity {
	index := make(map[string]data.Book, len(books))
	for _, book := range books {
		index[book.ItemId] = book
	}
	return &ContentSimilarity{books: index}
}

// Similarity returns 0 if either book has no metadata. Otherwise an author match
// adds 0.5 and a genre match adds 0.5. A missing author or genre never matches.
func (c *ContentSimilarity) Similarity(a, b string) float64 {
	bookA, exist := c.books[a]
	if !exist {
		return 0
	}
	bookB, exist := c.books[b]
	if !exist {
		return 0
	}
	var score float64
	if equal(bookA.Author, bookB.Author) {
		score += authorSimilarity
	}
	if equal(bookA.Genre, bookB.Genre) {
		score += genreSimilarity
	}
	return score
}

func equal(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (c *ContentSimilarity) Count() int {
	return len(c.books)
}
