// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Title is one of the titles a work is known with.
type Title struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Reference points to another catalog resource, like a studio, an author or a magazine.
type Reference struct {
	ID   int64  `json:"mal_id"`
	Type string `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DateRange is the period a work was aired or published in. Unknown edges are nil.
type DateRange struct {
	From *civil.Date `json:"from"`
	To   *civil.Date `json:"to"`
}

// Statistics groups the community figures shared by anime and manga.
type Statistics struct {
	Score      *decimal.Decimal `json:"score"`
	ScoredBy   int64            `json:"scored_by"`
	Rank       int64            `json:"rank"`
	Popularity int64            `json:"popularity"`
	Members    int64            `json:"members"`
	Favorites  int64            `json:"favorites"`
}

// Work groups the fields shared by anime and manga.
type Work struct {
	ID       int64       `json:"id"`
	URL      string      `json:"url"`
	Titles   []Title     `json:"titles"`
	Type     string      `json:"type"`
	Status   string      `json:"status"`
	Synopsis string      `json:"synopsis"`
	Genres   Set[string] `json:"genres"`
	Themes   Set[string] `json:"themes"`
	Related  []Reference `json:"relations"`

	Statistics

	FetchedAt time.Time `json:"fetched_at"`
}

// Anime is the full record of an anime.
type Anime struct {
	Work

	Source    string      `json:"source"`
	Episodes  *int64      `json:"episodes"`
	Aired     DateRange   `json:"aired"`
	Duration  string      `json:"duration"`
	Rating    string      `json:"rating"`
	Season    string      `json:"season"`
	Year      *int64      `json:"year"`
	Studios   []Reference `json:"studios"`
	Producers []Reference `json:"producers"`
}

// Manga is the full record of a manga.
type Manga struct {
	Work

	Chapters       *int64      `json:"chapters"`
	Volumes        *int64      `json:"volumes"`
	Publishing     bool        `json:"publishing"`
	Published      DateRange   `json:"published"`
	Authors        []Reference `json:"authors"`
	Serializations []Reference `json:"serializations"`
}
