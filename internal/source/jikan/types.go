// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package jikan

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/mia-platform/malbacklog/internal/source"
)

// envelope is the wrapper of every successful API response.
type envelope[T any] struct {
	Data T `json:"data"`
}

// errorResponse is the body returned together with non successful status codes.
type errorResponse struct {
	Status  int    `json:"status"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type title struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

type resource struct {
	ID   int64  `json:"mal_id"`
	Type string `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type relation struct {
	Relation string     `json:"relation"`
	Entry    []resource `json:"entry"`
}

type dateRange struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

// workData holds the fields shared by anime and manga responses.
type workData struct {
	ID         int64            `json:"mal_id"`
	URL        string           `json:"url"`
	Titles     []title          `json:"titles"`
	Type       string           `json:"type"`
	Status     string           `json:"status"`
	Synopsis   string           `json:"synopsis"`
	Score      *decimal.Decimal `json:"score"`
	ScoredBy   int64            `json:"scored_by"`
	Rank       int64            `json:"rank"`
	Popularity int64            `json:"popularity"`
	Members    int64            `json:"members"`
	Favorites  int64            `json:"favorites"`
	Genres     []resource       `json:"genres"`
	Themes     []resource       `json:"themes"`
	Relations  []relation       `json:"relations"`
}

type animeData struct {
	workData

	Source    string     `json:"source"`
	Episodes  *int64     `json:"episodes"`
	Aired     dateRange  `json:"aired"`
	Duration  string     `json:"duration"`
	Rating    string     `json:"rating"`
	Season    string     `json:"season"`
	Year      *int64     `json:"year"`
	Studios   []resource `json:"studios"`
	Producers []resource `json:"producers"`
}

type mangaData struct {
	workData

	Chapters       *int64     `json:"chapters"`
	Volumes        *int64     `json:"volumes"`
	Publishing     bool       `json:"publishing"`
	Published      dateRange  `json:"published"`
	Authors        []resource `json:"authors"`
	Serializations []resource `json:"serializations"`
}

func (d animeData) toModel(fetchedAt time.Time) (*source.Anime, error) {
	aired, err := d.Aired.toModel()
	if err != nil {
		return nil, fmt.Errorf("anime %d aired: %w", d.ID, err)
	}

	return &source.Anime{
		Work:      d.workData.toModel(fetchedAt),
		Source:    d.Source,
		Episodes:  d.Episodes,
		Aired:     aired,
		Duration:  d.Duration,
		Rating:    d.Rating,
		Season:    d.Season,
		Year:      d.Year,
		Studios:   references(d.Studios),
		Producers: references(d.Producers),
	}, nil
}

func (d mangaData) toModel(fetchedAt time.Time) (*source.Manga, error) {
	published, err := d.Published.toModel()
	if err != nil {
		return nil, fmt.Errorf("manga %d published: %w", d.ID, err)
	}

	return &source.Manga{
		Work:           d.workData.toModel(fetchedAt),
		Chapters:       d.Chapters,
		Volumes:        d.Volumes,
		Publishing:     d.Publishing,
		Published:      published,
		Authors:        references(d.Authors),
		Serializations: references(d.Serializations),
	}, nil
}

func (d workData) toModel(fetchedAt time.Time) source.Work {
	titles := make([]source.Title, 0, len(d.Titles))
	for _, t := range d.Titles {
		titles = append(titles, source.Title{Type: t.Type, Title: t.Title})
	}

	related := make([]source.Reference, 0)
	for _, r := range d.Relations {
		for _, entry := range r.Entry {
			related = append(related, source.Reference{
				ID:   entry.ID,
				Type: r.Relation,
				Name: entry.Name,
				URL:  entry.URL,
			})
		}
	}

	return source.Work{
		ID:       d.ID,
		URL:      d.URL,
		Titles:   titles,
		Type:     d.Type,
		Status:   d.Status,
		Synopsis: d.Synopsis,
		Genres:   names(d.Genres),
		Themes:   names(d.Themes),
		Related:  related,
		Statistics: source.Statistics{
			Score:      d.Score,
			ScoredBy:   d.ScoredBy,
			Rank:       d.Rank,
			Popularity: d.Popularity,
			Members:    d.Members,
			Favorites:  d.Favorites,
		},
		FetchedAt: fetchedAt.UTC(),
	}
}

func (r dateRange) toModel() (source.DateRange, error) {
	from, err := parseDate(r.From)
	if err != nil {
		return source.DateRange{}, err
	}

	to, err := parseDate(r.To)
	if err != nil {
		return source.DateRange{}, err
	}

	return source.DateRange{From: from, To: to}, nil
}

// parseDate converts the RFC 3339 timestamps used by the API into calendar dates.
func parseDate(value *string) (*civil.Date, error) {
	if value == nil || *value == "" {
		return nil, nil
	}

	parsed, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, err
	}

	date := civil.DateOf(parsed)
	return &date, nil
}

func names(resources []resource) source.Set[string] {
	set := source.NewSet[string]()
	for _, r := range resources {
		set.Add(r.Name)
	}
	return set
}

func references(resources []resource) []source.Reference {
	refs := make([]source.Reference, 0, len(resources))
	for _, r := range resources {
		refs = append(refs, source.Reference(r))
	}
	return refs
}
