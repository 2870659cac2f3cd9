// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/info"
	"github.com/mia-platform/malbacklog/internal/logger"
	"github.com/mia-platform/malbacklog/internal/source"
)

const (
	loggerName = "malbacklog:source:jikan"
)

var (
	_ source.Source = &Client{}

	errParsingConfig = errors.New("error parsing source configuration from environment variables")
)

// config holds the environment-driven client settings.
type config struct {
	Endpoint string        `env:"MAL_API_ENDPOINT" envDefault:"https://api.jikan.moe/v4"`
	Timeout  time.Duration `env:"MAL_API_TIMEOUT" envDefault:"30s"`
}

func (c *config) validate() error {
	endpoint, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid MAL_API_ENDPOINT: %w", err)
	}

	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return fmt.Errorf("invalid MAL_API_ENDPOINT: unsupported scheme %q", endpoint.Scheme)
	}

	if c.Timeout <= 0 {
		return errors.New("MAL_API_TIMEOUT must be greater than zero")
	}

	return nil
}

// Client implements source.Source against a Jikan compatible MyAnimeList API.
type Client struct {
	config

	client *http.Client
	now    func() time.Time
}

// NewClient returns a Client configured from environment variables.
func NewClient() (*Client, error) {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errParsingConfig, err.Error())
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}, nil
}

// FetchRecord implements source.Source.
func (c *Client) FetchRecord(ctx context.Context, entityType entity.Type, id int64) (any, error) {
	switch entityType {
	case entity.Anime:
		var response envelope[animeData]
		if err := c.get(ctx, entityType, id, &response); err != nil {
			return nil, err
		}
		record, err := response.Data.toModel(c.now())
		if err != nil {
			return nil, fetchError(entityType, id, err)
		}
		return record, nil
	case entity.Manga:
		var response envelope[mangaData]
		if err := c.get(ctx, entityType, id, &response); err != nil {
			return nil, err
		}
		record, err := response.Data.toModel(c.now())
		if err != nil {
			return nil, fetchError(entityType, id, err)
		}
		return record, nil
	default:
		return nil, entityType.Validate()
	}
}

// get retrieves the full resource of entityType with id and decodes it into out.
func (c *Client) get(ctx context.Context, entityType entity.Type, id int64, out any) error {
	log := logger.FromContext(ctx).WithName(loggerName)

	endpoint, err := url.JoinPath(c.Endpoint, entityType.String(), strconv.FormatInt(id, 10), "full")
	if err != nil {
		return fetchError(entityType, id, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fetchError(entityType, id, err)
	}

	request.Header.Set("User-Agent", info.UserAgent())
	request.Header.Set("Accept", "application/json")

	log.Trace("requesting record", "url", endpoint)
	resp, err := c.client.Do(request)
	if err != nil {
		return fetchError(entityType, id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fetchError(entityType, id, fmt.Errorf("decoding response: %w", err))
		}
		return nil
	case http.StatusNotFound:
		return fetchError(entityType, id, source.ErrNotFound)
	case http.StatusTooManyRequests:
		return fetchError(entityType, id, source.ErrRateLimited)
	default:
		var body errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
			return fetchError(entityType, id, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body.Message))
		}
		return fetchError(entityType, id, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func fetchError(entityType entity.Type, id int64, err error) error {
	return &source.FetchError{
		Entity: entityType,
		ID:     id,
		Err:    err,
	}
}
