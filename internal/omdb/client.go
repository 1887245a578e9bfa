package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/maaaruch/shoppies-bot/internal/domain"
)

// ErrNoResults is returned when OMDb refuses a query without matching
// anything, e.g. "Too many results." or an invalid API key.
var ErrNoResults = errors.New("omdb: no results")

// notFound is OMDb's Error text for a query that simply matched nothing.
const notFound = "Movie not found!"

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

type searchResponse struct {
	Response string         `json:"Response"`
	Error    string         `json:"Error"`
	Search   []domain.Movie `json:"Search"`
}

// Search returns movies whose title matches query.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("omdb: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", c.apiKey)
	q.Set("s", query)
	q.Set("type", "movie")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("omdb: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("omdb: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("omdb: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("omdb: decode: %w", err)
	}
	if out.Response != "True" {
		if out.Error == notFound {
			return nil, nil
		}
		if out.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoResults, out.Error)
		}
		return nil, ErrNoResults
	}

	movies := make([]domain.Movie, 0, len(out.Search))
	for _, m := range out.Search {
		if m.ImdbID == "" {
			continue
		}
		m.Nominated = false
		movies = append(movies, m)
	}
	return movies, nil
}
