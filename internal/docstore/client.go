// Package docstore submits finished nomination lists and returns the ID of
// the stored document.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/maaaruch/shoppies-bot/internal/domain"
)

// ErrRejected means the store answered but did not return a document ID.
var ErrRejected = errors.New("docstore: submission rejected")

// Client talks to a jsonbin-style JSON document store.
type Client struct {
	url       string
	masterKey string
	http      *http.Client
}

func New(url, masterKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, masterKey: masterKey, http: httpClient}
}

type record struct {
	ImdbID string `json:"imdbID"`
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	Poster string `json:"Poster"`
}

type createResponse struct {
	Metadata struct {
		ID string `json:"id"`
	} `json:"metadata"`
	Message string `json:"message"`
}

func (c *Client) Submit(ctx context.Context, movies []domain.Movie) (string, error) {
	body := make([]record, 0, len(movies))
	for _, m := range movies {
		body = append(body, record{ImdbID: m.ImdbID, Title: m.Title, Year: m.Year, Poster: m.Poster})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("docstore: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("docstore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bin-Private", "false")
	if c.masterKey != "" {
		req.Header.Set("X-Master-Key", c.masterKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("docstore: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("docstore: read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out createResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("docstore: decode: %w", err)
	}
	if out.Metadata.ID == "" {
		return "", fmt.Errorf("%w: no id in response", ErrRejected)
	}
	return out.Metadata.ID, nil
}
