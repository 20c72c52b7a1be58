package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
)

// ErrUnauthorized is returned when the server rejects the admin token.
var ErrUnauthorized = errors.New("unauthorized: invalid or missing admin token")

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListVisitors(ctx context.Context, query domain.VisitorQuery) ([]domain.Visitor, error) {
	params := url.Values{}
	if query.SortBy != "" {
		params.Set("sort_by", query.SortBy)
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Country != "" {
		params.Set("country", query.Country)
	}
	if query.HeatLevel != "" {
		params.Set("heat_level", query.HeatLevel)
	}
	if query.Industry != "" {
		params.Set("industry", query.Industry)
	}
	if query.DateFrom != nil {
		params.Set("date_from", query.DateFrom.UTC().Format(time.RFC3339Nano))
	}
	if query.DateTo != nil {
		// the server treats an RFC 3339 upper bound as inclusive
		params.Set("date_to", query.DateTo.Add(-time.Millisecond).UTC().Format(time.RFC3339Nano))
	}

	var visitors []domain.Visitor
	if err := c.get(ctx, "/api/admin/visitors", params, &visitors); err != nil {
		return nil, fmt.Errorf("failed to fetch visitors: %w", err)
	}
	return visitors, nil
}

func (c *Client) FilterOptions(ctx context.Context) (*domain.FilterOptions, error) {
	var options domain.FilterOptions
	if err := c.get(ctx, "/api/admin/filters", nil, &options); err != nil {
		return nil, fmt.Errorf("failed to fetch filter options: %w", err)
	}
	return &options, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		var body struct {
			Detail string `json:"detail"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Detail != "" {
			return fmt.Errorf("%s: %s", resp.Status, body.Detail)
		}
		return errors.New(resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
