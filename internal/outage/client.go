package outage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the outage scraping service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new outage service client. The timeout is generous
// because the service scrapes the utility's website on cache misses.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 35 * time.Second,
		},
	}
}

// Fetch returns the per-street outage data for an address. House is passed as
// a hint; the response is still the whole street's map.
func (c *Client) Fetch(ctx context.Context, city, street, house string) (*StreetOutage, error) {
	q := url.Values{}
	q.Set("city", city)
	q.Set("street", street)
	if house != "" {
		q.Set("house", house)
	}

	reqURL := fmt.Sprintf("%s/outage?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("outage service returned %d", resp.StatusCode)
	}

	var result StreetOutage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// Cities returns city names matching the query, for the address wizard.
func (c *Client) Cities(ctx context.Context, query string) ([]string, error) {
	return c.getNames(ctx, fmt.Sprintf("%s/cities?q=%s", c.baseURL, url.QueryEscape(query)))
}

// Streets returns street names in a city matching the query.
func (c *Client) Streets(ctx context.Context, city, query string) ([]string, error) {
	q := url.Values{}
	q.Set("city", city)
	q.Set("q", query)
	return c.getNames(ctx, fmt.Sprintf("%s/streets?%s", c.baseURL, q.Encode()))
}

func (c *Client) getNames(ctx context.Context, reqURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("outage service returned %d", resp.StatusCode)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return names, nil
}
