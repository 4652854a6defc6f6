// Package search implements the indexer capability: querying Spotweb's
// newznab API for release candidates matching an author/title pair.
package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Query is one author/title pair to search for.
type Query struct {
	Author string
	Title  string
}

// Candidate is a ranked release returned by the indexer.
type Candidate struct {
	Title    string `json:"title"`
	NZBURL   string `json:"nzb_url"`
	Category string `json:"category,omitempty"`
	PubDate  string `json:"pub_date,omitempty"`
}

// Searcher is the search capability consumed by the worker.
type Searcher interface {
	// Search returns candidates ranked best-first, or an empty slice when the
	// index has no match. An error means the indexer call itself failed.
	Search(ctx context.Context, author, title string) ([]Candidate, error)
}

// Client queries a Spotweb instance over its newznab-compatible API.
type Client struct {
	baseURL  string
	apiKey   string
	category string
	limit    int
	http     *http.Client
	ranker   Ranker
}

// NewClient creates a Spotweb search client. category is the newznab category
// id to search in (7020 = ebooks).
func NewClient(baseURL, apiKey, category string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		category: category,
		limit:    25,
		http:     &http.Client{},
		ranker:   DefaultRanker,
	}
}

// WithRanker replaces the candidate ordering policy.
func (c *Client) WithRanker(r Ranker) *Client {
	c.ranker = r
	return c
}

// newznab RSS envelope. Only the fields we read are mapped.
type rssEnvelope struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	Category  string `xml:"category"`
	PubDate   string `xml:"pubDate"`
	Enclosure struct {
		URL string `xml:"url,attr"`
	} `xml:"enclosure"`
}

// Search tries each query variant in order and collects the releases whose
// title matches the author/title pair. Candidates are deduplicated by NZB URL
// and returned ranked best-first. The context deadline bounds every request.
func (c *Client) Search(ctx context.Context, author, title string) ([]Candidate, error) {
	q := Query{Author: author, Title: title}
	var (
		candidates []Candidate
		seen       = make(map[string]struct{})
		lastErr    error
	)

	for _, variant := range Variants(author, title) {
		items, err := c.query(ctx, variant)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("indexer query %q: %w", variant, err)
			}
			// One bad variant does not fail the whole search.
			lastErr = err
			continue
		}

		for _, it := range items {
			if it.Enclosure.URL == "" {
				continue
			}
			if !Matches(author, title, it.Title) {
				continue
			}
			if _, dup := seen[it.Enclosure.URL]; dup {
				continue
			}
			seen[it.Enclosure.URL] = struct{}{}
			candidates = append(candidates, Candidate{
				Title:    it.Title,
				NZBURL:   it.Enclosure.URL,
				Category: it.Category,
				PubDate:  it.PubDate,
			})
		}
	}

	if len(candidates) == 0 && lastErr != nil {
		// Every variant failed, or none matched and at least one errored:
		// report the failure so it is not mistaken for a clean miss.
		return nil, fmt.Errorf("indexer: %w", lastErr)
	}
	return rank(c.ranker, q, candidates), nil
}

func (c *Client) query(ctx context.Context, q string) ([]rssItem, error) {
	params := url.Values{
		"apikey":   {c.apiKey},
		"t":        {"search"},
		"extended": {"1"},
		"q":        {q},
		"cat":      {c.category},
		"limit":    {fmt.Sprintf("%d", c.limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotweb returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var envelope rssEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse spotweb response: %w", err)
	}
	return envelope.Channel.Items, nil
}
