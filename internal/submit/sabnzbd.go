// Package submit implements the download-manager capability: handing a found
// release to SABnzbd via its addurl API.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mvdbosch/bookwish/internal/search"
)

// ErrRejected means SABnzbd answered but refused the NZB. Distinguishable
// from transport failures so the user-visible reason can say which it was.
var ErrRejected = errors.New("submission rejected")

// Submitter is the submission capability consumed by the worker.
type Submitter interface {
	// Submit hands the candidate to the download manager under the given job
	// name and returns an opaque reference for the accepted job.
	Submit(ctx context.Context, cand search.Candidate, name string) (string, error)
}

// Client talks to a SABnzbd instance.
type Client struct {
	baseURL  string
	apiKey   string
	category string
	http     *http.Client
}

// NewClient creates a SABnzbd client. category is the SABnzbd category new
// jobs are filed under; empty means the server default.
func NewClient(baseURL, apiKey, category string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		category: category,
		http:     &http.Client{},
	}
}

type sabResponse struct {
	Status bool     `json:"status"`
	NzoIDs []string `json:"nzo_ids"`
	Error  string   `json:"error"`
}

// Submit adds the candidate's NZB URL to the SABnzbd queue. The returned
// reference is the queue id when SABnzbd reports one, otherwise the NZB URL.
func (c *Client) Submit(ctx context.Context, cand search.Candidate, name string) (string, error) {
	params := url.Values{
		"mode":    {"addurl"},
		"name":    {cand.NZBURL},
		"nzbname": {name},
		"apikey":  {c.apiKey},
		"output":  {"json"},
	}
	if c.category != "" {
		params.Set("cat", c.category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sabnzbd: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sabnzbd returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var sr sabResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("parse sabnzbd response: %w", err)
	}

	if !sr.Status && len(sr.NzoIDs) == 0 {
		reason := sr.Error
		if reason == "" {
			reason = "no reason given"
		}
		return "", fmt.Errorf("%s: %w", reason, ErrRejected)
	}

	if len(sr.NzoIDs) > 0 {
		return sr.NzoIDs[0], nil
	}
	return cand.NZBURL, nil
}
