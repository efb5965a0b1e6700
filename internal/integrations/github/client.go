package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultBaseURL = "https://api.github.com"

// Commit is one entry of a repository's recent history.
type Commit struct {
	SHA     string
	Message string
	Author  string
	Date    string
	URL     string
}

// Client talks to the GitHub REST API.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, url, accept string, read func(*http.Response) error) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("github %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("github %s", resp.Status))
		}
		return read(resp)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

type commitDTO struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	HTMLURL string `json:"html_url"`
}

// RecentCommits returns up to limit most recent commits on the default branch.
func (c *Client) RecentCommits(ctx context.Context, owner, name string, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 5
	}
	url := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d", c.baseURL, owner, name, limit)

	var list []commitDTO
	err := c.do(ctx, url, "application/vnd.github+json", func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&list)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Commit, 0, len(list))
	for _, d := range list {
		out = append(out, Commit{
			SHA:     d.SHA,
			Message: d.Commit.Message,
			Author:  d.Commit.Author.Name,
			Date:    d.Commit.Author.Date,
			URL:     d.HTMLURL,
		})
	}
	return out, nil
}

// CommitDiff returns the unified diff for a single commit.
func (c *Client) CommitDiff(ctx context.Context, owner, name, sha string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.baseURL, owner, name, sha)

	var diff string
	err := c.do(ctx, url, "application/vnd.github.v3.diff", func(resp *http.Response) error {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		diff = string(b)
		return nil
	})
	if err != nil {
		return "", err
	}
	return diff, nil
}
