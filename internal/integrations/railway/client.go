package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultBaseURL = "https://backboard.railway.com/graphql/v2"

// Project is a deployment-provider project.
type Project struct {
	ID   string
	Name string
}

// Deployment is the latest deployment snapshot for a project, flattened
// across services. Status is normalized to lower case.
type Deployment struct {
	ID          string
	Status      string
	ErrorText   string
	ServiceName string
	CreatedAt   string
}

// Client talks to the Railway GraphQL API.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
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
		apiKey:  apiKey,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, dest any) error {
	op := func() error {
		body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
		if err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("railway %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("railway %s", resp.Status))
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []graphqlError  `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return err
		}
		if len(envelope.Errors) > 0 {
			return backoff.Permanent(fmt.Errorf("railway graphql: %s", envelope.Errors[0].Message))
		}
		return json.Unmarshal(envelope.Data, dest)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

const projectsQuery = `
query {
  projects {
    edges {
      node {
        id
        name
      }
    }
  }
}`

type projectsData struct {
	Projects struct {
		Edges []struct {
			Node struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"projects"`
}

// ListProjects returns all projects visible to the API key.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var data projectsData
	if err := c.query(ctx, projectsQuery, nil, &data); err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(data.Projects.Edges))
	for _, e := range data.Projects.Edges {
		out = append(out, Project{ID: e.Node.ID, Name: e.Node.Name})
	}
	return out, nil
}

// ResolveProject finds a project id by exact name.
func (c *Client) ResolveProject(ctx context.Context, name string) (string, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("railway project %q not found", name)
}

const deploymentsQuery = `
query ($id: String!) {
  project(id: $id) {
    services {
      edges {
        node {
          id
          name
          deployments {
            edges {
              node {
                id
                status
                createdAt
              }
            }
          }
        }
      }
    }
  }
}`

type deploymentsData struct {
	Project struct {
		Services struct {
			Edges []struct {
				Node struct {
					ID          string `json:"id"`
					Name        string `json:"name"`
					Deployments struct {
						Edges []struct {
							Node struct {
								ID        string `json:"id"`
								Status    string `json:"status"`
								CreatedAt string `json:"createdAt"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"deployments"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"services"`
	} `json:"project"`
}

// LatestDeployment returns the newest deployment across all of the project's
// services, or a zero Deployment when the project has none.
func (c *Client) LatestDeployment(ctx context.Context, projectID string) (Deployment, error) {
	var data deploymentsData
	if err := c.query(ctx, deploymentsQuery, map[string]any{"id": projectID}, &data); err != nil {
		return Deployment{}, err
	}

	var all []Deployment
	for _, se := range data.Project.Services.Edges {
		for _, de := range se.Node.Deployments.Edges {
			all = append(all, Deployment{
				ID:          de.Node.ID,
				Status:      strings.ToLower(de.Node.Status),
				ServiceName: se.Node.Name,
				CreatedAt:   de.Node.CreatedAt,
			})
		}
	}
	if len(all) == 0 {
		return Deployment{}, nil
	}
	// createdAt is RFC3339, so lexicographic order is chronological
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt > all[j].CreatedAt })

	latest := all[0]
	if latest.Status == "failed" || latest.Status == "crashed" {
		latest.ErrorText = fmt.Sprintf("Railway deployment %s for service %s", latest.Status, latest.ServiceName)
	}
	return latest, nil
}
