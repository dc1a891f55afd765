// Package devops is a small client for the Azure DevOps git REST API.
//
// Only the two calls a deployment needs are implemented:
//
//   - Changes: one page of the diff between two commits
//   - Items: the full tree listing at a version
//
// Example:
//
//	client := devops.NewClient(devops.Options{
//		BaseURL:      consts.DefaultDevOpsURL,
//		RepositoryID: "a2b4...",
//		Token:        os.Getenv("SYSTEM_ACCESSTOKEN"),
//	})
//
//	changes, err := client.Changes(ctx, devops.DiffQuery{Base: "abc", Target: "def", Top: 100})
package devops

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/consts"
)

const (
	ChangeAdd        = "add"
	ChangeEdit       = "edit"
	ChangeRename     = "rename"
	ChangeEditRename = "edit, rename"
	ChangeDelete     = "delete"
)

type (
	// Options configures a Client.
	Options struct {
		// BaseURL is the repositories endpoint, e.g.
		// https://dev.azure.com/<org>/<project>/_apis/git/repositories
		BaseURL      string
		RepositoryID string
		Token        string
		APIVersion   string

		// HTTPClient defaults to http.DefaultClient. Timeouts are its business.
		HTTPClient *http.Client
	}

	// Client talks to the Azure DevOps git API.
	Client struct {
		baseURL    string
		repository string
		auth       string
		apiVersion string
		http       *http.Client
	}

	// DiffQuery selects one page of the diff between two commits.
	DiffQuery struct {
		Base   string
		Target string
		Skip   int
		Top    int
	}

	// Item is an entry in the repository tree.
	Item struct {
		Path     string `json:"path"`
		IsFolder bool   `json:"isFolder"`
	}

	// Change is one entry of a diff page.
	Change struct {
		Item       Item   `json:"item"`
		ChangeType string `json:"changeType"`
	}

	// StatusError is returned for any non-2xx response.
	StatusError struct {
		URL        string
		StatusCode int
		Body       string
	}
)

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// NewClient creates a Client from the given options.
func NewClient(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.APIVersion == "" {
		opts.APIVersion = consts.DefaultDevOpsAPIVersion
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		repository: opts.RepositoryID,
		auth:       "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+opts.Token)),
		apiVersion: opts.APIVersion,
		http:       opts.HTTPClient,
	}
}

// Changes returns a single page of changes between q.Base and q.Target.
func (c *Client) Changes(ctx context.Context, q DiffQuery) ([]Change, error) {
	params := url.Values{}
	params.Set("$top", strconv.Itoa(q.Top))
	params.Set("$skip", strconv.Itoa(q.Skip))
	params.Set("baseVersion", q.Base)
	params.Set("baseVersionType", "commit")
	params.Set("targetVersion", q.Target)
	params.Set("targetVersionType", "commit")
	params.Set("api-version", c.apiVersion)

	var body struct {
		Changes []Change `json:"changes"`
	}
	if err := c.get(ctx, c.endpoint("diffs/commits", params), &body); err != nil {
		return nil, errors.Wrap(err, "failed to fetch diff")
	}

	return body.Changes, nil
}

// Items lists every item in the repository at the given branch or commit.
func (c *Client) Items(ctx context.Context, version string) ([]Item, error) {
	params := url.Values{}
	params.Set("version", version)
	params.Set("scopePath", "/")
	params.Set("recursionLevel", "full")
	params.Set("api-version", c.apiVersion)

	var body struct {
		Value []Item `json:"value"`
	}
	if err := c.get(ctx, c.endpoint("items", params), &body); err != nil {
		return nil, errors.Wrap(err, "failed to list items")
	}

	return body.Value, nil
}

func (c *Client) endpoint(resource string, params url.Values) string {
	return fmt.Sprintf("%s/%s/%s?%s", c.baseURL, url.PathEscape(c.repository), resource, params.Encode())
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.auth)

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", req.URL.Redacted())
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return &StatusError{
			URL:        req.URL.Redacted(),
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}

	return nil
}
