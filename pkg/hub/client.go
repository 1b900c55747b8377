package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/sca-tools/bdreport/pkg/types"
)

// StatusError reports a non-success HTTP status from the server.
// The status code is part of the error so callers can decide whether the
// condition is terminal (job creation) or retryable (report not ready yet).
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Op, e.StatusCode)
}

// Client is a minimal Black Duck REST client covering the operations the
// report pipeline needs. It is not a general client for the vendor API.
type Client struct {
	httpClient types.HTTPClientInterface
	tokens     oauth2.TokenSource
	logger     types.Logger
	baseURL    string
}

// New creates a Client from the resolved configuration.
// When httpClient is nil a real client is built from the config's timeout
// and certificate-trust settings.
func New(cfg *Config, httpClient types.HTTPClientInterface, logger types.Logger) *Client {
	if httpClient == nil {
		httpClient = types.NewRealHTTPClient(cfg.Timeout, cfg.TrustCert)
	}
	ts := &tokenSource{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
	}
	return &Client{
		httpClient: httpClient,
		tokens:     oauth2.ReuseTokenSource(nil, ts),
		logger:     logger,
		baseURL:    cfg.BaseURL,
	}
}

// BaseURL returns the server base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRequest builds a request carrying the current bearer token.
func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("error obtaining bearer token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	tok.SetAuthHeader(req)
	return req, nil
}

// CreateReport starts server-side report generation for a project version and
// returns the job location reference from the response header. Any status
// other than 201 is a terminal failure carrying the status code.
func (c *Client) CreateReport(ctx context.Context, versionID string, categories []string, format string) (string, error) {
	payload := map[string]any{
		"categories":   categories,
		"versionId":    versionID,
		"reportType":   "VERSION",
		"reportFormat": format,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error encoding report request: %w", err)
	}

	reqURL := c.baseURL + "/api/versions/" + versionID + "/reports"
	req, err := c.newRequest(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error creating report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", &StatusError{Op: "create report", StatusCode: resp.StatusCode}
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("create report response carried no Location header")
	}
	return location, nil
}

// DownloadReport fetches the generated report archive by report id.
// A non-200 status means the report is not ready yet and is returned as a
// StatusError so the downloader can keep polling.
func (c *Client) DownloadReport(ctx context.Context, reportID string) ([]byte, error) {
	reqURL := c.baseURL + "/api/reports/" + reportID + "/download"
	req, err := c.newRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/zip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "download report", StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading report body: %w", err)
	}
	return data, nil
}

// GetJSON performs an authenticated GET against an absolute URL and decodes
// the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "authenticated get", StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error parsing JSON response: %w", err)
	}
	return nil
}

// ProjectByName resolves a project by its exact name.
func (c *Client) ProjectByName(ctx context.Context, name string) (*types.Project, error) {
	reqURL := c.baseURL + "/api/projects?q=" + url.QueryEscape("name:"+name)
	var page types.ItemsPage[types.Project]
	if err := c.GetJSON(ctx, reqURL, &page); err != nil {
		return nil, fmt.Errorf("error looking up project %q: %w", name, err)
	}
	for i := range page.Items {
		if page.Items[i].Name == name {
			return &page.Items[i], nil
		}
	}
	return nil, fmt.Errorf("project %q not found", name)
}

// VersionByName resolves a version of a project by its exact version name.
func (c *Client) VersionByName(ctx context.Context, project *types.Project, name string) (*types.ProjectVersion, error) {
	versionsURL := project.Meta.Link("versions")
	if versionsURL == "" {
		versionsURL = project.Meta.Href + "/versions"
	}
	reqURL := versionsURL + "?q=" + url.QueryEscape("versionName:"+name)
	var page types.ItemsPage[types.ProjectVersion]
	if err := c.GetJSON(ctx, reqURL, &page); err != nil {
		return nil, fmt.Errorf("error looking up version %q of project %q: %w", name, project.Name, err)
	}
	for i := range page.Items {
		if page.Items[i].VersionName == name {
			return &page.Items[i], nil
		}
	}
	return nil, fmt.Errorf("version %q of project %q not found", name, project.Name)
}

// Projects lists up to limit projects, mainly used by the connectivity check.
func (c *Client) Projects(ctx context.Context, limit int) (*types.ItemsPage[types.Project], error) {
	reqURL := c.baseURL + "/api/projects?limit=" + strconv.Itoa(limit)
	var page types.ItemsPage[types.Project]
	if err := c.GetJSON(ctx, reqURL, &page); err != nil {
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	return &page, nil
}

// CurrentUser returns the authenticated user, proving the token works.
func (c *Client) CurrentUser(ctx context.Context) (*types.CurrentUser, error) {
	var user types.CurrentUser
	if err := c.GetJSON(ctx, c.baseURL+"/api/current-user", &user); err != nil {
		return nil, fmt.Errorf("error fetching current user: %w", err)
	}
	return &user, nil
}

// CurrentVersion returns the server's product version string.
func (c *Client) CurrentVersion(ctx context.Context) (string, error) {
	var payload struct {
		Version string `json:"version"`
	}
	if err := c.GetJSON(ctx, c.baseURL+"/api/current-version", &payload); err != nil {
		return "", fmt.Errorf("error fetching server version: %w", err)
	}
	return payload.Version, nil
}
