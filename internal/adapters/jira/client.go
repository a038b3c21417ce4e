/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "errors"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/config"
)

type Client struct {
    baseURL string
    email   string
    token   string
    basic   string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.JiraBaseURL,
        email:   cfg.JiraEmail,
        token:   cfg.JiraAPIToken,
        basic:   getenvBasic(),
        http:    &http.Client{ Timeout: cfg.HTTPTimeout },
        log:     log,
    }
}

// getenvBasic reads JIRA_BASIC_AUTH from environment if present (format: user:pass base64), optional
func getenvBasic() string {
    v := ""
    if s := strings.TrimSpace(os.Getenv("JIRA_BASIC_AUTH")); s != "" { v = s }
    return v
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if q != nil && len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) authorize(req *http.Request) {
    if c.email != "" && c.token != "" {
        req.SetBasicAuth(c.email, c.token)
    } else if c.basic != "" {
        req.Header.Set("Authorization", "Basic "+c.basic)
    }
}

func (c *Client) doJSON(ctx context.Context, u string) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
        if err != nil { return nil, err }
        req.Header.Set("Accept", "application/json")
        c.authorize(req)
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            defer resp.Body.Close()
            if resp.StatusCode >= 300 {
                b, _ := io.ReadAll(resp.Body)
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                var out map[string]any
                if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, err }
                return out, nil
            }
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

func pageQuery(startAt, max int) url.Values {
    q := url.Values{}
    if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    return q
}

// Boards lists Jira Software boards (Agile API).
func (c *Client) Boards(ctx context.Context, startAt, max int) (map[string]any, error) {
    u := c.apiURL("/rest/agile/1.0/board", pageQuery(startAt, max))
    return c.doJSON(ctx, u)
}

// BoardsForProject lists the boards attached to one project key.
func (c *Client) BoardsForProject(ctx context.Context, projectKey string, startAt, max int) (map[string]any, error) {
    if projectKey == "" { return nil, errors.New("jira: empty project key") }
    q := pageQuery(startAt, max)
    q.Set("projectKeyOrId", projectKey)
    u := c.apiURL("/rest/agile/1.0/board", q)
    return c.doJSON(ctx, u)
}

// Sprints lists the sprints of a board.
func (c *Client) Sprints(ctx context.Context, boardID int64, startAt, max int) (map[string]any, error) {
    if boardID <= 0 { return nil, errors.New("jira: invalid board id") }
    path := "/rest/agile/1.0/board/" + strconv.FormatInt(boardID, 10) + "/sprint"
    u := c.apiURL(path, pageQuery(startAt, max))
    return c.doJSON(ctx, u)
}

// SprintIssues lists the issues of a sprint with full fields.
func (c *Client) SprintIssues(ctx context.Context, sprintID int64, startAt, max int) (map[string]any, error) {
    if sprintID <= 0 { return nil, errors.New("jira: invalid sprint id") }
    q := pageQuery(startAt, max)
    q.Set("fields", "*all")
    path := "/rest/agile/1.0/sprint/" + strconv.FormatInt(sprintID, 10) + "/issue"
    u := c.apiURL(path, q)
    return c.doJSON(ctx, u)
}

// BoardIssues lists issues directly on a board, for boards without sprints.
func (c *Client) BoardIssues(ctx context.Context, boardID int64, startAt, max int) (map[string]any, error) {
    if boardID <= 0 { return nil, errors.New("jira: invalid board id") }
    q := pageQuery(startAt, max)
    q.Set("fields", "*all")
    path := "/rest/agile/1.0/board/" + strconv.FormatInt(boardID, 10) + "/issue"
    u := c.apiURL(path, q)
    return c.doJSON(ctx, u)
}

// Download streams an attachment binary. The content URL comes straight from
// the issue payload and is already absolute. Non-success status is a hard
// failure; there is no retry for binaries.
func (c *Client) Download(ctx context.Context, contentURL string) (io.ReadCloser, error) {
    if contentURL == "" { return nil, errors.New("jira: empty content url") }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
    if err != nil { return nil, err }
    req.Header.Set("Accept", "*/*")
    c.authorize(req)
    resp, err := c.http.Do(req)
    if err != nil { return nil, err }
    if resp.StatusCode >= 300 {
        b, _ := io.ReadAll(resp.Body)
        resp.Body.Close()
        return nil, fmt.Errorf("jira download status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
    }
    return resp.Body, nil
}
