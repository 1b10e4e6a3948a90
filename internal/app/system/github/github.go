// Package github reads commit history from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/questhub/internal/domain/models"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// DefaultCommitLimit bounds a commit snapshot.
const DefaultCommitLimit = 30

var (
	// ErrBadRepoURL is returned by ParseRepoURL.
	ErrBadRepoURL = errors.New("not a GitHub repository URL")
	// ErrRepoNotFound is returned when GitHub answers 404.
	ErrRepoNotFound = errors.New("repository not found or not accessible")
)

var namePart = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseRepoURL extracts owner and repository from the URL forms people paste:
// https://github.com/o/r, with or without .git, trailing slash or extra
// path, and the SSH form git@github.com:o/r.git.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	var path string
	switch {
	case strings.HasPrefix(s, "git@github.com:"):
		path = strings.TrimPrefix(s, "git@github.com:")
	default:
		if !strings.Contains(s, "://") {
			s = "https://" + s
		}
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", ErrBadRepoURL
		}
		host := strings.ToLower(u.Hostname())
		if host != "github.com" && host != "www.github.com" {
			return "", "", ErrBadRepoURL
		}
		if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "git" && u.Scheme != "ssh" {
			return "", "", ErrBadRepoURL
		}
		path = u.Path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return "", "", ErrBadRepoURL
	}
	owner = parts[0]
	repo = strings.TrimSuffix(parts[1], ".git")
	if !namePart.MatchString(owner) || !namePart.MatchString(repo) || repo == "." || repo == ".." {
		return "", "", ErrBadRepoURL
	}
	return owner, repo, nil
}

// CanonicalURL is the browser URL of a repository.
func CanonicalURL(owner, repo string) string {
	return "https://github.com/" + owner + "/" + repo
}

// Client talks to the GitHub REST API. A token raises rate limits and
// allows private repositories.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a client. An empty token makes unauthenticated calls.
func New(token, baseURL string, timeout time.Duration) *Client {
	hc := &http.Client{}
	if token != "" {
		hc = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

type apiCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

// ListCommits fetches the newest commits of the default branch.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, limit int) ([]models.GitHubCommit, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultCommitLimit
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrRepoNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw []apiCommit
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode github commits: %w", err)
	}

	out := make([]models.GitHubCommit, 0, len(raw))
	for _, rc := range raw {
		author := rc.Commit.Author.Name
		if rc.Author != nil && rc.Author.Login != "" {
			author = rc.Author.Login
		}
		msg := rc.Commit.Message
		if i := strings.IndexByte(msg, '\n'); i >= 0 {
			msg = msg[:i]
		}
		out = append(out, models.GitHubCommit{
			SHA:     rc.SHA,
			Message: msg,
			Author:  author,
			Date:    rc.Commit.Author.Date.UTC(),
			URL:     rc.HTMLURL,
		})
	}
	return out, nil
}
