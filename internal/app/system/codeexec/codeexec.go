// Package codeexec runs student code on a Piston-compatible sandbox.
package codeexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxCodeBytes bounds the source sent to the sandbox.
const MaxCodeBytes = 64 << 10

var (
	// ErrUnsupportedLanguage is returned for languages outside the allow-list.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrDisabled is returned when no sandbox endpoint is configured.
	ErrDisabled = errors.New("code execution is not configured")
	// ErrTooLarge is returned when the code exceeds MaxCodeBytes.
	ErrTooLarge = errors.New("code is too large")
)

// languages maps accepted names and aliases to the sandbox runtime name.
var languages = map[string]string{
	"python":     "python",
	"python3":    "python",
	"py":         "python",
	"javascript": "javascript",
	"js":         "javascript",
	"node":       "javascript",
	"typescript": "typescript",
	"ts":         "typescript",
	"java":       "java",
	"c":          "c",
	"cpp":        "c++",
	"c++":        "c++",
	"go":         "go",
	"ruby":       "ruby",
}

// Language resolves a user-supplied language name.
func Language(name string) (string, bool) {
	l, ok := languages[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// Result is the outcome of one run.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Client calls the sandbox.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a client for endpoint, e.g. https://emkc.org/api/v2/piston.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
}

type pistonResponse struct {
	Message string `json:"message"`
	Run     struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Code   *int   `json:"code"`
		Signal string `json:"signal"`
	} `json:"run"`
	Compile *struct {
		Stderr string `json:"stderr"`
		Code   *int   `json:"code"`
	} `json:"compile"`
}

// Run executes code and returns its output.
func (c *Client) Run(ctx context.Context, code, language string) (Result, error) {
	if c == nil || c.endpoint == "" {
		return Result{}, ErrDisabled
	}
	lang, ok := Language(language)
	if !ok {
		return Result{}, ErrUnsupportedLanguage
	}
	if len(code) > MaxCodeBytes {
		return Result{}, ErrTooLarge
	}

	body, err := json.Marshal(pistonRequest{
		Language: lang,
		Version:  "*",
		Files:    []pistonFile{{Content: code}},
	})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/execute", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox request: %w", err)
	}
	defer resp.Body.Close()

	var pr pistonResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&pr); err != nil {
		return Result{}, fmt.Errorf("decode sandbox response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("sandbox returned %d: %s", resp.StatusCode, pr.Message)
	}

	// A failed compile never reaches the run stage.
	if pr.Compile != nil && pr.Compile.Code != nil && *pr.Compile.Code != 0 {
		return Result{Stderr: pr.Compile.Stderr, ExitCode: *pr.Compile.Code}, nil
	}
	res := Result{Stdout: pr.Run.Stdout, Stderr: pr.Run.Stderr}
	switch {
	case pr.Run.Code != nil:
		res.ExitCode = *pr.Run.Code
	case pr.Run.Signal != "":
		res.ExitCode = -1
	}
	return res, nil
}
