// removebg-square - batch background removal with XMP provenance tagging
// Copyright (C) 2026  The bg-remove-wpd authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package removebg calls the remove.bg HTTP API.
package removebg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultBaseURL is the production remove.bg endpoint.
const DefaultBaseURL = "https://api.remove.bg/v1.0"

const defaultTimeout = 60 * time.Second

// An APIError is a non-200 response from the service.  The body is kept
// (truncated) for the quarantine note written by the batch pipeline.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("removebg: HTTP %d: %s", e.StatusCode, e.Body)
}

// Rejected reports whether the request was turned down by the service
// (HTTP 400-403: bad image, bad key, out of credits).  Rejections are
// per-file conditions; the batch quarantines the file and continues.
func (e *APIError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode <= 403
}

// A Client talks to the background-removal service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// An Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint.  Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New returns a client authenticating with the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Remove uploads the image at path and returns the cutout bytes (a PNG
// with transparent background).  The size argument is the service's
// "size" parameter, e.g. "auto", "preview" or "full".  Non-200 responses
// come back as *APIError.
func (c *Client) Remove(ctx context.Context, path, size string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("removebg: opening %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image_file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("removebg: building request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("removebg: reading %s: %w", path, err)
	}
	if size != "" {
		if err := mw.WriteField("size", size); err != nil {
			return nil, fmt.Errorf("removebg: building request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("removebg: building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/removebg", &body)
	if err != nil {
		return nil, fmt.Errorf("removebg: building request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("removebg: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       readBodySnippet(resp.Body),
		}
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("removebg: reading response: %w", err)
	}
	return out, nil
}

// readBodySnippet reads at most 2000 bytes of an error response body.
func readBodySnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 2000))
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(b))
}

// AsAPIError unwraps an *APIError from err, if there is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
