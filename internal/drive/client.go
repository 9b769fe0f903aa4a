// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package drive implements a minimal client for the Google Drive v3 files
// listing API. Only the listing surface the scan orchestrator consumes is
// covered.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/VT-TyR/drivemind/internal/models"
)

const (
	// DefaultBaseURL is the Google Drive v3 API endpoint.
	DefaultBaseURL = "https://www.googleapis.com/drive/v3"

	// MaxPageSize is the listing API's per-page ceiling.
	MaxPageSize = 1000

	defaultRequestsPerSecond = 10
	defaultRequestTimeout    = 30 * time.Second

	listFields = "nextPageToken, files(id, name, mimeType, size, modifiedTime, parents, md5Checksum, version)"
)

// File is one remote entry as consumed by the orchestrator.
type File struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64
	ModifiedTime time.Time
	ParentID     string
	Checksum     string
	Version      int64
}

// FileList is one page of the paginated listing.
type FileList struct {
	Files         []File
	NextPageToken string
}

// ListParams controls one page fetch.
type ListParams struct {
	PageSize  int
	PageToken string
	Query     string
}

// Client talks to the Drive listing API with client-side rate limiting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit overrides the client-side request rate.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// NewClient creates a Drive client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire types: the Drive API serializes size and version as strings.
type fileResource struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	Size         string   `json:"size"`
	ModifiedTime string   `json:"modifiedTime"`
	Parents      []string `json:"parents"`
	MD5Checksum  string   `json:"md5Checksum"`
	Version      string   `json:"version"`
}

type fileListResponse struct {
	Files         []fileResource `json:"files"`
	NextPageToken string         `json:"nextPageToken"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// ListPage fetches one page of the file listing.
func (c *Client) ListPage(ctx context.Context, accessToken string, params ListParams) (*FileList, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	pageSize := params.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("fields", listFields)
	if params.PageToken != "" {
		q.Set("pageToken", params.PageToken)
	}
	if params.Query != "" {
		q.Set("q", params.Query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read list response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var wire fileListResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}

	list := &FileList{NextPageToken: wire.NextPageToken}
	for _, res := range wire.Files {
		list.Files = append(list.Files, res.toFile())
	}
	return list, nil
}

func (r fileResource) toFile() File {
	f := File{
		ID:       r.ID,
		Name:     r.Name,
		MimeType: r.MimeType,
		Checksum: r.MD5Checksum,
	}
	if r.Size != "" {
		if size, err := strconv.ParseInt(r.Size, 10, 64); err == nil {
			f.Size = size
		}
	}
	if r.Version != "" {
		if version, err := strconv.ParseInt(r.Version, 10, 64); err == nil {
			f.Version = version
		}
	}
	if r.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, r.ModifiedTime); err == nil {
			f.ModifiedTime = t
		} else {
			log.Debug().Str("fileID", r.ID).Str("modifiedTime", r.ModifiedTime).Msg("drive: unparseable modifiedTime")
		}
	}
	if len(r.Parents) > 0 {
		f.ParentID = r.Parents[0]
	}
	return f
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var wire apiErrorResponse
	if err := json.Unmarshal(body, &wire); err == nil {
		apiErr.Message = wire.Error.Message
		if len(wire.Error.Errors) > 0 {
			apiErr.Reason = wire.Error.Errors[0].Reason
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}

// BuildListQuery translates a scan config into a Drive query expression.
func BuildListQuery(config models.ScanConfig) string {
	var clauses []string

	if !config.IncludeTrashed {
		clauses = append(clauses, "trashed = false")
	}
	if config.RootFolderID != "" && config.MaxDepth == 1 {
		clauses = append(clauses, fmt.Sprintf("'%s' in parents", config.RootFolderID))
	}
	if len(config.FileTypes) > 0 {
		var types []string
		for _, t := range config.FileTypes {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, fmt.Sprintf("mimeType contains '%s'", t))
			}
		}
		if len(types) > 0 {
			clauses = append(clauses, "("+strings.Join(types, " or ")+")")
		}
	}

	return strings.Join(clauses, " and ")
}
