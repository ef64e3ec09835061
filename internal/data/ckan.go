package data

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

	"scotland-capacity/internal/metrics"
	"scotland-capacity/internal/model"

	"go.uber.org/zap"
)

const (
	searchPath = "/api/3/action/datastore_search"

	// maxResponseBytes bounds a single datastore response.
	maxResponseBytes = 64 << 20
)

// Query kinds, used for logging and metrics labels.
const (
	KindGeneral = "general"
	KindTerm    = "term"
	KindPage    = "page"
)

// CKANClient queries a CKAN datastore resource through datastore_search.
type CKANClient struct {
	BaseURL    string
	ResourceID string
	Client     *http.Client

	logger *zap.Logger
}

// NewCKANClient creates a new datastore client.
// If baseURL is empty, defaults to the SSEN open data portal.
func NewCKANClient(baseURL, resourceID string, timeout time.Duration, logger *zap.Logger) *CKANClient {
	if baseURL == "" {
		baseURL = "https://ckan-prod.sse.datopian.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CKANClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ResourceID: resourceID,
		Client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SearchParams defines one datastore_search call.
type SearchParams struct {
	Query   string         // free-text q=
	Limit   int            // rows requested
	Offset  int            // for pagination
	Filters map[string]any // exact-match field filters, sent as JSON
	Kind    string         // general, term or page
}

// SearchResult is the useful part of a datastore_search response.
type SearchResult struct {
	Records []model.RawRecord
	Total   int
}

// CKANError represents a failed datastore call.
type CKANError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *CKANError) Error() string {
	return e.Message
}

type searchResponse struct {
	Success *bool `json:"success"`
	Result  *struct {
		Records []model.RawRecord `json:"records"`
		Total   int               `json:"total"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"__type"`
	} `json:"error"`
}

// Search runs a single datastore_search request.
func (c *CKANClient) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if c.ResourceID == "" {
		return nil, &CKANError{Code: "MISSING_RESOURCE_ID", Message: "resource_id is required"}
	}
	if params.Limit < 0 || params.Offset < 0 {
		return nil, fmt.Errorf("limit and offset must be >= 0")
	}
	kind := params.Kind
	if kind == "" {
		kind = KindGeneral
	}

	u, err := c.searchURL(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	metrics.DatastoreRequestsTotal.WithLabelValues(kind).Inc()
	start := time.Now()
	resp, err := c.Client.Do(req)
	duration := time.Since(start)
	metrics.DatastoreDurationMs.Observe(float64(duration.Milliseconds()))
	if err != nil {
		c.logger.Warn("datastore request failed",
			zap.String("kind", kind), zap.String("q", params.Query), zap.Duration("duration", duration), zap.Error(err))
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("datastore response",
		zap.String("kind", kind),
		zap.String("q", params.Query),
		zap.Int("offset", params.Offset),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	if resp.StatusCode != http.StatusOK {
		code := "API_ERROR"
		switch resp.StatusCode {
		case http.StatusNotFound:
			code = "RESOURCE_NOT_FOUND"
		case http.StatusTooManyRequests:
			code = "RATE_LIMIT_EXCEEDED"
		case http.StatusForbidden, http.StatusUnauthorized:
			code = "FORBIDDEN"
		}
		return nil, &CKANError{
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    fmt.Sprintf("datastore returned status %d: %s", resp.StatusCode, resp.Status),
		}
	}

	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, &CKANError{
			StatusCode: resp.StatusCode,
			Code:       "MALFORMED_RESPONSE",
			Message:    fmt.Sprintf("failed to decode response: %v", err),
		}
	}
	if body.Success == nil || !*body.Success {
		msg := "datastore reported no success"
		if body.Error != nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return nil, &CKANError{StatusCode: resp.StatusCode, Code: "NOT_SUCCESSFUL", Message: msg}
	}

	out := &SearchResult{}
	if body.Result != nil {
		out.Records = body.Result.Records
		out.Total = body.Result.Total
	}
	return out, nil
}

func (c *CKANClient) searchURL(params SearchParams) (string, error) {
	base := c.BaseURL
	if !strings.HasSuffix(base, "datastore_search") {
		base += searchPath
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("resource_id", c.ResourceID)
	if params.Query != "" {
		q.Set("q", params.Query)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	if len(params.Filters) > 0 {
		raw, err := json.Marshal(params.Filters)
		if err != nil {
			return "", fmt.Errorf("invalid filters: %w", err)
		}
		q.Set("filters", string(raw))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
