package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *CKANClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCKANClient(srv.URL, "res-1", 5*time.Second, zap.NewNop())
}

func TestSearchSuccess(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, searchPath, r.URL.Path)
		got = map[string]string{
			"resource_id": r.URL.Query().Get("resource_id"),
			"q":           r.URL.Query().Get("q"),
			"limit":       r.URL.Query().Get("limit"),
			"offset":      r.URL.Query().Get("offset"),
			"filters":     r.URL.Query().Get("filters"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "result": {"total": 2, "records": [
			{"Postcode": "EH1 1AA", "maximum_export_capacity__mw_": "12.5"},
			{"Postcode": "G1 1AA", "maximum_export_capacity__mw_": 3}
		]}}`))
	})

	res, err := client.Search(context.Background(), SearchParams{
		Query:   "Edinburgh",
		Limit:   500,
		Offset:  1000,
		Filters: map[string]any{"Country": "Scotland"},
		Kind:    KindTerm,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "EH1 1AA", res.Records[0]["Postcode"])

	assert.Equal(t, "res-1", got["resource_id"])
	assert.Equal(t, "Edinburgh", got["q"])
	assert.Equal(t, "500", got["limit"])
	assert.Equal(t, "1000", got["offset"])
	var filters map[string]any
	require.NoError(t, json.Unmarshal([]byte(got["filters"]), &filters))
	assert.Equal(t, "Scotland", filters["Country"])
}

func TestSearchOmitsEmptyParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("q"))
		assert.False(t, q.Has("offset"))
		assert.False(t, q.Has("filters"))
		_, _ = w.Write([]byte(`{"success": true, "result": {"records": []}}`))
	})

	res, err := client.Search(context.Background(), SearchParams{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestSearchFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{"success false", http.StatusOK, `{"success": false, "error": {"message": "bad query"}}`, "NOT_SUCCESSFUL"},
		{"success missing", http.StatusOK, `{"result": {"records": [{"a": 1}]}}`, "NOT_SUCCESSFUL"},
		{"malformed body", http.StatusOK, `<html>oops</html>`, "MALFORMED_RESPONSE"},
		{"server error", http.StatusInternalServerError, `{}`, "API_ERROR"},
		{"not found", http.StatusNotFound, `{}`, "RESOURCE_NOT_FOUND"},
		{"rate limited", http.StatusTooManyRequests, `{}`, "RATE_LIMIT_EXCEEDED"},
		{"forbidden", http.StatusForbidden, `{}`, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Search(context.Background(), SearchParams{Limit: 1})
			require.Error(t, err)

			var ckanErr *CKANError
			require.ErrorAs(t, err, &ckanErr)
			assert.Equal(t, tt.code, ckanErr.Code)
		})
	}
}

func TestSearchErrorMessageFromBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": {"message": "resource not in datastore"}}`))
	})
	_, err := client.Search(context.Background(), SearchParams{})
	require.Error(t, err)
	assert.Equal(t, "resource not in datastore", err.Error())
}

func TestSearchRequiresResourceID(t *testing.T) {
	client := NewCKANClient("http://127.0.0.1:1", "", time.Second, nil)
	_, err := client.Search(context.Background(), SearchParams{})

	var ckanErr *CKANError
	require.ErrorAs(t, err, &ckanErr)
	assert.Equal(t, "MISSING_RESOURCE_ID", ckanErr.Code)
}

func TestSearchHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, SearchParams{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCKANClientDefaults(t *testing.T) {
	c := NewCKANClient("", "r", 0, nil)
	assert.Equal(t, "https://ckan-prod.sse.datopian.com", c.BaseURL)
	assert.Equal(t, 30*time.Second, c.Client.Timeout)

	c = NewCKANClient("https://example.org/", "r", time.Second, nil)
	assert.Equal(t, "https://example.org", c.BaseURL)
}
