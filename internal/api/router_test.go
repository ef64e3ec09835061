package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"scotland-capacity/internal/api/middleware"
	"scotland-capacity/internal/api/models"
	"scotland-capacity/internal/capacity"
	"scotland-capacity/internal/loadshed"
	"scotland-capacity/internal/model"
	"scotland-capacity/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	mu        sync.Mutex
	summary   *model.CapacitySummary
	source    string
	forced    int
	refreshes int
}

func (f *fakeService) GetSummary(ctx context.Context, forceRefresh bool) *model.CapacitySummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	if forceRefresh {
		f.forced++
	}
	return f.summary
}

func (f *fakeService) Refresh(ctx context.Context) (*model.CapacitySummary, pipeline.RefreshReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.summary, pipeline.RefreshReport{ID: "r-1", Source: f.source}
}

func (f *fakeService) LastReport() pipeline.RefreshReport {
	return pipeline.RefreshReport{ID: "r-1", Source: f.source}
}

func (f *fakeService) CacheInfo() (string, time.Time) {
	return f.source, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
}

func (f *fakeService) Categories() map[string]string {
	return model.DefaultCategoryFields()
}

func newFakeService(source string) *fakeService {
	sum := capacity.BuildAt(map[string]model.CapacityStat{
		model.CategoryAccepted:  {Total: 12345.678, Count: 3, Average: 4115.226},
		model.CategoryConnected: {Total: 1000, Count: 2, Average: 500},
		model.CategoryMaxExport: {Total: 0.5, Count: 1, Average: 0.5},
		model.CategoryMaxImport: {},
	}, 1234, time.Date(2025, 5, 1, 8, 15, 0, 0, time.UTC))
	return &fakeService{summary: sum, source: source}
}

func newTestRouter(t *testing.T, svc *fakeService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r, err := NewRouter(svc, zap.NewNop(), "")
	require.NoError(t, err)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))
	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIndexRendersFormattedFigures(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))
	w := do(r, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "12,345.68 MW")
	assert.Contains(t, body, "1,000.00 MW")
	assert.Contains(t, body, "1,234")
	assert.Contains(t, body, "2025-05-01 08:15:00")
	assert.NotContains(t, body, "Data refreshed.")
}

func TestRefreshPageForcesRefresh(t *testing.T) {
	svc := newFakeService(pipeline.SourceLive)
	r := newTestRouter(t, svc)
	w := do(r, http.MethodGet, "/refresh", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Data refreshed.")
	assert.Equal(t, 1, svc.forced)
}

func TestDetailsPage(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))
	w := do(r, http.MethodGet, "/details", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), model.CategoryMaxExport)
}

func TestAPIData(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))
	w := do(r, http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got model.CapacitySummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1234, got.RecordCount)
	assert.InDelta(t, 13346.178, got.GrandTotal, 1e-6)
	assert.Equal(t, 1000.0, got.Summary.ConnectedCapacity)
}

func TestAPIRefresh(t *testing.T) {
	svc := newFakeService(pipeline.SourceLive)
	r := newTestRouter(t, svc)

	w := do(r, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "Data refreshed successfully", resp["message"])
	assert.NotNil(t, resp["data"])
	assert.NotContains(t, resp, "report")
	assert.Equal(t, 1, svc.refreshes)

	w = do(r, http.MethodPost, "/api/refresh", `{"include_report": true}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "report")
}

func TestAPIRefreshReportsFallback(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceSnapshot))
	w := do(r, http.MethodPost, "/api/refresh", "")

	var resp models.RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, resp.Message, "snapshot")
}

func TestCategories(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))
	w := do(r, http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Categories []models.CategoryInfo `json:"categories"`
		Count      int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Count)
	assert.Equal(t, model.CategoryAccepted, resp.Categories[0].Name)
	assert.Equal(t, 12345.678, resp.Categories[0].TotalMW)
}

func TestStatus(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceEmpty))
	w := do(r, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, pipeline.SourceEmpty, resp["cache_source"])
	assert.Equal(t, true, resp["cache_present"])
}

func TestKettle(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))

	w := do(r, http.MethodPost, "/api/v1/kettle", `{"kettles": 100000}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.KettleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.CategoryConnected, resp.Category)
	assert.Equal(t, 1000.0, resp.Result.CapacityMW)
	assert.Equal(t, loadshed.TierStable, resp.Result.Tier)

	w = do(r, http.MethodPost, "/api/v1/kettle", `{"kettles": 1000000, "category": "grand_total"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "grand_total", resp.Category)
	assert.Equal(t, loadshed.TierStable, resp.Result.Tier)
}

func TestKettleErrors(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))

	tests := []struct {
		name string
		body string
		code string
	}{
		{"negative kettles", `{"kettles": -5}`, "INVALID_REQUEST"},
		{"negative kw", `{"kettles": 5, "kettle_kw": -1}`, "INVALID_REQUEST"},
		{"unknown category", `{"kettles": 5, "category": "wind"}`, "UNKNOWN_CATEGORY"},
		{"bad json", `{"kettles":`, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/kettle", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestNotFound(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))

	w := do(r, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	w = do(r, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "404 page not found", w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))

	req := httptest.NewRequest(http.MethodOptions, "/api/data", nil)
	req.Header.Set("Origin", "http://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, newFakeService(pipeline.SourceLive))
	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "capacity_")
}

func TestPanicRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(zap.NewNop()))
	r.GET("/api/boom", func(c *gin.Context) { panic("kaboom") })
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := do(r, http.MethodGet, "/api/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, "kaboom", resp.Error.Message)

	w = do(r, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", w.Body.String())
}
