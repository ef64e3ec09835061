package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"scotland-capacity/internal/api/models"
	"scotland-capacity/internal/model"
	"scotland-capacity/internal/pipeline"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// SummaryService is what the web layer needs from the pipeline.
type SummaryService interface {
	GetSummary(ctx context.Context, forceRefresh bool) *model.CapacitySummary
	Refresh(ctx context.Context) (*model.CapacitySummary, pipeline.RefreshReport)
	LastReport() pipeline.RefreshReport
	CacheInfo() (string, time.Time)
	Categories() map[string]string
}

// CapacityHandler handles the dashboard and capacity data requests
type CapacityHandler struct {
	svc SummaryService
}

// NewCapacityHandler creates a new capacity handler
func NewCapacityHandler(svc SummaryService) *CapacityHandler {
	return &CapacityHandler{svc: svc}
}

// Index handles GET /
func (h *CapacityHandler) Index(c *gin.Context) {
	data := h.svc.GetSummary(c.Request.Context(), false)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"data": h.dashboard(data),
	})
}

// RefreshPage handles GET /refresh
func (h *CapacityHandler) RefreshPage(c *gin.Context) {
	data := h.svc.GetSummary(c.Request.Context(), true)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"data":      h.dashboard(data),
		"refreshed": true,
	})
}

// Details handles GET /details
func (h *CapacityHandler) Details(c *gin.Context) {
	data := h.svc.GetSummary(c.Request.Context(), false)
	c.HTML(http.StatusOK, "details.html", gin.H{
		"data":       data,
		"categories": categoryInfos(data, h.svc.Categories()),
		"view":       h.dashboard(data),
	})
}

// Data handles GET /api/data
func (h *CapacityHandler) Data(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetSummary(c.Request.Context(), false))
}

// Refresh handles POST /api/refresh
func (h *CapacityHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	// The body is optional; a missing or empty body means defaults.
	_ = c.ShouldBind(&req)

	data, report := h.svc.Refresh(c.Request.Context())
	resp := models.RefreshResponse{
		Status:  "success",
		Message: "Data refreshed successfully",
		Data:    data,
	}
	if report.Source != pipeline.SourceLive {
		resp.Message = "Datastore unavailable, served " + report.Source + " data"
	}
	if req.IncludeReport {
		resp.Report = report
	}
	c.JSON(http.StatusOK, resp)
}

// Status handles GET /api/v1/status
func (h *CapacityHandler) Status(c *gin.Context) {
	source, at := h.svc.CacheInfo()
	c.JSON(http.StatusOK, gin.H{
		"cache_source":  source,
		"cached_at":     at,
		"last_refresh":  h.svc.LastReport(),
		"cache_present": source != "",
	})
}

// ListCategories handles GET /api/v1/categories
func (h *CapacityHandler) ListCategories(c *gin.Context) {
	data := h.svc.GetSummary(c.Request.Context(), false)
	infos := categoryInfos(data, h.svc.Categories())
	c.JSON(http.StatusOK, gin.H{
		"categories": infos,
		"count":      len(infos),
	})
}

func (h *CapacityHandler) dashboard(s *model.CapacitySummary) models.DashboardView {
	source, _ := h.svc.CacheInfo()
	return models.DashboardView{
		AcceptedCapacity:  FormatMW(s.Summary.AcceptedCapacity),
		ConnectedCapacity: FormatMW(s.Summary.ConnectedCapacity),
		MaxExportCapacity: FormatMW(s.Summary.MaxExportCapacity),
		MaxImportCapacity: FormatMW(s.Summary.MaxImportCapacity),
		GrandTotal:        FormatMW(s.GrandTotal),
		RecordsCount:      humanize.Comma(int64(s.RecordCount)),
		LastUpdated:       s.GeneratedAt.Format("2006-01-02 15:04:05"),
		Source:            source,
	}
}

func categoryInfos(s *model.CapacitySummary, fields map[string]string) []models.CategoryInfo {
	infos := make([]models.CategoryInfo, 0, len(fields))
	for name, field := range fields {
		st := s.Totals[name]
		infos = append(infos, models.CategoryInfo{
			Name:    name,
			Field:   field,
			TotalMW: st.Total,
			Count:   st.Count,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// FormatMW renders a capacity with thousands separators and two decimals.
func FormatMW(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
