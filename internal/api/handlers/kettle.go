package handlers

import (
	"net/http"

	"scotland-capacity/internal/api/models"
	"scotland-capacity/internal/loadshed"
	"scotland-capacity/internal/model"

	"github.com/gin-gonic/gin"
)

// KettleHandler handles the load-shedding what-if calculator
type KettleHandler struct {
	svc SummaryService
}

// NewKettleHandler creates a new kettle handler
func NewKettleHandler(svc SummaryService) *KettleHandler {
	return &KettleHandler{svc: svc}
}

// Calculate handles POST /api/v1/kettle
func (h *KettleHandler) Calculate(c *gin.Context) {
	var req models.KettleRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	data := h.svc.GetSummary(c.Request.Context(), false)
	category, capacityMW, ok := capacityFor(data, req.Category)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "UNKNOWN_CATEGORY",
				Message: "category is not tracked: " + req.Category,
			},
		})
		return
	}

	res, err := loadshed.Calculate(req.Kettles, req.KettleKW, capacityMW)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.KettleResponse{Category: category, Result: res})
}

// capacityFor picks the capacity the load is measured against. With no
// category it prefers connected capacity and falls back to the grand total.
func capacityFor(s *model.CapacitySummary, category string) (string, float64, bool) {
	if category == "grand_total" {
		return category, s.GrandTotal, true
	}
	if category != "" {
		st, ok := s.Totals[category]
		return category, st.Total, ok
	}
	if v := s.Total(model.CategoryConnected); v > 0 {
		return model.CategoryConnected, v, true
	}
	return "grand_total", s.GrandTotal, true
}
