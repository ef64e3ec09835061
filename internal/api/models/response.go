package models

import (
	"scotland-capacity/internal/loadshed"
	"scotland-capacity/internal/model"
)

// RefreshResponse represents the response from a forced refresh
type RefreshResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Data    *model.CapacitySummary `json:"data"`
	Report  any                    `json:"report,omitempty"`
}

// CategoryInfo describes one tracked capacity category
type CategoryInfo struct {
	Name    string  `json:"name"`
	Field   string  `json:"field"`
	TotalMW float64 `json:"total_mw"`
	Count   int     `json:"count_records"`
}

// KettleResponse is the what-if result plus the capacity it was measured against
type KettleResponse struct {
	Category string          `json:"category"`
	Result   loadshed.Result `json:"result"`
}

// DashboardView is the formatted summary the HTML pages render
type DashboardView struct {
	AcceptedCapacity  string
	ConnectedCapacity string
	MaxExportCapacity string
	MaxImportCapacity string
	GrandTotal        string
	RecordsCount      string
	LastUpdated       string
	Source            string
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
