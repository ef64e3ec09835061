package model

import "time"

// Capacity categories tracked for every record. Values are in MW.
const (
	CategoryAccepted  = "accepted_registered_capacity"
	CategoryConnected = "connected_registered_capacity"
	CategoryMaxExport = "maximum_export_capacity"
	CategoryMaxImport = "maximum_import_capacity"
)

// DefaultCategoryFields maps each category to the datastore column it is read from.
func DefaultCategoryFields() map[string]string {
	return map[string]string{
		CategoryAccepted:  "accepted_to_connect_registered_capacity__mw_",
		CategoryConnected: "already_connected_registered_capacity__mw_",
		CategoryMaxExport: "maximum_export_capacity__mw_",
		CategoryMaxImport: "maximum_import_capacity__mw_",
	}
}

// CapacityStat summarises one category over the valid values seen.
// Average is Total/Count, and zero when Count is zero. Min and Max are zero
// when Count is zero.
type CapacityStat struct {
	Total   float64 `json:"total_mw"`
	Count   int     `json:"count_records"`
	Average float64 `json:"average_mw"`
	Min     float64 `json:"min_mw"`
	Max     float64 `json:"max_mw"`
}

// Headline holds the figures shown on the dashboard.
type Headline struct {
	AcceptedCapacity  float64 `json:"accepted_capacity"`
	ConnectedCapacity float64 `json:"connected_capacity"`
	MaxExportCapacity float64 `json:"max_export_capacity"`
	MaxImportCapacity float64 `json:"max_import_capacity"`
	GrandTotal        float64 `json:"grand_total"`
}

// CapacitySummary is the unit persisted to the snapshot file and served to
// the web layer.
type CapacitySummary struct {
	Totals      map[string]CapacityStat `json:"totals"`
	RecordCount int                     `json:"records_count"`
	GeneratedAt time.Time               `json:"last_updated"`
	GrandTotal  float64                 `json:"grand_total"`
	Summary     Headline                `json:"summary"`
}

// Total returns the total for category, or zero if it is not tracked.
func (s *CapacitySummary) Total(category string) float64 {
	if s == nil {
		return 0
	}
	return s.Totals[category].Total
}

// IsZero reports whether the summary carries no capacity at all.
func (s *CapacitySummary) IsZero() bool {
	return s == nil || (s.RecordCount == 0 && s.GrandTotal == 0)
}
