package models

// KettleRequest is the body of POST /api/v1/kettle
type KettleRequest struct {
	Kettles  int     `json:"kettles" form:"kettles" binding:"min=0"`
	KettleKW float64 `json:"kettle_kw,omitempty" form:"kettle_kw"` // default: 3.0
	// Category whose total is the capacity to test against.
	// Empty means connected capacity, falling back to the grand total.
	Category string `json:"category,omitempty" form:"category"`
}

// RefreshRequest is the optional body of POST /api/refresh
type RefreshRequest struct {
	IncludeReport bool `json:"include_report,omitempty" form:"include_report"`
}
