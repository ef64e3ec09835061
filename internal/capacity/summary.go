package capacity

import (
	"sort"
	"time"

	"scotland-capacity/internal/model"
)

// Build assembles a summary from per-category stats. GrandTotal is the sum of
// every category's Total, added in category name order so equal inputs give
// bit-identical totals. GeneratedAt is the wall clock at call time.
func Build(totals map[string]model.CapacityStat, recordCount int) *model.CapacitySummary {
	return BuildAt(totals, recordCount, time.Now())
}

// BuildAt is Build with an explicit timestamp.
func BuildAt(totals map[string]model.CapacityStat, recordCount int, at time.Time) *model.CapacitySummary {
	copied := make(map[string]model.CapacityStat, len(totals))
	names := make([]string, 0, len(totals))
	for category, stat := range totals {
		copied[category] = stat
		names = append(names, category)
	}
	sort.Strings(names)
	grand := 0.0
	for _, category := range names {
		grand += copied[category].Total
	}
	s := &model.CapacitySummary{
		Totals:      copied,
		RecordCount: recordCount,
		GeneratedAt: at,
		GrandTotal:  grand,
	}
	s.Summary = model.Headline{
		AcceptedCapacity:  copied[model.CategoryAccepted].Total,
		ConnectedCapacity: copied[model.CategoryConnected].Total,
		MaxExportCapacity: copied[model.CategoryMaxExport].Total,
		MaxImportCapacity: copied[model.CategoryMaxImport].Total,
		GrandTotal:        grand,
	}
	return s
}

// Empty is the all-zero summary used when neither the datastore nor a
// snapshot can supply one. Every configured category is present with a zero stat.
func Empty(categories map[string]string, at time.Time) *model.CapacitySummary {
	totals := make(map[string]model.CapacityStat, len(categories))
	for category := range categories {
		totals[category] = model.CapacityStat{}
	}
	return BuildAt(totals, 0, at)
}
