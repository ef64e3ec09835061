package capacity

import (
	"math"

	"scotland-capacity/internal/model"
)

// FieldCounts tallies how a category's source field read across records.
type FieldCounts struct {
	Numeric     int
	Absent      int
	Unparseable int
}

// Aggregate computes a CapacityStat per category. fieldMap maps category to
// the record field it is read from. Absent and unparseable values are left
// out of every figure; a field that never appears yields a zero stat.
func Aggregate(records []model.RawRecord, fieldMap map[string]string) map[string]model.CapacityStat {
	out, _ := AggregateWithCounts(records, fieldMap)
	return out
}

// AggregateWithCounts is Aggregate plus per-category coercion tallies.
func AggregateWithCounts(records []model.RawRecord, fieldMap map[string]string) (map[string]model.CapacityStat, map[string]FieldCounts) {
	stats := make(map[string]model.CapacityStat, len(fieldMap))
	counts := make(map[string]FieldCounts, len(fieldMap))
	for category, field := range fieldMap {
		values := make([]float64, 0, len(records))
		var fc FieldCounts
		for _, r := range records {
			v, state := r.Number(field)
			switch state {
			case model.FieldNumeric:
				values = append(values, v)
				fc.Numeric++
			case model.FieldAbsent:
				fc.Absent++
			default:
				fc.Unparseable++
			}
		}
		stats[category] = ComputeStat(values)
		counts[category] = fc
	}
	return stats, counts
}

// ComputeStat summarises already-valid values.
func ComputeStat(values []float64) model.CapacityStat {
	s := model.CapacityStat{}
	if len(values) == 0 {
		return s
	}
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	for _, v := range values {
		s.Total += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	s.Count = len(values)
	s.Average = s.Total / float64(s.Count)
	s.Min = minv
	s.Max = maxv
	return s
}
