package capacity

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"scotland-capacity/internal/model"
)

// WriteStatsCSV writes one row per category, sorted by name, followed by a
// grand total row.
func WriteStatsCSV(path string, s *model.CapacitySummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeStatsCSV(f, s)
}

func EncodeStatsCSV(out io.Writer, s *model.CapacitySummary) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{
		"category",
		"total_mw",
		"count_records",
		"average_mw",
		"min_mw",
		"max_mw",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, category := range Categories(s) {
		st := s.Totals[category]
		row := []string{
			category,
			fmtFloat(st.Total),
			strconv.Itoa(st.Count),
			fmtFloat(st.Average),
			fmtFloat(st.Min),
			fmtFloat(st.Max),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	if err := w.Write([]string{"grand_total", fmtFloat(s.GrandTotal), strconv.Itoa(s.RecordCount), "", "", ""}); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

// Categories returns the summary's category names in sorted order.
func Categories(s *model.CapacitySummary) []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Totals))
	for name := range s.Totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
