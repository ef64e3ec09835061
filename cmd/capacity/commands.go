package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"scotland-capacity/internal/capacity"
	"scotland-capacity/internal/data"
	"scotland-capacity/internal/loadshed"
	"scotland-capacity/internal/model"
	"scotland-capacity/internal/pipeline"
	"scotland-capacity/internal/region"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fetchRecordsOut string
	fetchCSVOut     string
	fetchJSON       bool

	summarizeData string
	summarizeCSV  string
	summarizeJSON bool

	kettleCount    int
	kettleKW       float64
	kettleCategory string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch live records, summarise them and write the snapshot",
	RunE:  runFetch,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarise a saved records file without touching the network",
	RunE:  runSummarize,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the persisted snapshot",
	RunE:  runSnapshot,
}

var kettleCmd = &cobra.Command{
	Use:   "kettle",
	Short: "What if this many kettles were switched on at once",
	RunE:  runKettle,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchRecordsOut, "out-records", "", "Also save the raw fetched records to this JSON file")
	fetchCmd.Flags().StringVar(&fetchCSVOut, "csv", "", "Write per-category stats to this CSV file")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "Print the summary as JSON")

	summarizeCmd.Flags().StringVar(&summarizeData, "data", "", "Records file (JSON array or datastore_search response)")
	summarizeCmd.Flags().StringVar(&summarizeCSV, "csv", "", "Write per-category stats to this CSV file")
	summarizeCmd.Flags().BoolVar(&summarizeJSON, "json", false, "Print the summary as JSON")
	_ = summarizeCmd.MarkFlagRequired("data")

	kettleCmd.Flags().IntVar(&kettleCount, "kettles", 1_000_000, "Number of kettles")
	kettleCmd.Flags().Float64Var(&kettleKW, "kw", loadshed.DefaultKettleKW, "Draw of one kettle in kW")
	kettleCmd.Flags().StringVar(&kettleCategory, "category", "", "Capacity category to test against (default: connected, else grand_total)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var fetcher pipeline.RecordFetcher = pipeline.NewFetcher(cfg, logger)
	if fetchRecordsOut != "" {
		fetcher = savingFetcher{RecordFetcher: fetcher, path: fetchRecordsOut}
	}

	svc := pipeline.New(fetcher, region.New(cfg.Region), pipeline.Options{
		MaxRecords:   cfg.Source.MaxRecords,
		Categories:   cfg.Categories,
		SnapshotPath: cfg.Snapshot.Path,
	}, logger)
	sum, report := svc.Refresh(ctx)

	if fetchCSVOut != "" {
		if err := capacity.WriteStatsCSV(fetchCSVOut, sum); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	if err := printSummary(cmd.OutOrStdout(), sum, report.Source, fetchJSON); err != nil {
		return err
	}
	if report.Source != pipeline.SourceLive {
		return fmt.Errorf("datastore unavailable (%s); served %s data", report.Error, report.Source)
	}
	return nil
}

// savingFetcher writes every successful fetch to path before handing it on.
type savingFetcher struct {
	pipeline.RecordFetcher
	path string
}

func (f savingFetcher) Fetch(ctx context.Context, maxRecords int) ([]model.RawRecord, data.FetchStats, error) {
	records, stats, err := f.RecordFetcher.Fetch(ctx, maxRecords)
	if err == nil {
		if serr := data.SaveRecordsJSON(f.path, records); serr != nil {
			logger.Warn("records not saved", zap.String("path", f.path), zap.Error(serr))
		} else {
			logger.Info("records saved", zap.String("path", f.path), zap.Int("records", len(records)))
		}
	}
	return records, stats, err
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	records, err := data.LoadRecordsJSON(summarizeData)
	if err != nil {
		return err
	}

	inRegion, fellBack := region.New(cfg.Region).Filter(records)
	if fellBack {
		logger.Warn("no records matched region, using full set", zap.Int("records", len(records)))
	}
	sum := capacity.Build(capacity.Aggregate(inRegion, cfg.Categories), len(inRegion))

	if summarizeCSV != "" {
		if err := capacity.WriteStatsCSV(summarizeCSV, sum); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	return printSummary(cmd.OutOrStdout(), sum, "file", summarizeJSON)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sum, err := capacity.LoadFallback(cfg.Snapshot.Path)
	if err != nil {
		return err
	}
	if sum == nil {
		return fmt.Errorf("no snapshot at %s", cfg.Snapshot.Path)
	}
	return printSummary(cmd.OutOrStdout(), sum, pipeline.SourceSnapshot, true)
}

func runKettle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sum, err := capacity.LoadFallback(cfg.Snapshot.Path)
	if err != nil {
		return err
	}
	if sum == nil {
		svc := pipeline.FromConfig(cfg, logger)
		sum = svc.GetSummary(cmd.Context(), false)
	}

	category, capMW := kettleCapacity(sum, kettleCategory)
	if category == "" {
		return errors.New("category is not tracked: " + kettleCategory)
	}
	res, err := loadshed.Calculate(kettleCount, kettleKW, capMW)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "kettles:      %s x %.1f kW = %s MW\n", humanize.Comma(int64(res.Kettles)), res.KettleKW, fmtMW(res.LoadMW))
	fmt.Fprintf(out, "capacity:     %s MW (%s)\n", fmtMW(res.CapacityMW), category)
	fmt.Fprintf(out, "load ratio:   %.1f%%\n", res.LoadRatio*100)
	fmt.Fprintf(out, "grid status:  %s\n", res.Tier)
	if res.KettlesToGo > 0 {
		fmt.Fprintf(out, "headroom:     %s more kettles\n", humanize.Comma(int64(res.KettlesToGo)))
	}
	return nil
}

func kettleCapacity(s *model.CapacitySummary, category string) (string, float64) {
	switch {
	case category == "grand_total":
		return category, s.GrandTotal
	case category != "":
		st, ok := s.Totals[category]
		if !ok {
			return "", 0
		}
		return category, st.Total
	case s.Total(model.CategoryConnected) > 0:
		return model.CategoryConnected, s.Total(model.CategoryConnected)
	default:
		return "grand_total", s.GrandTotal
	}
}

func printSummary(out io.Writer, s *model.CapacitySummary, source string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(out, "source:        %s\n", source)
	fmt.Fprintf(out, "last updated:  %s\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "records:       %s\n", humanize.Comma(int64(s.RecordCount)))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-32s %14s %8s %12s\n", "category", "total MW", "records", "average MW")
	for _, category := range capacity.Categories(s) {
		st := s.Totals[category]
		fmt.Fprintf(out, "%-32s %14s %8d %12s\n", category, fmtMW(st.Total), st.Count, fmtMW(st.Average))
	}
	fmt.Fprintf(out, "%-32s %14s\n", "grand_total", fmtMW(s.GrandTotal))
	return nil
}

func fmtMW(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
