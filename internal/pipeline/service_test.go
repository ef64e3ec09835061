package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scotland-capacity/internal/capacity"
	"scotland-capacity/internal/config"
	"scotland-capacity/internal/data"
	"scotland-capacity/internal/model"
	"scotland-capacity/internal/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu      sync.Mutex
	records []model.RawRecord
	err     error
	calls   int
	terms   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, maxRecords int) ([]model.RawRecord, data.FetchStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, data.FetchStats{}, err
	}
	if f.err != nil {
		return nil, data.FetchStats{Requests: 3, Failures: 3}, f.err
	}
	return f.records, data.FetchStats{Requests: 3, Distinct: len(f.records)}, nil
}

func (f *fakeFetcher) SetTerms(terms []string) {
	f.mu.Lock()
	f.terms = terms
	f.mu.Unlock()
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var categories = map[string]string{
	model.CategoryAccepted:  "accepted",
	model.CategoryConnected: "connected",
}

func scottishRecords() []model.RawRecord {
	return []model.RawRecord{
		{"Postcode": "EH3 8DF", "accepted": "10", "connected": "5"},
		{"Postcode": "G1 1AA", "accepted": "1,000", "connected": "N/A"},
		{"Postcode": "LS1 4AP", "accepted": "999", "connected": "999"},
	}
}

func newService(t *testing.T, f *fakeFetcher) (*Service, string) {
	t.Helper()
	snap := filepath.Join(t.TempDir(), "data_cache.json")
	svc := New(f, region.New(config.DefaultRegion()), Options{
		MaxRecords:   100,
		Categories:   categories,
		SnapshotPath: snap,
	}, zap.NewNop())
	return svc, snap
}

func TestGetSummaryLive(t *testing.T) {
	f := &fakeFetcher{records: scottishRecords()}
	svc, snap := newService(t, f)

	sum := svc.GetSummary(context.Background(), false)
	require.NotNil(t, sum)
	assert.Equal(t, 2, sum.RecordCount, "English record is filtered out")
	assert.Equal(t, 1010.0, sum.Totals[model.CategoryAccepted].Total)
	assert.Equal(t, 5.0, sum.Totals[model.CategoryConnected].Total)
	assert.Equal(t, 1, sum.Totals[model.CategoryConnected].Count)
	assert.Equal(t, 1015.0, sum.GrandTotal)

	report := svc.LastReport()
	assert.Equal(t, SourceLive, report.Source)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.InRegion)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, capacity.FieldCounts{Numeric: 1, Unparseable: 1}, report.Fields[model.CategoryConnected])

	persisted, err := capacity.LoadFallback(snap)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, sum.GrandTotal, persisted.GrandTotal)

	source, _ := svc.CacheInfo()
	assert.Equal(t, SourceLive, source)
}

func TestGetSummaryUsesCache(t *testing.T) {
	f := &fakeFetcher{records: scottishRecords()}
	svc, _ := newService(t, f)

	first := svc.GetSummary(context.Background(), false)
	second := svc.GetSummary(context.Background(), false)
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.callCount())

	forced := svc.GetSummary(context.Background(), true)
	assert.Equal(t, 2, f.callCount())
	assert.Equal(t, first.GrandTotal, forced.GrandTotal)
	assert.Equal(t, first.Totals, forced.Totals, "same input gives the same figures")
}

func TestCancelledCallerLeavesCacheCold(t *testing.T) {
	f := &fakeFetcher{records: scottishRecords()}
	svc, _ := newService(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gone := svc.GetSummary(ctx, false)
	require.NotNil(t, gone)
	assert.Zero(t, gone.GrandTotal)

	source, _ := svc.CacheInfo()
	assert.Empty(t, source, "an abandoned refresh is not cached")
	assert.Empty(t, svc.LastReport().ID)

	sum := svc.GetSummary(context.Background(), false)
	assert.Equal(t, 1015.0, sum.GrandTotal)
	assert.Equal(t, 2, sum.RecordCount)
	assert.Equal(t, 2, f.callCount())
	assert.Equal(t, SourceLive, svc.LastReport().Source)
}

func TestCancelledCallerKeepsWarmCache(t *testing.T) {
	f := &fakeFetcher{records: scottishRecords()}
	svc, _ := newService(t, f)
	warm := svc.GetSummary(context.Background(), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, report := svc.Refresh(ctx)
	assert.NotEqual(t, SourceLive, report.Source)

	assert.Same(t, warm, svc.GetSummary(context.Background(), false))
}

func TestGetSummarySnapshotFallback(t *testing.T) {
	f := &fakeFetcher{err: errors.New("network down")}
	svc, snap := newService(t, f)

	saved := capacity.BuildAt(map[string]model.CapacityStat{
		model.CategoryAccepted: {Total: 77, Count: 1, Average: 77, Min: 77, Max: 77},
	}, 1, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, capacity.Persist(saved, snap))

	sum := svc.GetSummary(context.Background(), false)
	assert.Equal(t, 77.0, sum.GrandTotal)
	assert.True(t, saved.GeneratedAt.Equal(sum.GeneratedAt), "snapshot keeps its own timestamp")

	report := svc.LastReport()
	assert.Equal(t, SourceSnapshot, report.Source)
	assert.Equal(t, "network down", report.Error)
	assert.Equal(t, 3, report.Failures)
}

func TestGetSummaryZeroWhenNothingAvailable(t *testing.T) {
	f := &fakeFetcher{err: data.ErrNoRecords}
	svc, snap := newService(t, f)

	sum := svc.GetSummary(context.Background(), false)
	require.NotNil(t, sum)
	assert.Zero(t, sum.GrandTotal)
	assert.Zero(t, sum.RecordCount)
	assert.Len(t, sum.Totals, len(categories))
	assert.Equal(t, SourceEmpty, svc.LastReport().Source)

	_, err := os.Stat(snap)
	assert.True(t, os.IsNotExist(err), "fallback summaries are not persisted")
}

func TestGetSummaryCorruptSnapshotTreatedAsMissing(t *testing.T) {
	f := &fakeFetcher{err: errors.New("timeout")}
	svc, snap := newService(t, f)
	require.NoError(t, os.WriteFile(snap, []byte("{{{"), 0644))

	sum := svc.GetSummary(context.Background(), false)
	assert.Zero(t, sum.GrandTotal)
	assert.Equal(t, SourceEmpty, svc.LastReport().Source)
}

func TestEmptyFetchWithoutErrorFallsBack(t *testing.T) {
	f := &fakeFetcher{}
	svc, _ := newService(t, f)

	sum, report := svc.Refresh(context.Background())
	assert.Zero(t, sum.GrandTotal)
	assert.Equal(t, SourceEmpty, report.Source)
	assert.Equal(t, data.ErrNoRecords.Error(), report.Error)
}

func TestRegionFallbackUsesAllRecords(t *testing.T) {
	f := &fakeFetcher{records: []model.RawRecord{
		{"Postcode": "LS1 4AP", "accepted": "3"},
		{"Postcode": "M1 1AA", "accepted": "4"},
	}}
	svc, _ := newService(t, f)

	sum, report := svc.Refresh(context.Background())
	assert.True(t, report.FellBack)
	assert.Equal(t, 2, sum.RecordCount)
	assert.Equal(t, 7.0, sum.GrandTotal)
}

func TestConcurrentGetSummaryRefreshesOnce(t *testing.T) {
	f := &fakeFetcher{records: scottishRecords()}
	svc, _ := newService(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, svc.GetSummary(context.Background(), false))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.callCount())
}

func TestSetRegion(t *testing.T) {
	f := &fakeFetcher{records: scottishRecords()}
	svc, _ := newService(t, f)

	svc.SetRegion(config.RegionConfig{
		Name:             "leeds",
		SearchTerms:      []string{"Leeds"},
		PostcodePrefixes: []string{"LS"},
		PostcodeField:    "Postcode",
	})
	assert.Equal(t, []string{"Leeds"}, f.terms)

	sum, _ := svc.Refresh(context.Background())
	assert.Equal(t, 1, sum.RecordCount)
	assert.Equal(t, 1998.0, sum.GrandTotal)
}

func TestCategoriesIsACopy(t *testing.T) {
	svc, _ := newService(t, &fakeFetcher{})
	c := svc.Categories()
	c["extra"] = "x"
	assert.NotContains(t, svc.Categories(), "extra")
}

func TestNewDefaultsCategories(t *testing.T) {
	svc := New(&fakeFetcher{}, region.New(config.DefaultRegion()), Options{}, nil)
	assert.Equal(t, model.DefaultCategoryFields(), svc.Categories())
}
