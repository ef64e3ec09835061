// Package pipeline runs fetch, classify, aggregate and build as one cycle and
// owns the process-wide summary cache the web layer reads from.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"scotland-capacity/internal/capacity"
	"scotland-capacity/internal/config"
	"scotland-capacity/internal/data"
	"scotland-capacity/internal/metrics"
	"scotland-capacity/internal/model"
	"scotland-capacity/internal/region"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Where a summary came from.
const (
	SourceLive     = "live"
	SourceSnapshot = "snapshot"
	SourceEmpty    = "empty"
)

// RecordFetcher is the part of data.Fetcher the service uses.
type RecordFetcher interface {
	Fetch(ctx context.Context, maxRecords int) ([]model.RawRecord, data.FetchStats, error)
	SetTerms(terms []string)
}

type Options struct {
	MaxRecords   int
	Categories   map[string]string // category -> record field
	SnapshotPath string
	CacheTTL     time.Duration
}

// RefreshReport describes the last refresh cycle.
type RefreshReport struct {
	ID        string                          `json:"id"`
	Source    string                          `json:"source"`
	Fetched   int                             `json:"fetched"`
	InRegion  int                             `json:"in_region"`
	FellBack  bool                            `json:"region_fallback"`
	Requests  int                             `json:"requests"`
	Failures  int                             `json:"failures"`
	Duration  time.Duration                   `json:"duration_ns"`
	StartedAt time.Time                       `json:"started_at"`
	Error     string                          `json:"error,omitempty"`
	Fields    map[string]capacity.FieldCounts `json:"fields,omitempty"`
}

// Service is the explicit handle for the summary cache and the pipeline
// behind it. GetSummary is the only call the web layer needs.
type Service struct {
	fetcher RecordFetcher
	opts    Options
	cache   *data.SummaryCache
	logger  *zap.Logger

	classMu    sync.RWMutex
	classifier *region.Classifier

	// refreshMu serialises refresh cycles; the cache lock only guards the swap.
	refreshMu sync.Mutex

	reportMu   sync.RWMutex
	lastReport RefreshReport

	now func() time.Time
}

func New(fetcher RecordFetcher, classifier *region.Classifier, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Categories == nil {
		opts.Categories = model.DefaultCategoryFields()
	}
	return &Service{
		fetcher:    fetcher,
		opts:       opts,
		cache:      data.NewSummaryCache(opts.CacheTTL),
		logger:     logger,
		classifier: classifier,
		now:        time.Now,
	}
}

// GetSummary returns the cached summary, running a refresh first when the
// cache is cold or forceRefresh is set. It always returns a summary: live
// data, else the last snapshot, else an all-zero summary. A fallback produced
// because ctx was cancelled goes back to that caller only and is not cached.
func (s *Service) GetSummary(ctx context.Context, forceRefresh bool) *model.CapacitySummary {
	if !forceRefresh {
		if sum, ok := s.cache.Get(); ok {
			return sum
		}
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have filled the cache while we waited.
	if !forceRefresh {
		if sum, ok := s.cache.Get(); ok {
			return sum
		}
	}
	sum, _ := s.refreshLocked(ctx)
	return sum
}

// Refresh runs a cycle unconditionally and reports how it went.
func (s *Service) Refresh(ctx context.Context) (*model.CapacitySummary, RefreshReport) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshLocked(ctx)
}

// LastReport returns the report of the most recent refresh.
func (s *Service) LastReport() RefreshReport {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	return s.lastReport
}

// CacheInfo reports where the cached summary came from and when.
func (s *Service) CacheInfo() (string, time.Time) {
	return s.cache.Source()
}

// Categories returns the tracked categories and their source fields.
func (s *Service) Categories() map[string]string {
	out := make(map[string]string, len(s.opts.Categories))
	for k, v := range s.opts.Categories {
		out[k] = v
	}
	return out
}

// SetRegion swaps in a new matcher and search term list. The next refresh
// uses them; the cached summary is left alone.
func (s *Service) SetRegion(rc config.RegionConfig) {
	c := region.New(rc)
	s.classMu.Lock()
	s.classifier = c
	s.classMu.Unlock()
	s.fetcher.SetTerms(rc.SearchTerms)
	s.logger.Info("region matcher replaced", zap.String("region", rc.Name))
}

func (s *Service) currentClassifier() *region.Classifier {
	s.classMu.RLock()
	defer s.classMu.RUnlock()
	return s.classifier
}

func (s *Service) refreshLocked(ctx context.Context) (*model.CapacitySummary, RefreshReport) {
	report := RefreshReport{ID: uuid.NewString(), StartedAt: s.now()}
	log := s.logger.With(zap.String("refresh_id", report.ID))
	log.Info("fetching fresh data from datastore")

	records, stats, err := s.fetcher.Fetch(ctx, s.opts.MaxRecords)
	report.Requests = stats.Requests
	report.Failures = stats.Failures
	report.Fetched = len(records)

	var sum *model.CapacitySummary
	abandoned := false
	if err == nil && len(records) > 0 {
		sum = s.buildLive(records, &report)
		if perr := capacity.Persist(sum, s.opts.SnapshotPath); perr != nil {
			log.Warn("snapshot not written", zap.String("path", s.opts.SnapshotPath), zap.Error(perr))
		}
	} else {
		if err == nil {
			err = data.ErrNoRecords
		}
		report.Error = err.Error()
		// A caller that went away says nothing about the datastore.
		abandoned = ctx.Err() != nil
		if !errors.Is(err, data.ErrNoRecords) && !abandoned {
			log.Warn("fetch failed", zap.Error(err))
		}
		sum, report.Source = s.fallback(log)
	}

	report.Duration = s.now().Sub(report.StartedAt)
	if abandoned {
		log.Info("refresh abandoned by caller, cache left as is",
			zap.String("source", report.Source), zap.Error(ctx.Err()))
		return sum, report
	}
	s.cache.Set(sum, report.Source)
	s.reportMu.Lock()
	s.lastReport = report
	s.reportMu.Unlock()

	metrics.RefreshTotal.WithLabelValues(report.Source).Inc()
	metrics.GrandTotalMW.Set(sum.GrandTotal)
	log.Info("summary ready",
		zap.String("source", report.Source),
		zap.Int("records", sum.RecordCount),
		zap.Float64("grand_total_mw", sum.GrandTotal),
		zap.Duration("duration", report.Duration))
	return sum, report
}

func (s *Service) buildLive(records []model.RawRecord, report *RefreshReport) *model.CapacitySummary {
	inRegion, fellBack := s.currentClassifier().Filter(records)
	if fellBack {
		s.logger.Warn("no records matched region, using full set", zap.Int("records", len(records)))
	}
	totals, counts := capacity.AggregateWithCounts(inRegion, s.opts.Categories)
	sum := capacity.BuildAt(totals, len(inRegion), s.now())

	metrics.RecordsInRegion.Set(float64(len(inRegion)))
	report.Source = SourceLive
	report.InRegion = len(inRegion)
	report.FellBack = fellBack
	report.Fields = counts
	return sum
}

// fallback loads the last snapshot, or synthesises an empty summary.
// A corrupt snapshot is logged and treated like a missing one.
func (s *Service) fallback(log *zap.Logger) (*model.CapacitySummary, string) {
	snap, err := capacity.LoadFallback(s.opts.SnapshotPath)
	if err != nil {
		log.Error("snapshot unusable", zap.String("path", s.opts.SnapshotPath), zap.Error(err))
	}
	if snap != nil {
		log.Info("loaded data from snapshot", zap.String("path", s.opts.SnapshotPath))
		return snap, SourceSnapshot
	}
	return capacity.Empty(s.opts.Categories, s.now()), SourceEmpty
}
