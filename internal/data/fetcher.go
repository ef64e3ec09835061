package data

import (
	"context"
	"errors"
	"sync"

	"scotland-capacity/internal/metrics"
	"scotland-capacity/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoRecords means every query failed or came back empty.
var ErrNoRecords = errors.New("no records retrieved from datastore")

// maxGeneralLimit is the largest unfiltered sample requested in one call.
const maxGeneralLimit = 1000

// Searcher is the datastore surface the fetcher needs.
type Searcher interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
}

// FetchPlan bounds the number and size of datastore round trips.
type FetchPlan struct {
	GeneralLimit int
	SearchLimit  int
	PageSize     int
	MaxPages     int
	Concurrency  int
	Paginate     bool
}

// FetchStats describes one fetch cycle.
type FetchStats struct {
	Requests int
	Failures int
	General  int
	ByTerm   map[string]int // new records contributed by each term
	Paged    int
	Distinct int
}

// Fetcher gathers capacity records with a general sample, one search per
// term, and an offset crawl when both come back empty. It is best effort:
// failed queries are logged and skipped.
type Fetcher struct {
	searcher Searcher
	plan     FetchPlan
	logger   *zap.Logger

	mu    sync.RWMutex
	terms []string
}

func NewFetcher(searcher Searcher, plan FetchPlan, terms []string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if plan.GeneralLimit <= 0 || plan.GeneralLimit > maxGeneralLimit {
		plan.GeneralLimit = maxGeneralLimit
	}
	if plan.SearchLimit <= 0 {
		plan.SearchLimit = 500
	}
	if plan.PageSize <= 0 {
		plan.PageSize = 1000
	}
	if plan.MaxPages <= 0 {
		plan.MaxPages = 1
	}
	if plan.Concurrency <= 0 {
		plan.Concurrency = 1
	}
	return &Fetcher{
		searcher: searcher,
		plan:     plan,
		terms:    append([]string(nil), terms...),
		logger:   logger,
	}
}

// SetTerms swaps the search term list used by later fetches.
func (f *Fetcher) SetTerms(terms []string) {
	f.mu.Lock()
	f.terms = append([]string(nil), terms...)
	f.mu.Unlock()
}

// Terms returns a copy of the current search terms.
func (f *Fetcher) Terms() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.terms...)
}

// MaxRequests is the hard cap on datastore calls for one Fetch.
func (f *Fetcher) MaxRequests() int {
	n := 1 + len(f.Terms())
	if f.plan.Paginate {
		n += f.plan.MaxPages
	}
	return n
}

// Fetch returns the distinct records found, or ErrNoRecords if none were.
// Only context cancellation aborts a fetch early.
func (f *Fetcher) Fetch(ctx context.Context, maxRecords int) ([]model.RawRecord, FetchStats, error) {
	stats := FetchStats{ByTerm: map[string]int{}}
	if maxRecords <= 0 {
		return nil, stats, ErrNoRecords
	}
	set := NewRecordSet()

	// 1. general sample
	limit := min(maxRecords, f.plan.GeneralLimit)
	if recs, ok := f.search(ctx, &stats, SearchParams{Limit: limit, Kind: KindGeneral}); ok {
		stats.General = set.AddAll(recs)
		f.logger.Info("general sample retrieved", zap.Int("records", len(recs)))
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	// 2. one search per term; results are merged in term order so the
	// outcome does not depend on which request finished first.
	terms := f.Terms()
	results := make([][]model.RawRecord, len(terms))
	var statsMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.plan.Concurrency)
	for i, term := range terms {
		i, term := i, term
		g.Go(func() error {
			var local FetchStats
			recs, ok := f.search(gctx, &local, SearchParams{Query: term, Limit: f.plan.SearchLimit, Kind: KindTerm})
			statsMu.Lock()
			stats.Requests += local.Requests
			stats.Failures += local.Failures
			statsMu.Unlock()
			if ok {
				results[i] = recs
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	for i, term := range terms {
		added := set.AddAll(results[i])
		stats.ByTerm[term] = added
		if len(results[i]) > 0 {
			f.logger.Info("term search", zap.String("term", term), zap.Int("records", len(results[i])), zap.Int("new", added))
		}
	}

	// 3. offset crawl, only when nothing came back at all
	if set.Len() == 0 && f.plan.Paginate {
		stats.Paged = f.paginate(ctx, &stats, set, maxRecords)
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
	}

	stats.Distinct = set.Len()
	metrics.RecordsFetched.Set(float64(stats.Distinct))
	f.logger.Info("fetch complete",
		zap.Int("distinct", stats.Distinct),
		zap.Int("requests", stats.Requests),
		zap.Int("failures", stats.Failures))

	if set.Len() == 0 {
		return nil, stats, ErrNoRecords
	}
	return set.Records(), stats, nil
}

func (f *Fetcher) paginate(ctx context.Context, stats *FetchStats, set *RecordSet, maxRecords int) int {
	added := 0
	offset := 0
	for page := 0; page < f.plan.MaxPages && offset < maxRecords; page++ {
		limit := min(f.plan.PageSize, maxRecords-offset)
		recs, ok := f.search(ctx, stats, SearchParams{Limit: limit, Offset: offset, Kind: KindPage})
		if !ok {
			// Without this batch the end of data is unknown; stop rather than guess.
			break
		}
		added += set.AddAll(recs)
		offset += len(recs)
		if len(recs) < limit {
			break
		}
	}
	f.logger.Info("pagination fallback", zap.Int("records", added), zap.Int("offset", offset))
	return added
}

// search runs one query and folds any failure into stats. ok is false when
// the query failed; an empty successful result is ok.
func (f *Fetcher) search(ctx context.Context, stats *FetchStats, params SearchParams) ([]model.RawRecord, bool) {
	stats.Requests++
	res, err := f.searcher.Search(ctx, params)
	if err != nil {
		stats.Failures++
		metrics.DatastoreFailuresTotal.WithLabelValues(params.Kind).Inc()
		f.logger.Warn("datastore query skipped",
			zap.String("kind", params.Kind),
			zap.String("q", params.Query),
			zap.Int("offset", params.Offset),
			zap.Error(err))
		return nil, false
	}
	return res.Records, true
}
