package pipeline

import (
	"scotland-capacity/internal/config"
	"scotland-capacity/internal/data"
	"scotland-capacity/internal/region"

	"go.uber.org/zap"
)

// NewFetcher wires a datastore client and fetch plan from cfg.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *data.Fetcher {
	src := cfg.Source
	client := data.NewCKANClient(src.BaseURL, src.ResourceID, src.Timeout, logger)
	plan := data.FetchPlan{
		GeneralLimit: src.GeneralLimit,
		SearchLimit:  src.SearchLimit,
		PageSize:     src.PageSize,
		MaxPages:     src.MaxPages,
		Concurrency:  src.Concurrency,
		Paginate:     !src.DisablePagination,
	}
	return data.NewFetcher(client, plan, cfg.Region.SearchTerms, logger)
}

// FromConfig builds a Service against the live datastore.
func FromConfig(cfg *config.Config, logger *zap.Logger) *Service {
	return New(NewFetcher(cfg, logger), region.New(cfg.Region), Options{
		MaxRecords:   cfg.Source.MaxRecords,
		Categories:   cfg.Categories,
		SnapshotPath: cfg.Snapshot.Path,
		CacheTTL:     cfg.Server.CacheTTL,
	}, logger)
}
