package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scotland-capacity/internal/model"

	"gopkg.in/yaml.v3"
)

// MaxRequestTimeout is the ceiling for a single datastore request.
const MaxRequestTimeout = 60 * time.Second

// Config is the on-disk configuration shape (YAML).
type Config struct {
	// Optional: load the region lists from a separate YAML (e.g. examples/regions/scotland.yaml).
	// If both RegionFile and Region are provided, Region overrides RegionFile.
	RegionFile string            `yaml:"region_file"`
	Region     RegionConfig      `yaml:"region"`
	Source     SourceConfig      `yaml:"source"`
	Categories map[string]string `yaml:"categories"`
	Snapshot   SnapshotConfig    `yaml:"snapshot"`
	Server     ServerConfig      `yaml:"server"`
}

// SourceConfig describes the CKAN datastore and the query budget.
type SourceConfig struct {
	BaseURL    string        `yaml:"base_url"`
	ResourceID string        `yaml:"resource_id"`
	Timeout    time.Duration `yaml:"timeout"`

	MaxRecords   int `yaml:"max_records"`
	GeneralLimit int `yaml:"general_limit"` // unfiltered sample, capped at 1000
	SearchLimit  int `yaml:"search_limit"`  // per search term
	PageSize     int `yaml:"page_size"`     // offset pagination batch
	MaxPages     int `yaml:"max_pages"`     // hard cap on pagination round trips
	Concurrency  int `yaml:"concurrency"`   // parallel term searches; 1 = sequential

	DisablePagination bool `yaml:"disable_pagination"`
}

// RegionConfig is the swappable matching input for the classifier.
type RegionConfig struct {
	Name             string   `yaml:"name"`
	SearchTerms      []string `yaml:"search_terms"`
	Indicators       []string `yaml:"indicators"`
	PostcodePrefixes []string `yaml:"postcode_prefixes"`
	PostcodeField    string   `yaml:"postcode_field"`
	TextFields       []string `yaml:"text_fields"`
}

type SnapshotConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	Env       string `yaml:"env"`
	StaticDir string `yaml:"static_dir"`
	// CacheTTL expires the in-memory summary; zero keeps it until a forced refresh.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// SkipPreload disables building the summary before the server starts.
	SkipPreload bool `yaml:"skip_preload"`
	// WatchRegion reloads the region file when it changes on disk.
	WatchRegion bool `yaml:"watch_region"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Region: DefaultRegion(),
		Source: SourceConfig{
			BaseURL:      "https://ckan-prod.sse.datopian.com",
			ResourceID:   "d258bd7b-22db-4d32-9450-b3783591b66d",
			Timeout:      30 * time.Second,
			MaxRecords:   5000,
			GeneralLimit: 1000,
			SearchLimit:  500,
			PageSize:     1000,
			MaxPages:     10,
			Concurrency:  4,
		},
		Categories: model.DefaultCategoryFields(),
		Snapshot:   SnapshotConfig{Path: "data_cache.json"},
		Server: ServerConfig{
			Port: "5000",
			Env:  "development",
		},
	}
}

// DefaultRegion is the Scotland matcher.
func DefaultRegion() RegionConfig {
	return RegionConfig{
		Name:        "scotland",
		SearchTerms: []string{"Scotland", "Glasgow", "Edinburgh", "Aberdeen", "Dundee", "Inverness", "EH", "AB", "IV", "KW"},
		Indicators: []string{
			"Scotland", "Glasgow", "Edinburgh", "Aberdeen", "Dundee", "Inverness",
			"Highland", "Perth", "Stirling", "Fife", "Moray", "Argyll", "Orkney", "Shetland",
		},
		PostcodePrefixes: []string{"AB", "DD", "DG", "EH", "FK", "G", "HS", "IV", "KA", "KW", "KY", "ML", "PA", "PH", "TD", "ZE"},
		PostcodeField:    "Postcode",
		TextFields:       []string{"Country", "County", "town__city", "address_line_1", "address_line_2", "Postcode"},
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config over the defaults, but does not validate it.
// An empty path yields the defaults.
func LoadUnchecked(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// If region_file is set, load it and merge in any explicit overrides from c.Region.
	if c.RegionFile != "" {
		c.RegionFile = ResolvePath(path, c.RegionFile)
		loaded, err := LoadRegionFile(c.RegionFile)
		if err != nil {
			return nil, err
		}
		c.Region = MergeRegion(loaded, c.Region)
	}
	return Merge(Default(), &c), nil
}

// ResolvePath interprets rel relative to the directory of configPath,
// falling back to rel itself (relative to cwd) if that doesn't exist.
func ResolvePath(configPath, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	cand := filepath.Join(filepath.Dir(configPath), rel)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return rel
}

type regionFileWrapper struct {
	Region RegionConfig `yaml:"region"`
}

// LoadRegionFile reads a YAML file with a top-level `region:` block.
func LoadRegionFile(path string) (RegionConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RegionConfig{}, err
	}
	var w regionFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return RegionConfig{}, fmt.Errorf("parse region file %s: %w", path, err)
	}
	return w.Region, nil
}

// Merge overlays the non-zero fields of override onto base.
func Merge(base, override *Config) *Config {
	out := *base
	out.RegionFile = override.RegionFile
	out.Region = MergeRegion(base.Region, override.Region)

	s := override.Source
	if s.BaseURL != "" {
		out.Source.BaseURL = s.BaseURL
	}
	if s.ResourceID != "" {
		out.Source.ResourceID = s.ResourceID
	}
	if s.Timeout != 0 {
		out.Source.Timeout = s.Timeout
	}
	if s.MaxRecords != 0 {
		out.Source.MaxRecords = s.MaxRecords
	}
	if s.GeneralLimit != 0 {
		out.Source.GeneralLimit = s.GeneralLimit
	}
	if s.SearchLimit != 0 {
		out.Source.SearchLimit = s.SearchLimit
	}
	if s.PageSize != 0 {
		out.Source.PageSize = s.PageSize
	}
	if s.MaxPages != 0 {
		out.Source.MaxPages = s.MaxPages
	}
	if s.Concurrency != 0 {
		out.Source.Concurrency = s.Concurrency
	}
	out.Source.DisablePagination = s.DisablePagination

	// Categories replace rather than merge so a file can drop a category.
	if len(override.Categories) > 0 {
		out.Categories = override.Categories
	}
	if override.Snapshot.Path != "" {
		out.Snapshot.Path = override.Snapshot.Path
	}
	if override.Server.Port != "" {
		out.Server.Port = override.Server.Port
	}
	if override.Server.Env != "" {
		out.Server.Env = override.Server.Env
	}
	if override.Server.StaticDir != "" {
		out.Server.StaticDir = override.Server.StaticDir
	}
	if override.Server.CacheTTL != 0 {
		out.Server.CacheTTL = override.Server.CacheTTL
	}
	out.Server.SkipPreload = override.Server.SkipPreload
	out.Server.WatchRegion = override.Server.WatchRegion
	return &out
}

// MergeRegion overlays non-empty fields from override onto base.
// Lists replace rather than append.
func MergeRegion(base, override RegionConfig) RegionConfig {
	out := base
	if override.Name != "" {
		out.Name = override.Name
	}
	if len(override.SearchTerms) > 0 {
		out.SearchTerms = override.SearchTerms
	}
	if len(override.Indicators) > 0 {
		out.Indicators = override.Indicators
	}
	if len(override.PostcodePrefixes) > 0 {
		out.PostcodePrefixes = override.PostcodePrefixes
	}
	if override.PostcodeField != "" {
		out.PostcodeField = override.PostcodeField
	}
	if len(override.TextFields) > 0 {
		out.TextFields = override.TextFields
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CAPACITY_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("CAPACITY_RESOURCE_ID"); v != "" {
		c.Source.ResourceID = v
	}
	if v := os.Getenv("CAPACITY_MAX_RECORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Source.MaxRecords = n
		}
	}
	if v := os.Getenv("CAPACITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Source.Timeout = d
		}
	}
	if v := os.Getenv("CAPACITY_SNAPSHOT_PATH"); v != "" {
		c.Snapshot.Path = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("API_ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.Server.StaticDir = v
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	s := c.Source
	if strings.TrimSpace(s.BaseURL) == "" {
		return errors.New("source.base_url is required")
	}
	if strings.TrimSpace(s.ResourceID) == "" {
		return errors.New("source.resource_id is required")
	}
	if s.Timeout <= 0 || s.Timeout > MaxRequestTimeout {
		return fmt.Errorf("source.timeout must be in (0, %s]", MaxRequestTimeout)
	}
	if s.MaxRecords <= 0 {
		return errors.New("source.max_records must be > 0")
	}
	if s.GeneralLimit <= 0 || s.GeneralLimit > 1000 {
		return errors.New("source.general_limit must be in [1, 1000]")
	}
	if s.SearchLimit <= 0 || s.SearchLimit > 1000 {
		return errors.New("source.search_limit must be in [1, 1000]")
	}
	if s.PageSize <= 0 || s.PageSize > 1000 {
		return errors.New("source.page_size must be in [1, 1000]")
	}
	if s.MaxPages <= 0 {
		return errors.New("source.max_pages must be > 0")
	}
	if c.Server.CacheTTL < 0 {
		return errors.New("server.cache_ttl must be >= 0")
	}
	if s.Concurrency <= 0 {
		return errors.New("source.concurrency must be > 0")
	}
	if err := c.Region.Validate(); err != nil {
		return fmt.Errorf("region config invalid: %w", err)
	}
	if len(c.Categories) == 0 {
		return errors.New("at least one capacity category is required")
	}
	for name, field := range c.Categories {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("category %q has no source field", name)
		}
	}
	if strings.TrimSpace(c.Snapshot.Path) == "" {
		return errors.New("snapshot.path is required")
	}
	return nil
}

func (r RegionConfig) Validate() error {
	if len(r.Indicators) == 0 && len(r.PostcodePrefixes) == 0 {
		return errors.New("indicators or postcode_prefixes must be set")
	}
	if len(r.PostcodePrefixes) > 0 && r.PostcodeField == "" {
		return errors.New("postcode_field is required with postcode_prefixes")
	}
	return nil
}
