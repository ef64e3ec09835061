package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"scotland-capacity/internal/model"
)

// LoadRecordsJSON reads records saved by SaveRecordsJSON. A bare CKAN
// datastore_search response body is accepted as well.
func LoadRecordsJSON(path string) ([]model.RawRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []model.RawRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse records file: %w", err)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("records file %s has neither a record array nor a result block", path)
	}
	return resp.Result.Records, nil
}

// SaveRecordsJSON writes records as an indented JSON array.
func SaveRecordsJSON(path string, records []model.RawRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write records file: %w", err)
	}
	return nil
}
