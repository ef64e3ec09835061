package data

import "scotland-capacity/internal/model"

// RecordSet accumulates records and drops exact duplicates. Records carry no
// identity field, so equality is over every field and value (model.RawRecord.Key).
type RecordSet struct {
	seen    map[string]struct{}
	records []model.RawRecord
}

func NewRecordSet() *RecordSet {
	return &RecordSet{seen: make(map[string]struct{})}
}

// Add returns true if the record is new, false if it is a duplicate.
func (s *RecordSet) Add(r model.RawRecord) bool {
	key := r.Key()
	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	s.records = append(s.records, r)
	return true
}

// AddAll adds every record and returns how many were new.
func (s *RecordSet) AddAll(rs []model.RawRecord) int {
	added := 0
	for _, r := range rs {
		if s.Add(r) {
			added++
		}
	}
	return added
}

func (s *RecordSet) Len() int { return len(s.records) }

// Records returns the distinct records in first-seen order.
func (s *RecordSet) Records() []model.RawRecord { return s.records }
