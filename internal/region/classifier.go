// Package region decides whether a capacity record belongs to a region,
// using place-name indicators over free-text fields and postcode prefixes.
package region

import (
	"strings"
	"unicode"

	"scotland-capacity/internal/config"
	"scotland-capacity/internal/model"
)

// Classifier is one parameterized matcher. It is immutable once built; swap
// the whole Classifier to change the lists.
type Classifier struct {
	name          string
	indicators    []string // lower-cased
	prefixes      map[string]struct{}
	postcodeField string
	textFields    []string
}

// New builds a classifier from a region config block.
func New(rc config.RegionConfig) *Classifier {
	c := &Classifier{
		name:          rc.Name,
		prefixes:      make(map[string]struct{}, len(rc.PostcodePrefixes)),
		postcodeField: rc.PostcodeField,
		textFields:    append([]string(nil), rc.TextFields...),
	}
	for _, ind := range rc.Indicators {
		ind = strings.ToLower(strings.TrimSpace(ind))
		if ind != "" {
			c.indicators = append(c.indicators, ind)
		}
	}
	for _, p := range rc.PostcodePrefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			c.prefixes[p] = struct{}{}
		}
	}
	return c
}

func (c *Classifier) Name() string { return c.name }

// Match reports whether r is in the region: any indicator appears in any
// text field (case-insensitive), or the postcode's leading letters are a
// known prefix. Missing fields never match.
func (c *Classifier) Match(r model.RawRecord) bool {
	for _, field := range c.textFields {
		text, ok := r.Text(field)
		if !ok || text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for _, ind := range c.indicators {
			if strings.Contains(lower, ind) {
				return true
			}
		}
	}
	if c.postcodeField != "" && len(c.prefixes) > 0 {
		if pc, ok := r.Text(c.postcodeField); ok {
			if _, hit := c.prefixes[PostcodePrefix(pc)]; hit {
				return true
			}
		}
	}
	return false
}

// Classify flags every record without modifying it.
func (c *Classifier) Classify(records []model.RawRecord) []model.ClassifiedRecord {
	out := make([]model.ClassifiedRecord, len(records))
	for i, r := range records {
		out[i] = model.ClassifiedRecord{Record: r, InRegion: c.Match(r)}
	}
	return out
}

// Filter returns the in-region records. If nothing matches, the whole input
// is returned and fellBack is true, so an over-strict list never empties the
// summary on its own.
func (c *Classifier) Filter(records []model.RawRecord) (matched []model.RawRecord, fellBack bool) {
	for _, cr := range c.Classify(records) {
		if cr.InRegion {
			matched = append(matched, cr.Record)
		}
	}
	if len(matched) == 0 {
		return records, len(records) > 0
	}
	return matched, false
}

// PostcodePrefix returns the leading run of letters of a postcode, upper-cased.
// "EH3 8DF" -> "EH", "g2 1aa" -> "G", "  LS1" -> "LS".
func PostcodePrefix(postcode string) string {
	s := strings.TrimSpace(postcode)
	end := 0
	for end < len(s) && s[end] < unicode.MaxASCII && unicode.IsLetter(rune(s[end])) {
		end++
	}
	return strings.ToUpper(s[:end])
}
