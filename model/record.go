// Package model provides domain types shared across packages.
//
// Information Hiding:
// - Upstream JSON shapes are decoded at the graph boundary; the rest of the
//   system only sees these tagged variants
// - Summary shape is fixed so serialized previews have a bounded size
package model

import "time"

// RecordKind discriminates the upstream record variants.
type RecordKind int

const (
	// KindMessage is a full mail message fetched by id.
	KindMessage RecordKind = iota
	// KindSearchHit is a relevance-ranked hit from the search endpoint.
	KindSearchHit
)

// Extract is a scored text snippet carried by a search hit.
// Score is the upstream relevance in [0.0, 1.0]; it is carried through
// unchanged, never recomputed here.
type Extract struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Record is one upstream result item. Optional fields are zero values when
// the upstream omits them; consumers must tolerate that.
type Record struct {
	Kind        RecordKind        `json:"kind"`
	ID          string            `json:"id"`
	Subject     string            `json:"subject"`
	From        string            `json:"from"`
	To          []string          `json:"to,omitempty"`
	Received    time.Time         `json:"received"`
	WebLink     string            `json:"web_link"`
	Extracts    []Extract         `json:"extracts,omitempty"`
	Sensitivity string            `json:"sensitivity,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// TopExtract returns the highest-scored extract, or false if there are none.
// Ties keep the earliest extract so the choice is deterministic.
func (r Record) TopExtract() (Extract, bool) {
	if len(r.Extracts) == 0 {
		return Extract{}, false
	}
	best := r.Extracts[0]
	for _, e := range r.Extracts[1:] {
		if e.Score > best.Score {
			best = e
		}
	}
	return best, true
}

// TopScore returns the highest extract score, or 0 when no extracts exist.
func (r Record) TopScore() float64 {
	if e, ok := r.TopExtract(); ok {
		return e.Score
	}
	return 0
}

// Attachment is a fetched attachment blob with its declared metadata.
// Data is stored unmodified; ContentType is whatever the upstream declared.
type Attachment struct {
	ParentID    string `json:"parent_id"`
	ItemID      string `json:"item_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Data        []byte `json:"-"`
}
