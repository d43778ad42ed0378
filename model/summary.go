package model

// Summary is the fixed-shape projection of a Record returned inside a
// bounded preview. Constructed once per response, never mutated after.
type Summary struct {
	ResultID    string  `json:"result_id"`
	Title       string  `json:"title"`
	From        string  `json:"from"`
	WebLink     string  `json:"web_link"`
	Score       float64 `json:"score"`
	Excerpt     string  `json:"excerpt"`
	Sensitivity string  `json:"sensitivity,omitempty"`
	Ref         string  `json:"ref"`
}

// EntityPreview groups the bounded summaries for one searched entity.
// A zero-match entity still produces a preview with MatchCount 0 and an
// empty (non-nil) Emails slice.
type EntityPreview struct {
	Entity     string    `json:"entity"`
	MatchCount int       `json:"match_count"`
	Emails     []Summary `json:"emails"`
}

// FullView is the drill-down shape of a cached search record: every extract
// with its individual score, full metadata, sensitivity label.
type FullView struct {
	ID          string            `json:"id"`
	Subject     string            `json:"subject"`
	From        string            `json:"from"`
	To          []string          `json:"to,omitempty"`
	Received    string            `json:"received"`
	WebLink     string            `json:"web_link"`
	Extracts    []Extract         `json:"extracts"`
	Sensitivity string            `json:"sensitivity,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}
