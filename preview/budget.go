package preview

import (
	"fmt"
	"sort"

	"github.com/inboxtools/outlook-mcp/model"
)

// LessFunc orders records for preview building. The sorted order is also the
// order records must be cached in, since drill-down references are
// positional.
type LessFunc func(a, b model.Record) bool

// ByScoreDesc orders records by descending top relevance score.
func ByScoreDesc(a, b model.Record) bool {
	return a.TopScore() > b.TopScore()
}

// ByRecencyDesc orders records newest first.
func ByRecencyDesc(a, b model.Record) bool {
	return a.Received.After(b.Received)
}

// RefFunc produces the opaque reference for the record at a given index of
// the cached list.
type RefFunc func(index int) string

// Order returns a stably sorted copy of records. A nil less keeps the
// upstream order (ranking, when present, is produced upstream).
func Order(records []model.Record, less LessFunc) []model.Record {
	out := make([]model.Record, len(records))
	copy(out, records)
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

// BuildPreview summarizes records in order, truncated to limit. Summaries
// carry positional result ids ("result-0", ...) and references produced by
// refFor against the same indices, so they resolve against the cached list.
// Worst-case serialized size is bounded by limit times the fixed summary
// shape; no runtime byte counting is needed.
func BuildPreview(records []model.Record, limit int, refFor RefFunc) []model.Summary {
	n := len(records)
	if limit >= 0 && n > limit {
		n = limit
	}

	summaries := make([]model.Summary, 0, n)
	for i := 0; i < n; i++ {
		s := Summarize(records[i])
		s.ResultID = fmt.Sprintf("result-%d", i)
		if refFor != nil {
			s.Ref = refFor(i)
		}
		summaries = append(summaries, s)
	}
	return summaries
}

// EntityResult pairs one searched entity with its cached, already-ordered
// record set and the handle the records were cached under.
type EntityResult struct {
	Entity  string
	Handle  string
	Records []model.Record
	RefFor  RefFunc
}

// BuildEntityPreviews applies a per-entity limit to each entity's records,
// then a global limit across all summaries. An entity with zero matches
// yields an explicit zero-count preview with an empty, non-nil summary list
// rather than an omitted key or an error.
func BuildEntityPreviews(entities []EntityResult, perEntityLimit, totalLimit int) []model.EntityPreview {
	previews := make([]model.EntityPreview, 0, len(entities))
	total := 0

	for _, er := range entities {
		remaining := perEntityLimit
		if totalLimit >= 0 && totalLimit-total < remaining {
			remaining = totalLimit - total
		}
		if remaining < 0 {
			remaining = 0
		}

		emails := BuildPreview(er.Records, remaining, er.RefFor)
		total += len(emails)

		previews = append(previews, model.EntityPreview{
			Entity:     er.Entity,
			MatchCount: len(er.Records),
			Emails:     emails,
		})
	}

	return previews
}
