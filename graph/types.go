// Package graph is the upstream mail API collaborator: a thin HTTP client
// for a Microsoft Graph style endpoint plus the batch dispatcher that fans
// logical queries out in upstream-sized chunks.
//
// Information Hiding:
// - Upstream wire shapes are decoded here and leave as model types
// - Token acquisition is behind TokenSource; this package never refreshes
package graph

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/inboxtools/outlook-mcp/model"
)

// BatchRequest is one logical request inside a $batch call. ID must be
// unique within a dispatch; it is the key of the dispatch outcome map.
type BatchRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// BatchResponse is one per-item response from a $batch call.
type BatchResponse struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// batchEnvelope and batchResult are the physical $batch wire shapes.
type batchEnvelope struct {
	Requests []BatchRequest `json:"requests"`
}

type batchResult struct {
	Responses []BatchResponse `json:"responses"`
}

// Outcome is the reassembled result for one logical request. Exactly one of
// the two cases holds: a received upstream status (possibly non-2xx) with
// its body, or a synthesized transport error for the whole chunk.
type Outcome struct {
	Status int
	Body   json.RawMessage
	Err    error
}

// OK reports whether the outcome carries a 2xx upstream response.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Status >= 200 && o.Status < 300
}

// Upstream wire shapes for the search endpoint, trimmed to the fields the
// adapter consumes.

type searchBody struct {
	Requests []searchRequest `json:"requests"`
}

type searchRequest struct {
	EntityTypes []string    `json:"entityTypes"`
	Query       searchQuery `json:"query"`
	Size        int         `json:"size"`
}

type searchQuery struct {
	QueryString string `json:"queryString"`
}

type searchResponseBody struct {
	Value []struct {
		HitsContainers []struct {
			Hits  []searchHit `json:"hits"`
			Total int         `json:"total"`
		} `json:"hitsContainers"`
	} `json:"value"`
}

type searchHit struct {
	HitID    string  `json:"hitId"`
	Rank     int     `json:"rank"`
	Summary  string  `json:"summary"`
	Score    float64 `json:"score"`
	Resource struct {
		Subject string `json:"subject"`
		From    struct {
			EmailAddress struct {
				Name    string `json:"name"`
				Address string `json:"address"`
			} `json:"emailAddress"`
		} `json:"from"`
		ReceivedDateTime string `json:"receivedDateTime"`
		WebLink          string `json:"webLink"`
		Sensitivity      string `json:"sensitivity"`
	} `json:"resource"`
}

// recordFromHit maps one upstream search hit onto the tagged record model.
func recordFromHit(h searchHit) model.Record {
	rec := model.Record{
		Kind:        model.KindSearchHit,
		ID:          h.HitID,
		Subject:     h.Resource.Subject,
		WebLink:     h.Resource.WebLink,
		Sensitivity: h.Resource.Sensitivity,
	}

	from := h.Resource.From.EmailAddress.Name
	if from == "" {
		from = h.Resource.From.EmailAddress.Address
	}
	rec.From = from

	if h.Resource.ReceivedDateTime != "" {
		if t, err := time.Parse(time.RFC3339, h.Resource.ReceivedDateTime); err == nil {
			rec.Received = t
		}
	}

	if h.Summary != "" {
		rec.Extracts = []model.Extract{{Text: h.Summary, Score: h.Score}}
	}

	rec.Meta = map[string]string{"rank": strconv.Itoa(h.Rank)}
	return rec
}
