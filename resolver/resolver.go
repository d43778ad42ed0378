package resolver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/inboxtools/outlook-mcp/model"
	"github.com/inboxtools/outlook-mcp/store"
)

// Content is the resolved form of a reference: either text (a JSON full
// view of a search result) or raw bytes with the stored content type (an
// attachment, returned unmodified).
type Content struct {
	URI      string
	Name     string
	MIMEType string
	Text     string
	Data     []byte
}

// ResourceDescriptor describes one addressable cached unit for discovery.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MIMEType    string `json:"mimeType"`
}

// Resolver turns opaque references into full cached content.
type Resolver struct {
	searches    *store.SearchCache
	attachments *store.AttachmentCache
}

// New creates a resolver over the two caches.
func New(searches *store.SearchCache, attachments *store.AttachmentCache) *Resolver {
	return &Resolver{searches: searches, attachments: attachments}
}

// Resolve parses ref and returns the full content it addresses.
// ErrMalformedReference means the string was never valid;
// ErrNotFound means the entry expired or was evicted and the original query
// should be re-run.
func (r *Resolver) Resolve(ref string) (Content, error) {
	parsed, err := Parse(ref)
	if err != nil {
		return Content{}, err
	}

	switch parsed.Scheme {
	case SchemeSearch:
		rec, ok := r.searches.GetResult(parsed.Handle, parsed.Index)
		if !ok {
			return Content{}, fmt.Errorf("%w: search result %q; re-run the original search", ErrNotFound, ref)
		}
		view := FullViewOf(rec)
		text, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return Content{}, fmt.Errorf("encode full view: %w", err)
		}
		return Content{
			URI:      ref,
			Name:     view.Subject,
			MIMEType: "application/json",
			Text:     string(text),
		}, nil

	case SchemeAttachment:
		entry, ok := r.attachments.Get(parsed.Handle)
		if !ok {
			return Content{}, fmt.Errorf("%w: attachment %q; re-fetch it from its message", ErrNotFound, ref)
		}
		return Content{
			URI:      ref,
			Name:     entry.Attachment.Name,
			MIMEType: entry.Attachment.ContentType,
			Data:     entry.Attachment.Data,
		}, nil
	}

	// Parse only admits the two schemes above.
	return Content{}, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
}

// FullViewOf re-shapes a record into its drill-down form: every extract with
// its individual score, full metadata, sensitivity label.
func FullViewOf(rec model.Record) model.FullView {
	extracts := rec.Extracts
	if extracts == nil {
		extracts = []model.Extract{}
	}
	received := ""
	if !rec.Received.IsZero() {
		received = rec.Received.Format(time.RFC3339)
	}
	return model.FullView{
		ID:          rec.ID,
		Subject:     rec.Subject,
		From:        rec.From,
		To:          rec.To,
		Received:    received,
		WebLink:     rec.WebLink,
		Extracts:    extracts,
		Sensitivity: rec.Sensitivity,
		Meta:        rec.Meta,
	}
}

// ListResources enumerates one descriptor per addressable unit across both
// caches: one per stored search result index, one per attachment. Only
// non-expired entries appear, since the cache List and Get already apply the
// liveness check.
func (r *Resolver) ListResources() []ResourceDescriptor {
	var out []ResourceDescriptor

	for _, handle := range r.searches.List() {
		entry, ok := r.searches.Get(handle)
		if !ok {
			continue
		}
		for i, rec := range entry.Records {
			name := rec.Subject
			if name == "" {
				name = fmt.Sprintf("result %d", i)
			}
			out = append(out, ResourceDescriptor{
				URI:         SearchRef(handle, i),
				Name:        name,
				Description: fmt.Sprintf("Result %d of search %q", i, entry.Query),
				MIMEType:    "application/json",
			})
		}
	}

	for _, handle := range r.attachments.List() {
		entry, ok := r.attachments.Get(handle)
		if !ok {
			continue
		}
		out = append(out, ResourceDescriptor{
			URI:         AttachmentRef(handle),
			Name:        entry.Attachment.Name,
			Description: fmt.Sprintf("Attachment %s (%d bytes)", entry.Attachment.Name, entry.Attachment.Size),
			MIMEType:    entry.Attachment.ContentType,
		})
	}

	return out
}
