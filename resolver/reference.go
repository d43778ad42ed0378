// Package resolver translates opaque references back into cached content.
//
// Two reference schemes exist and stay distinct: search results address a
// sub-item of a cached search by index, attachments address a blob entry by
// its deterministic composite handle. A reference that does not parse is a
// client bug and is reported differently from one that parses but no longer
// resolves (legitimate expiry).
package resolver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// SchemeSearch prefixes search result references:
	// outlook-search://search-<handle>/result-<index>
	SchemeSearch = "outlook-search"
	// SchemeAttachment prefixes attachment references:
	// outlook-attachment://<parentId:itemId>
	SchemeAttachment = "outlook-attachment"
)

var (
	// ErrMalformedReference means the reference string itself is invalid.
	// This indicates a client bug, not expiry.
	ErrMalformedReference = errors.New("malformed reference")

	// ErrNotFound means the reference parsed but its entry is gone
	// (expired, evicted, or cleared). The caller should re-run the
	// original query.
	ErrNotFound = errors.New("not found or expired")
)

// Reference is a parsed opaque reference.
type Reference struct {
	Scheme string
	Handle string
	Index  int // search scheme only; -1 otherwise
}

// SearchRef formats the reference for the index-th result of a cached
// search. The format is part of the external contract and must stay exactly
// reproducible.
func SearchRef(handle string, index int) string {
	return fmt.Sprintf("%s://search-%s/result-%d", SchemeSearch, handle, index)
}

// AttachmentRef formats the reference for a cached attachment.
func AttachmentRef(handle string) string {
	return fmt.Sprintf("%s://%s", SchemeAttachment, handle)
}

// Parse splits an opaque reference into scheme, handle, and sub-index.
// Any deviation from the two published formats is ErrMalformedReference.
func Parse(ref string) (Reference, error) {
	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok || rest == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}

	switch scheme {
	case SchemeSearch:
		body, ok := strings.CutPrefix(rest, "search-")
		if !ok {
			return Reference{}, fmt.Errorf("%w: search reference must start with %q: %q", ErrMalformedReference, "search-", ref)
		}
		handle, resultPart, ok := strings.Cut(body, "/")
		if !ok || handle == "" {
			return Reference{}, fmt.Errorf("%w: search reference missing result segment: %q", ErrMalformedReference, ref)
		}
		idxStr, ok := strings.CutPrefix(resultPart, "result-")
		if !ok {
			return Reference{}, fmt.Errorf("%w: result segment must start with %q: %q", ErrMalformedReference, "result-", ref)
		}
		index, err := strconv.Atoi(idxStr)
		if err != nil || index < 0 {
			return Reference{}, fmt.Errorf("%w: invalid result index %q", ErrMalformedReference, idxStr)
		}
		return Reference{Scheme: scheme, Handle: handle, Index: index}, nil

	case SchemeAttachment:
		if strings.Contains(rest, "/") {
			return Reference{}, fmt.Errorf("%w: attachment reference takes no path: %q", ErrMalformedReference, ref)
		}
		return Reference{Scheme: scheme, Handle: rest, Index: -1}, nil

	default:
		return Reference{}, fmt.Errorf("%w: unknown scheme %q", ErrMalformedReference, scheme)
	}
}
