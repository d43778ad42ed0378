// Mail tools - the MCP-facing operations over the upstream mail API.
//
// Each search returns a bounded preview plus opaque references; the full
// record sets live in the caches and are retrieved later through the
// resolver. No tool ever returns a full payload inside a search response.

package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/inboxtools/outlook-mcp/graph"
	"github.com/inboxtools/outlook-mcp/model"
	"github.com/inboxtools/outlook-mcp/preview"
	"github.com/inboxtools/outlook-mcp/resolver"
	"github.com/inboxtools/outlook-mcp/store"
)

// searchPageSize is how many hits are requested per logical query. Larger
// than the preview limit on purpose: drill-down resolves against the full
// cached set, not the preview.
const searchPageSize = 25

// Limits bound the preview size of a single search response.
type Limits struct {
	PerQuery int // summaries per logical query
	Total    int // summaries across the whole response
}

// DefaultLimits returns the preview bounds used when the caller specifies
// none.
func DefaultLimits() Limits {
	return Limits{PerQuery: 5, Total: 25}
}

// SearchMailTool fans logical queries out to the upstream in batch chunks,
// caches the full result sets, and returns bounded per-entity previews.
type SearchMailTool struct {
	BaseTool
	dispatcher *graph.Dispatcher
	searches   *store.SearchCache
	limits     Limits
}

// NewSearchMailTool creates the search tool.
func NewSearchMailTool(dispatcher *graph.Dispatcher, searches *store.SearchCache, limits Limits) *SearchMailTool {
	if limits.PerQuery <= 0 {
		limits.PerQuery = DefaultLimits().PerQuery
	}
	if limits.Total <= 0 {
		limits.Total = DefaultLimits().Total
	}
	return &SearchMailTool{dispatcher: dispatcher, searches: searches, limits: limits}
}

func (t *SearchMailTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "search_mail",
		Description: "Search mail for one or more queries (e.g. company names). Returns a bounded preview per query with opaque references; use read_mail to drill into a result.",
		Parameters: []ToolParameter{
			{Name: "queries", ParamType: "array", Description: "Logical search queries, one per entity", Required: true},
			{Name: "per_query_limit", ParamType: "integer", Description: "Max preview results per query (default 5)", Required: false},
			{Name: "order_by", ParamType: "string", Description: "Preview order: relevance (default) or recency", Required: false},
		},
	}
}

type searchMailArgs struct {
	Queries       []string `json:"queries"`
	PerQueryLimit *int     `json:"per_query_limit"`
	OrderBy       string   `json:"order_by"`
}

func (t *SearchMailTool) Validate(args json.RawMessage) error {
	var a searchMailArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if len(a.Queries) == 0 {
		return fmt.Errorf("queries cannot be empty")
	}
	for _, q := range a.Queries {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("queries cannot contain blank entries")
		}
	}
	switch a.OrderBy {
	case "", "relevance", "recency":
	default:
		return fmt.Errorf("order_by must be 'relevance' or 'recency', got %q", a.OrderBy)
	}
	return nil
}

// entityOutcome is the per-query slice of the search response. Shape is
// stable: a zero-match query still carries match_count 0 and an empty
// emails list, and a failed query carries an error string alongside them.
type entityOutcome struct {
	Entity     string          `json:"entity"`
	MatchCount int             `json:"match_count"`
	Emails     []model.Summary `json:"emails"`
	Error      string          `json:"error,omitempty"`
}

func (t *SearchMailTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a searchMailArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if len(a.Queries) == 0 {
		return FailureResultf("queries cannot be empty"), nil
	}

	perQuery := t.limits.PerQuery
	if a.PerQueryLimit != nil && *a.PerQueryLimit > 0 {
		perQuery = *a.PerQueryLimit
	}

	var less preview.LessFunc = preview.ByScoreDesc
	if a.OrderBy == "recency" {
		less = preview.ByRecencyDesc
	}

	requests := make([]graph.BatchRequest, len(a.Queries))
	for i, q := range a.Queries {
		requests[i] = graph.SearchMailRequest(fmt.Sprintf("q%d", i), q, searchPageSize)
	}

	outcomes, err := t.dispatcher.Dispatch(ctx, requests)
	if err != nil {
		// Auth failures are the only dispatch error; surface them
		// unchanged for the credential collaborator.
		return FailureResult(err), nil
	}

	results := make([]entityOutcome, len(a.Queries))
	entities := make([]preview.EntityResult, len(a.Queries))
	errsByIndex := make(map[int]string)

	for i, q := range a.Queries {
		outcome := outcomes[fmt.Sprintf("q%d", i)]
		entities[i] = preview.EntityResult{Entity: q}

		switch {
		case outcome.Err != nil:
			errsByIndex[i] = outcome.Err.Error()
		case !outcome.OK():
			errsByIndex[i] = fmt.Sprintf("upstream returned status %d", outcome.Status)
		default:
			records, perr := graph.ParseSearchBody(outcome.Body)
			if perr != nil {
				errsByIndex[i] = perr.Error()
				break
			}
			ordered := preview.Order(records, less)
			handle := t.searches.Put(q, ordered)
			entities[i].Handle = handle
			entities[i].Records = ordered
			entities[i].RefFor = func(idx int) string { return resolver.SearchRef(handle, idx) }
		}
	}

	previews := preview.BuildEntityPreviews(entities, perQuery, t.limits.Total)
	for i, p := range previews {
		results[i] = entityOutcome{
			Entity:     p.Entity,
			MatchCount: p.MatchCount,
			Emails:     p.Emails,
			Error:      errsByIndex[i],
		}
	}

	out, err := json.MarshalIndent(struct {
		Results []entityOutcome `json:"results"`
	}{Results: results}, "", "  ")
	if err != nil {
		return FailureResult(fmt.Errorf("encode results: %w", err)), nil
	}
	return SuccessResult(string(out)), nil
}

// ReadMailTool resolves an outlook-search:// reference into the full view of
// one cached search result.
type ReadMailTool struct {
	BaseTool
	resolver *resolver.Resolver
}

// NewReadMailTool creates the drill-down tool for search results.
func NewReadMailTool(r *resolver.Resolver) *ReadMailTool {
	return &ReadMailTool{resolver: r}
}

func (t *ReadMailTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_mail",
		Description: "Read the full content of a search result previously returned by search_mail, given its opaque reference.",
		Parameters: []ToolParameter{
			{Name: "ref", ParamType: "string", Description: "Reference of the form outlook-search://search-<handle>/result-<index>", Required: true},
		},
	}
}

type refArgs struct {
	Ref string `json:"ref"`
}

func (t *ReadMailTool) Validate(args json.RawMessage) error {
	var a refArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Ref == "" {
		return fmt.Errorf("ref cannot be empty")
	}
	return nil
}

func (t *ReadMailTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a refArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	content, err := t.resolver.Resolve(a.Ref)
	if err != nil {
		return failureForResolve(err), nil
	}
	if content.Data != nil {
		return FailureResultf("%q is an attachment reference; use read_resource", a.Ref), nil
	}
	return SuccessResult(content.Text), nil
}

// GetAttachmentTool fetches an attachment from the upstream, caches the blob
// under its deterministic handle, and returns the reference plus metadata.
// The bytes themselves are retrieved through read_resource.
type GetAttachmentTool struct {
	BaseTool
	client      *graph.Client
	attachments *store.AttachmentCache
}

// NewGetAttachmentTool creates the attachment fetch tool.
func NewGetAttachmentTool(client *graph.Client, attachments *store.AttachmentCache) *GetAttachmentTool {
	return &GetAttachmentTool{client: client, attachments: attachments}
}

func (t *GetAttachmentTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "get_attachment",
		Description: "Fetch a mail attachment and cache it. Returns an opaque reference and metadata; use read_resource to get the bytes.",
		Parameters: []ToolParameter{
			{Name: "message_id", ParamType: "string", Description: "Id of the message owning the attachment", Required: true},
			{Name: "attachment_id", ParamType: "string", Description: "Id of the attachment", Required: true},
		},
	}
}

type attachmentArgs struct {
	MessageID    string `json:"message_id"`
	AttachmentID string `json:"attachment_id"`
}

func (t *GetAttachmentTool) Validate(args json.RawMessage) error {
	var a attachmentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.MessageID == "" || a.AttachmentID == "" {
		return fmt.Errorf("message_id and attachment_id are required")
	}
	return nil
}

func (t *GetAttachmentTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a attachmentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.MessageID == "" || a.AttachmentID == "" {
		return FailureResultf("message_id and attachment_id are required"), nil
	}

	// The deterministic handle makes this idempotent: a cached attachment
	// is not fetched again.
	handle := store.AttachmentHandle(a.MessageID, a.AttachmentID)
	entry, ok := t.attachments.Get(handle)
	if !ok {
		att, err := t.client.GetAttachment(ctx, a.MessageID, a.AttachmentID)
		if err != nil {
			return FailureResult(err), nil
		}
		t.attachments.Set(att)
		entry, ok = t.attachments.Get(handle)
		if !ok {
			return FailureResultf("attachment %s evicted immediately after caching", handle), nil
		}
	}

	out, err := json.MarshalIndent(struct {
		Ref         string `json:"ref"`
		Name        string `json:"name"`
		ContentType string `json:"content_type"`
		Size        int    `json:"size"`
		ContentHash string `json:"content_hash"`
	}{
		Ref:         resolver.AttachmentRef(handle),
		Name:        entry.Attachment.Name,
		ContentType: entry.Attachment.ContentType,
		Size:        entry.Attachment.Size,
		ContentHash: entry.ContentHash,
	}, "", "  ")
	if err != nil {
		return FailureResult(fmt.Errorf("encode attachment metadata: %w", err)), nil
	}
	return SuccessResult(string(out)), nil
}

// ReadResourceTool resolves any opaque reference, either scheme.
type ReadResourceTool struct {
	BaseTool
	resolver *resolver.Resolver
}

// NewReadResourceTool creates the generic drill-down tool.
func NewReadResourceTool(r *resolver.Resolver) *ReadResourceTool {
	return &ReadResourceTool{resolver: r}
}

func (t *ReadResourceTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_resource",
		Description: "Resolve any opaque reference (outlook-search:// or outlook-attachment://) to its full cached content. Attachment bytes are returned base64-encoded.",
		Parameters: []ToolParameter{
			{Name: "ref", ParamType: "string", Description: "The opaque reference to resolve", Required: true},
		},
	}
}

func (t *ReadResourceTool) Validate(args json.RawMessage) error {
	var a refArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Ref == "" {
		return fmt.Errorf("ref cannot be empty")
	}
	return nil
}

func (t *ReadResourceTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a refArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	content, err := t.resolver.Resolve(a.Ref)
	if err != nil {
		return failureForResolve(err), nil
	}

	if content.Data != nil {
		out, merr := json.MarshalIndent(struct {
			Name        string `json:"name"`
			ContentType string `json:"content_type"`
			Data        string `json:"data"`
		}{
			Name:        content.Name,
			ContentType: content.MIMEType,
			Data:        base64.StdEncoding.EncodeToString(content.Data),
		}, "", "  ")
		if merr != nil {
			return FailureResult(fmt.Errorf("encode attachment: %w", merr)), nil
		}
		return SuccessResult(string(out)), nil
	}
	return SuccessResult(content.Text), nil
}

// ClearResultsTool empties both caches.
type ClearResultsTool struct {
	BaseTool
	searches    *store.SearchCache
	attachments *store.AttachmentCache
}

// NewClearResultsTool creates the cache clearing tool.
func NewClearResultsTool(searches *store.SearchCache, attachments *store.AttachmentCache) *ClearResultsTool {
	return &ClearResultsTool{searches: searches, attachments: attachments}
}

func (t *ClearResultsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "clear_results",
		Description: "Clear all cached search results and attachments. Outstanding references stop resolving.",
		Parameters:  []ToolParameter{},
	}
}

func (t *ClearResultsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	searches := len(t.searches.List())
	attachments := len(t.attachments.List())
	t.searches.Clear()
	t.attachments.Clear()
	return SuccessResult(fmt.Sprintf("Cleared %d cached searches and %d attachments.", searches, attachments)), nil
}

// failureForResolve maps resolver errors onto actionable tool failures,
// keeping "this expired, re-run the query" distinct from "this reference was
// never valid".
func failureForResolve(err error) ToolResult {
	switch {
	case errors.Is(err, resolver.ErrMalformedReference):
		return FailureResult(fmt.Errorf("invalid reference: %w", err))
	case errors.Is(err, resolver.ErrNotFound):
		return FailureResult(fmt.Errorf("expired: %w", err))
	default:
		return FailureResult(err)
	}
}

// NewMailRegistry wires all mail tools into a registry.
func NewMailRegistry(dispatcher *graph.Dispatcher, client *graph.Client, searches *store.SearchCache, attachments *store.AttachmentCache, limits Limits) (*Registry, error) {
	registry := NewRegistry()
	res := resolver.New(searches, attachments)

	all := []Tool{
		NewSearchMailTool(dispatcher, searches, limits),
		NewReadMailTool(res),
		NewGetAttachmentTool(client, attachments),
		NewReadResourceTool(res),
		NewClearResultsTool(searches, attachments),
	}

	for _, t := range all {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register mail tools: %w", err)
		}
	}
	return registry, nil
}
