package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/inboxtools/outlook-mcp/model"
	"github.com/inboxtools/outlook-mcp/resolver"
	"github.com/inboxtools/outlook-mcp/store"
	"github.com/inboxtools/outlook-mcp/tools"
)

// echoTool is a trivial tool for protocol tests.
type echoTool struct {
	tools.BaseTool
}

func (echoTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "echo",
		Description: "Echo the input back",
		Parameters: []tools.ToolParameter{
			{Name: "text", ParamType: "string", Description: "Text to echo", Required: true},
		},
	}
}

func (echoTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(err), nil
	}
	return tools.SuccessResult(a.Text), nil
}

func newTestServer(t *testing.T) (*Server, *store.SearchCache, *store.AttachmentCache) {
	t.Helper()
	opts := store.Options{TTL: time.Hour, MaxEntries: 10}
	searches, err := store.NewSearchCache(opts)
	if err != nil {
		t.Fatalf("NewSearchCache failed: %v", err)
	}
	attachments, err := store.NewAttachmentCache(opts)
	if err != nil {
		t.Fatalf("NewAttachmentCache failed: %v", err)
	}
	t.Cleanup(func() {
		searches.Stop()
		attachments.Stop()
	})

	registry := tools.NewRegistry()
	if err := registry.Register(echoTool{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	return NewServer("outlook-mcp", "0.1.0", registry, resolver.New(searches, attachments)), searches, attachments
}

func roundTrip(t *testing.T, s *Server, raw string) response {
	t.Helper()
	reply, ok := s.Handle(context.Background(), []byte(raw))
	if !ok {
		t.Fatalf("expected a reply for %s", raw)
	}
	var resp response
	if err := json.Unmarshal(reply, &resp); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return resp
}

func resultMap(t *testing.T, resp response) map[string]interface{} {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	m, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object result, got %T", resp.Result)
	}
	return m
}

func TestInitialize(t *testing.T) {
	s, _, _ := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if string(resp.ID) != "1" {
		t.Errorf("expected id echoed back, got %s", resp.ID)
	}

	result := resultMap(t, resp)
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("unexpected protocol version: %v", result["protocolVersion"])
	}
	info, _ := result["serverInfo"].(map[string]interface{})
	if info["name"] != "outlook-mcp" {
		t.Errorf("unexpected server info: %v", info)
	}
}

func TestStringIDEchoed(t *testing.T) {
	s, _, _ := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":"abc","method":"ping"}`)
	if string(resp.ID) != `"abc"` {
		t.Errorf("expected string id preserved, got %s", resp.ID)
	}
}

func TestToolsList(t *testing.T) {
	s, _, _ := newTestServer(t)

	result := resultMap(t, roundTrip(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	toolList, _ := result["tools"].([]interface{})
	if len(toolList) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(toolList))
	}

	tool, _ := toolList[0].(map[string]interface{})
	if tool["name"] != "echo" {
		t.Errorf("unexpected tool name: %v", tool["name"])
	}
	schema, _ := tool["inputSchema"].(map[string]interface{})
	if schema["type"] != "object" {
		t.Errorf("expected object schema, got %v", schema["type"])
	}
	required, _ := schema["required"].([]interface{})
	if len(required) != 1 || required[0] != "text" {
		t.Errorf("expected required [text], got %v", required)
	}
}

func TestToolsCall(t *testing.T) {
	s, _, _ := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hello"}}}`)
	result := resultMap(t, resp)
	if result["isError"] != false {
		t.Errorf("expected isError false, got %v", result["isError"])
	}
	content, _ := result["content"].([]interface{})
	first, _ := content[0].(map[string]interface{})
	if first["text"] != "hello" {
		t.Errorf("expected echoed text, got %v", first["text"])
	}
}

func TestToolsCallUnknownTool(t *testing.T) {
	s, _, _ := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope","arguments":{}}}`)
	if resp.Error == nil {
		t.Fatal("expected rpc error for unknown tool")
	}
	if resp.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid params code, got %d", resp.Error.Code)
	}
}

func TestMethodNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":5,"method":"prompts/list"}`)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
}

func TestParseError(t *testing.T) {
	s, _, _ := newTestServer(t)

	resp := roundTrip(t, s, `{not json`)
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}

	// The id cannot be recovered from a garbled message; the reply must
	// still carry an explicit null id, not omit the member.
	raw, ok := s.Handle(context.Background(), []byte(`{not json`))
	if !ok {
		t.Fatal("parse errors must be answered")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	id, present := fields["id"]
	if !present {
		t.Fatal("expected id member on parse-error reply")
	}
	if string(id) != "null" {
		t.Errorf("expected null id, got %s", id)
	}
}

func TestNotificationsNotAnswered(t *testing.T) {
	s, _, _ := newTestServer(t)

	if _, ok := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); ok {
		t.Error("notifications must not be answered")
	}
	if _, ok := s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":null,"method":"ping"}`)); ok {
		t.Error("null-id messages must not be answered")
	}
}

func TestResourcesListAndRead(t *testing.T) {
	s, searches, _ := newTestServer(t)

	handle := searches.Put("acme", []model.Record{{ID: "m0", Subject: "Invoice"}})

	result := resultMap(t, roundTrip(t, s, `{"jsonrpc":"2.0","id":6,"method":"resources/list"}`))
	resources, _ := result["resources"].([]interface{})
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}
	first, _ := resources[0].(map[string]interface{})
	uri, _ := first["uri"].(string)
	if uri != resolver.SearchRef(handle, 0) {
		t.Errorf("unexpected uri %q", uri)
	}

	readReq := `{"jsonrpc":"2.0","id":7,"method":"resources/read","params":{"uri":"` + uri + `"}}`
	readResult := resultMap(t, roundTrip(t, s, readReq))
	contents, _ := readResult["contents"].([]interface{})
	if len(contents) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(contents))
	}
	item, _ := contents[0].(map[string]interface{})
	text, _ := item["text"].(string)
	if !strings.Contains(text, "Invoice") {
		t.Errorf("expected full view text, got %q", text)
	}
}

func TestResourcesListEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)

	result := resultMap(t, roundTrip(t, s, `{"jsonrpc":"2.0","id":8,"method":"resources/list"}`))
	resources, ok := result["resources"].([]interface{})
	if !ok {
		t.Fatalf("expected resources array even when empty, got %T", result["resources"])
	}
	if len(resources) != 0 {
		t.Errorf("expected no resources, got %d", len(resources))
	}
}

func TestResourcesReadErrors(t *testing.T) {
	s, _, _ := newTestServer(t)

	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":9,"method":"resources/read","params":{"uri":"garbage"}}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params for malformed uri, got %+v", resp.Error)
	}

	resp = roundTrip(t, s, `{"jsonrpc":"2.0","id":10,"method":"resources/read","params":{"uri":"outlook-search://search-gone/result-0"}}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("expected invalid-request for expired uri, got %+v", resp.Error)
	}
}

func TestServeLineStream(t *testing.T) {
	s, _, _ := newTestServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses (notification skipped), got %d: %v", len(lines), lines)
	}
	for _, line := range lines {
		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Errorf("response is not valid JSON: %v", err)
		}
	}
}
