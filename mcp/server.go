// Package mcp provides the Model Context Protocol (MCP) server side.
//
// MCP is a protocol for communication between AI models and tool providers.
// This server speaks JSON-RPC 2.0 over stdin/stdout, one message per line,
// and exposes the mail tools plus cached results as discoverable resources.
//
// Information Hiding:
// - JSON-RPC framing and id handling hidden
// - Tool schema rendering hidden
// - Resource discovery delegated to the resolver
package mcp

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/inboxtools/outlook-mcp/resolver"
	"github.com/inboxtools/outlook-mcp/tools"
)

const protocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// request is an incoming JSON-RPC message. ID is kept raw so number and
// string ids echo back unchanged; a missing id marks a notification.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server serves MCP requests over a line-delimited JSON-RPC stream.
type Server struct {
	name     string
	version  string
	registry *tools.Registry
	resolver *resolver.Resolver

	writeMu sync.Mutex
	out     io.Writer
}

// NewServer creates a server exposing the given tools and resolver.
func NewServer(name, version string, registry *tools.Registry, res *resolver.Resolver) *Server {
	return &Server{
		name:     name,
		version:  version,
		registry: registry,
		resolver: res,
	}
}

// Serve reads requests from in and writes responses to out until in is
// exhausted or ctx is cancelled. Diagnostics must never be written to out;
// the stdio channel carries protocol messages only.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if reply, ok := s.Handle(ctx, line); ok {
			if err := s.write(reply); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
	return scanner.Err()
}

// Handle processes one raw message and returns the encoded reply, or ok
// false for notifications, which are never answered.
func (s *Server) Handle(ctx context.Context, line []byte) ([]byte, bool) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		// The id is unknowable here; the protocol requires an explicit
		// null id rather than an omitted member.
		return encode(response{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   &rpcError{Code: codeParseError, Message: fmt.Sprintf("parse error: %v", err)},
		}), true
	}

	if isNotification(req) {
		return nil, false
	}

	result, rpcErr := s.dispatch(ctx, req)
	resp := response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return encode(resp), true
}

func isNotification(req request) bool {
	if len(req.ID) == 0 || string(req.ID) == "null" {
		return true
	}
	return strings.HasPrefix(req.Method, "notifications/")
}

func (s *Server) dispatch(ctx context.Context, req request) (interface{}, *rpcError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(), nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return s.handleToolsList(), nil
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "resources/list":
		return s.handleResourcesList(), nil
	case "resources/read":
		return s.handleResourcesRead(req.Params)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func (s *Server) handleInitialize() interface{} {
	return map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    s.name,
			"version": s.version,
		},
	}
}

// toolDescriptor is the tools/list wire shape.
type toolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

func (s *Server) handleToolsList() interface{} {
	metas := s.registry.List()
	descriptors := make([]toolDescriptor, 0, len(metas))
	for _, meta := range metas {
		descriptors = append(descriptors, toolDescriptor{
			Name:        meta.Name,
			Description: meta.Description,
			InputSchema: inputSchema(meta),
		})
	}
	return map[string]interface{}{"tools": descriptors}
}

// inputSchema renders tool parameters as a JSON schema object.
func inputSchema(meta tools.ToolMetadata) map[string]interface{} {
	properties := make(map[string]interface{}, len(meta.Parameters))
	var required []string
	for _, p := range meta.Parameters {
		prop := map[string]interface{}{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.ParamType == "array" {
			prop["items"] = map[string]interface{}{"type": "string"}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, *rpcError) {
	var p toolsCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}

	tool, ok := s.registry.Get(p.Name)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("unknown tool: %s", p.Name)}
	}

	args := p.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	if err := tool.Validate(args); err != nil {
		return toolCallResult(fmt.Sprintf("Invalid arguments: %v", err), true), nil
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return nil, &rpcError{Code: codeInternalError, Message: err.Error()}
	}
	if !result.Success() {
		return toolCallResult(result.Error.Error(), true), nil
	}
	return toolCallResult(result.Output, false), nil
}

func toolCallResult(text string, isError bool) interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"isError": isError,
	}
}

func (s *Server) handleResourcesList() interface{} {
	resources := s.resolver.ListResources()
	if resources == nil {
		resources = []resolver.ResourceDescriptor{}
	}
	return map[string]interface{}{"resources": resources}
}

type resourcesReadParams struct {
	URI string `json:"uri"`
}

func (s *Server) handleResourcesRead(params json.RawMessage) (interface{}, *rpcError) {
	var p resourcesReadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}

	content, err := s.resolver.Resolve(p.URI)
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrMalformedReference):
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		case errors.Is(err, resolver.ErrNotFound):
			return nil, &rpcError{Code: codeInvalidRequest, Message: err.Error()}
		default:
			return nil, &rpcError{Code: codeInternalError, Message: err.Error()}
		}
	}

	item := map[string]interface{}{
		"uri":      content.URI,
		"mimeType": content.MIMEType,
	}
	if content.Data != nil {
		item["blob"] = base64.StdEncoding.EncodeToString(content.Data)
	} else {
		item["text"] = content.Text
	}
	return map[string]interface{}{"contents": []map[string]interface{}{item}}, nil
}

func (s *Server) write(reply []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.out.Write(append(reply, '\n'))
	return err
}

func encode(resp response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		// Marshal of these shapes cannot fail; keep the stream alive
		// with a generic error if it somehow does.
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal encoding error"}}`)
	}
	return b
}
