package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/linearmcp/internal/log"
	"github.com/zjrosen/linearmcp/internal/metrics"
	"github.com/zjrosen/linearmcp/internal/tracing"
)

// ToolHandler handles one tool call. A returned error is reported to the
// client as an error result, not as an RPC error.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*ToolCallResult, error)

// maxMessageSize bounds a single newline-delimited frame.
const maxMessageSize = 1024 * 1024

// Server is an MCP server over a newline-delimited stream.
type Server struct {
	info         ImplementationInfo
	instructions string
	tracer       trace.Tracer
	metrics      *metrics.Registry

	mu          sync.RWMutex
	tools       map[string]Tool
	handlers    map[string]ToolHandler
	initialized bool

	writeMu sync.Mutex
	writer  io.Writer
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithTracer records a span per tool call.
func WithTracer(t trace.Tracer) ServerOption {
	return func(s *Server) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMetrics counts tool calls on m.
func WithMetrics(m *metrics.Registry) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a server with no tools.
func NewServer(name, version string, opts ...ServerOption) *Server {
	s := &Server{
		info:     ImplementationInfo{Name: name, Version: version},
		tracer:   tracing.NoopTracer(),
		tools:    make(map[string]Tool),
		handlers: make(map[string]ToolHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTool registers a tool with its handler, replacing any tool of the same name.
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[tool.Name] = tool
	s.handlers[tool.Name] = handler
	log.Debug(log.CatMCP, "registered tool", "name", tool.Name)
}

// Initialized reports whether the client sent notifications/initialized.
func (s *Server) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Serve reads requests from r and writes responses to w until r reaches EOF
// or ctx is cancelled. Requests are handled one at a time, in order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.writeMu.Lock()
	s.writer = w
	s.writeMu.Unlock()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		log.Debug(log.CatMCP, "received message", "raw", string(line))

		if resp := s.HandleMessage(ctx, line); resp != nil {
			s.send(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return ctx.Err()
}

// HandleMessage processes one JSON-RPC frame. It returns nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return NewErrorResponse(nil, NewParseError(err.Error()))
	}
	if req.IsNotification() {
		s.handleNotification(&req)
		return nil
	}
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		return NewErrorResponse(req.ID, NewInvalidRequest("jsonrpc must be \"2.0\" and method is required"))
	}

	log.Debug(log.CatMCP, "handling request", "method", req.Method)

	var result any
	var rpcErr *RPCError
	switch req.Method {
	case "initialize":
		result, rpcErr = s.handleInitialize(req.Params)
	case "tools/list":
		result = s.handleToolsList()
	case "tools/call":
		result, rpcErr = s.handleToolsCall(ctx, req.Params)
	case "ping":
		result = struct{}{}
	default:
		rpcErr = NewMethodNotFound(req.Method)
	}

	if rpcErr != nil {
		return NewErrorResponse(req.ID, rpcErr)
	}
	return NewResponse(req.ID, result)
}

func (s *Server) handleNotification(req *Request) {
	switch req.Method {
	case "notifications/initialized":
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		log.Debug(log.CatMCP, "client initialized")
	default:
		log.Debug(log.CatMCP, "ignoring notification", "method", req.Method)
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (any, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, NewInvalidParams(err.Error())
		}
	}

	log.Info(log.CatMCP, "initialize",
		"client", p.ClientInfo.Name,
		"client_version", p.ClientInfo.Version,
		"protocol", p.ProtocolVersion)

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ServerCapability{Tools: &ToolsCapability{}},
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

// handleToolsList returns tools sorted by name.
func (s *Server) handleToolsList() ToolsListResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]Tool, 0, len(s.tools))
	for _, tool := range s.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return ToolsListResult{Tools: tools}
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p ToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewInvalidParams(err.Error())
	}

	s.mu.RLock()
	handler, ok := s.handlers[p.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, NewToolNotFound(p.Name)
	}

	ctx, span := s.tracer.Start(ctx, tracing.SpanPrefixMCP+p.Name,
		trace.WithAttributes(attribute.String(tracing.AttrMCPToolName, p.Name)))

	start := time.Now()
	result, err := handler(ctx, p.Arguments)
	if err == nil && result == nil {
		err = errors.New("tool returned no result")
	}
	if err == nil && result.IsError && len(result.Content) > 0 {
		err = errors.New(result.Content[0].Text)
	}
	tracing.End(span, err)
	s.metrics.ToolCall(p.Name, err == nil)

	if err != nil {
		log.Warn(log.CatMCP, "tool call failed", "name", p.Name, "duration", time.Since(start), "error", err)
		if result == nil || !result.IsError {
			result = ErrorResult(err.Error())
		}
		return result, nil
	}

	log.Debug(log.CatMCP, "tool call", "name", p.Name, "duration", time.Since(start))
	return result, nil
}

// send writes resp as one line.
func (s *Server) send(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.ErrorErr(log.CatMCP, "failed to marshal response", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writer == nil {
		return
	}

	data = append(data, '\n')
	if _, err := s.writer.Write(data); err != nil {
		log.ErrorErr(log.CatMCP, "failed to write response", err)
		return
	}
	log.Debug(log.CatMCP, "sent response", "raw", string(data[:len(data)-1]))
}
