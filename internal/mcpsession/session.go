// Package mcpsession implements McpSession: the per-connection MCP
// protocol state machine that routes tools/prompts/resources/ping/cancel
// requests, independent of which Transport framed them.
package mcpsession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/erpclient"
	"github.com/tombee/odoo-mcp/internal/metadatacache"
	"github.com/tombee/odoo-mcp/internal/metrics"
)

// State is the session's position in the initialize->operational->
// terminated state machine of §4.8.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Registry is the subset of registry.Registry a session routes against.
type Registry interface {
	ListTools() ([]config.ToolDescriptor, error)
	LookupTool(name string) (config.ToolDescriptor, error)
	ListPrompts() []config.PromptDescriptor
	LookupPrompt(name string) (config.PromptDescriptor, error)
	ServerMetadata() config.ServerMetadata
}

// Dispatcher is the subset of dispatcher.Dispatcher a session calls into.
type Dispatcher interface {
	Dispatch(ctx context.Context, tool config.ToolDescriptor, args map[string]interface{}) (interface{}, error)
}

// ClientPool is the subset of clientpool.Pool resource reads need.
type ClientPool interface {
	Get(name string) (erpclient.Client, error)
}

// MetadataCache is the subset of metadatacache.Cache resource reads need.
type MetadataCache interface {
	Get(ctx context.Context, instance, model string, loader metadatacache.Loader) (*erpclient.ModelMetadata, error)
}

// InstanceLister is the subset of config.Store resource reads need.
type InstanceLister interface {
	LoadInstances() (*config.InstancesDocument, error)
}

// Session is one McpSession: one connected MCP client, independent of
// transport framing.
type Session struct {
	ID string

	registry   Registry
	dispatcher Dispatcher
	pool       ClientPool
	cache      MetadataCache
	instances  InstanceLister
	logger     *slog.Logger
	metrics    *metrics.Registry

	mu                 sync.Mutex
	state              State
	clientProtocol     string
	clientCapabilities map[string]interface{}
	cancelled          map[string]bool
}

// Config bundles a Session's collaborators.
type Config struct {
	Registry   Registry
	Dispatcher Dispatcher
	Pool       ClientPool
	Cache      MetadataCache
	Instances  InstanceLister
	Logger     *slog.Logger
	Metrics    *metrics.Registry
}

// New constructs an uninitialized Session.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		ID:         uuid.NewString(),
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		pool:       cfg.Pool,
		cache:      cfg.Cache,
		instances:  cfg.Instances,
		logger:     logger.With("session", ""),
		metrics:    cfg.Metrics,
		cancelled:  make(map[string]bool),
	}
	s.logger = logger.With("session_id", s.ID)
	if s.metrics != nil {
		s.metrics.McpSessionsActive.Inc()
	}
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProtocolVersion returns the protocol version the client declared at
// initialize, or "" before initialize completes.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientProtocol
}

// Close transitions the session to Terminated, releasing its slot in
// the active-sessions gauge. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	already := s.state == StateTerminated
	s.state = StateTerminated
	s.mu.Unlock()
	if !already && s.metrics != nil {
		s.metrics.McpSessionsActive.Dec()
	}
}

// Cancel marks requestID for cooperative cancellation (§4.8): any
// in-flight Handle call for that ID observes it at its next checkpoint.
func (s *Session) Cancel(requestID string) {
	s.mu.Lock()
	s.cancelled[requestID] = true
	s.mu.Unlock()
}

func (s *Session) isCancelled(requestID string) bool {
	if requestID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[requestID]
}

func (s *Session) clearCancelled(requestID string) {
	s.mu.Lock()
	delete(s.cancelled, requestID)
	s.mu.Unlock()
}

// initializeParams is the subset of MCP's initialize params this
// session records.
type initializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
}

// Handle routes one JSON-RPC method call and returns its result value
// (to be wrapped in a jsonrpc.Response by the caller) or an error.
// requestID is used only for cancellation bookkeeping; it may be empty
// for a notification.
func (s *Session) Handle(ctx context.Context, requestID, method string, params json.RawMessage) (interface{}, error) {
	defer s.clearCancelled(requestID)

	if method == "initialize" {
		return s.handleInitialize(params)
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateInitialized {
		err := ErrProtocol(fmt.Sprintf("method %q called before initialize", method), nil)
		s.Close()
		return nil, err
	}

	if s.isCancelled(requestID) {
		return nil, ErrCancelled(requestID)
	}

	switch method {
	case "ping":
		return map[string]interface{}{}, nil
	case "tools/list":
		return s.handleToolsList()
	case "tools/call":
		return s.handleToolsCall(ctx, requestID, params)
	case "prompts/list":
		return s.handlePromptsList(), nil
	case "prompts/get":
		return s.handlePromptsGet(params)
	case "resources/list":
		return s.handleResourcesList()
	case "resources/read":
		return s.handleResourcesRead(ctx, params)
	default:
		return nil, ErrProtocol(fmt.Sprintf("unknown method %q", method), nil)
	}
}

func (s *Session) handleInitialize(params json.RawMessage) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return nil, ErrProtocol("initialize called more than once", nil)
	}

	var in initializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, ErrProtocol("malformed initialize params", err)
		}
	}
	s.clientProtocol = in.ProtocolVersion
	s.clientCapabilities = in.Capabilities
	s.state = StateInitialized

	meta := s.registry.ServerMetadata()
	return map[string]interface{}{
		"protocolVersion": meta.ProtocolVersionDefault,
		"serverInfo": map[string]interface{}{
			"name": meta.ServerName,
		},
		"instructions": meta.Instructions,
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{},
			"prompts":   map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
	}, nil
}

func (s *Session) handleToolsList() (interface{}, error) {
	tools, err := s.registry.ListTools()
	if err != nil {
		return nil, ErrProtocol("listing tools", err)
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, toMCPTool(t))
	}
	return map[string]interface{}{"tools": out}, nil
}

type toolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (s *Session) handleToolsCall(ctx context.Context, requestID string, params json.RawMessage) (interface{}, error) {
	var in toolCallParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, ErrProtocol("malformed tools/call params", err)
	}

	tool, err := s.registry.LookupTool(in.Name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if s.isCancelled(requestID) {
		return nil, ErrCancelled(requestID)
	}

	result, err := s.dispatcher.Dispatch(ctx, tool, in.Arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if s.isCancelled(requestID) {
		return nil, ErrCancelled(requestID)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, ErrProtocol("marshalling tool result", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
	}, nil
}

func (s *Session) handlePromptsList() interface{} {
	prompts := s.registry.ListPrompts()
	return map[string]interface{}{"prompts": prompts}
}

type promptGetParams struct {
	Name string `json:"name"`
}

func (s *Session) handlePromptsGet(params json.RawMessage) (interface{}, error) {
	var in promptGetParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, ErrProtocol("malformed prompts/get params", err)
	}
	prompt, err := s.registry.LookupPrompt(in.Name)
	if err != nil {
		return nil, ErrToolNotFound(in.Name)
	}
	return map[string]interface{}{
		"description": prompt.Description,
		"messages": []map[string]interface{}{
			{"role": "user", "content": map[string]interface{}{"type": "text", "text": prompt.Content}},
		},
	}, nil
}

func (s *Session) handleResourcesList() (interface{}, error) {
	instances, err := s.ListResources()
	if err != nil {
		return nil, ErrProtocol("listing resources", err)
	}
	resources := make([]map[string]interface{}, 0, len(instances)*2+1)
	resources = append(resources, map[string]interface{}{
		"uri":  "odoo://instances",
		"name": "Configured ERP instances",
	})
	for _, inst := range instances {
		resources = append(resources,
			map[string]interface{}{
				"uri":  fmt.Sprintf("odoo://%s/models", inst.Name),
				"name": fmt.Sprintf("%s: model listing", inst.Name),
			},
		)
	}
	return map[string]interface{}{"resources": resources}, nil
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

func (s *Session) handleResourcesRead(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var in resourceReadParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, ErrProtocol("malformed resources/read params", err)
	}
	contents, err := s.ReadResource(ctx, in.URI)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(contents)
	if err != nil {
		return nil, ErrProtocol("marshalling resource contents", err)
	}
	return map[string]interface{}{
		"contents": []map[string]interface{}{
			{"uri": in.URI, "mimeType": "application/json", "text": string(data)},
		},
	}, nil
}

func toMCPTool(t config.ToolDescriptor) mcp.Tool {
	schema := mcp.ToolInputSchema{Type: "object"}
	if t.InputSchema != nil {
		if props, ok := t.InputSchema["properties"].(map[string]interface{}); ok {
			schema.Properties = props
		}
		if required, ok := t.InputSchema["required"].([]string); ok {
			schema.Required = required
		} else if rawRequired, ok := t.InputSchema["required"].([]interface{}); ok {
			for _, r := range rawRequired {
				if name, ok := r.(string); ok {
					schema.Required = append(schema.Required, name)
				}
			}
		}
	}
	return mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}
