// Package config implements ConfigStore: typed load/save/validate/backup
// of the gateway's four JSON configuration documents.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Kind identifies one of the four configuration documents.
type Kind string

const (
	KindInstances Kind = "instances"
	KindTools     Kind = "tools"
	KindPrompts   Kind = "prompts"
	KindServer    Kind = "server"
)

// filename returns the fixed on-disk name for a document kind.
func (k Kind) filename() string {
	switch k {
	case KindInstances:
		return "instances.json"
	case KindTools:
		return "tools.json"
	case KindPrompts:
		return "prompts.json"
	case KindServer:
		return "server.json"
	default:
		return string(k) + ".json"
	}
}

// OpKind is a primitive ERP operation a tool descriptor can bind to.
type OpKind string

const (
	OpSearch            OpKind = "search"
	OpSearchRead        OpKind = "search_read"
	OpRead              OpKind = "read"
	OpCreate            OpKind = "create"
	OpWrite             OpKind = "write"
	OpUnlink            OpKind = "unlink"
	OpSearchCount       OpKind = "search_count"
	OpWorkflowAction    OpKind = "workflow_action"
	OpExecute           OpKind = "execute"
	OpGenerateReport    OpKind = "generate_report"
	OpGetModelMetadata  OpKind = "get_model_metadata"
	OpListModels        OpKind = "list_models"
	OpCheckAccess       OpKind = "check_access"
	OpCreateBatch       OpKind = "create_batch"
	OpDatabaseCleanup   OpKind = "database_cleanup"
	OpDeepCleanup       OpKind = "deep_cleanup"
)

var validOpKinds = map[OpKind]bool{
	OpSearch: true, OpSearchRead: true, OpRead: true, OpCreate: true,
	OpWrite: true, OpUnlink: true, OpSearchCount: true, OpWorkflowAction: true,
	OpExecute: true, OpGenerateReport: true, OpGetModelMetadata: true,
	OpListModels: true, OpCheckAccess: true, OpCreateBatch: true,
	OpDatabaseCleanup: true, OpDeepCleanup: true,
}

// OpBinding binds a tool's caller-supplied arguments to a primitive
// operation: map projects each parameter name onto a JSON-Pointer-style
// path into the caller's argument object.
type OpBinding struct {
	Type OpKind            `json:"type"`
	Map  map[string]string `json:"map"`
}

// ToolDescriptor is one callable tool, as persisted in tools.json.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	Op          OpBinding              `json:"op"`
	Guards      []string               `json:"guards,omitempty"`
}

// ToolsDocument is the top-level shape of tools.json.
type ToolsDocument struct {
	Tools []ToolDescriptor `json:"tools"`
}

// PromptDescriptor is one static prompt body, as persisted in prompts.json.
type PromptDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// PromptsDocument is the top-level shape of prompts.json.
type PromptsDocument struct {
	Prompts []PromptDescriptor `json:"prompts"`
}

// ServerMetadata is the server.json document. Extra preserves any keys
// not modeled explicitly, verbatim, for round-tripping.
type ServerMetadata struct {
	ServerName             string                 `json:"serverName"`
	Instructions           string                 `json:"instructions,omitempty"`
	ProtocolVersionDefault string                 `json:"protocolVersionDefault,omitempty"`
	Extra                  map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extra alongside the named fields.
func (s ServerMetadata) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	for k, v := range s.Extra {
		out[k] = v
	}
	out["serverName"] = s.ServerName
	if s.Instructions != "" {
		out["instructions"] = s.Instructions
	}
	if s.ProtocolVersionDefault != "" {
		out["protocolVersionDefault"] = s.ProtocolVersionDefault
	}
	return json.Marshal(out)
}

// UnmarshalJSON pulls known fields out and keeps the rest in Extra.
func (s *ServerMetadata) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["serverName"].(string); ok {
		s.ServerName = v
		delete(raw, "serverName")
	}
	if v, ok := raw["instructions"].(string); ok {
		s.Instructions = v
		delete(raw, "instructions")
	}
	if v, ok := raw["protocolVersionDefault"].(string); ok {
		s.ProtocolVersionDefault = v
		delete(raw, "protocolVersionDefault")
	}
	s.Extra = raw
	return nil
}

// InstanceDescriptor is one ERP target, as persisted in instances.json.
type InstanceDescriptor struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	DB       string `json:"db,omitempty"`
	Version  int    `json:"version,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// KeyringRef, when set, indicates APIKey/Password were moved to the
	// OS keyring by ConfigStore and should be resolved via Resolve().
	KeyringRef string `json:"keyringRef,omitempty"`
}

// InstancesDocument is the top-level shape of instances.json.
type InstancesDocument struct {
	Instances []InstanceDescriptor `json:"instances"`
}

// Legacy reports whether this instance speaks the legacy JSON-RPC
// dialect (version < 19) rather than the modern API-key dialect.
func (i InstanceDescriptor) Legacy() bool {
	return i.Version != 0 && i.Version < 19
}

// instanceDescriptorWire mirrors InstanceDescriptor but leaves Version
// untyped so UnmarshalJSON can coerce number/string/dotted-string forms
// (SPEC_FULL.md, supplemented feature #2).
type instanceDescriptorWire struct {
	Name       string      `json:"name"`
	URL        string      `json:"url"`
	DB         string      `json:"db,omitempty"`
	Version    interface{} `json:"version,omitempty"`
	APIKey     string      `json:"apiKey,omitempty"`
	Username   string      `json:"username,omitempty"`
	Password   string      `json:"password,omitempty"`
	KeyringRef string      `json:"keyringRef,omitempty"`
}

// UnmarshalJSON coerces version to an int regardless of its wire form.
func (i *InstanceDescriptor) UnmarshalJSON(data []byte) error {
	var wire instanceDescriptorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	version, err := coerceVersion(wire.Version)
	if err != nil {
		return fmt.Errorf("instance %q: %w", wire.Name, err)
	}
	i.Name = wire.Name
	i.URL = wire.URL
	i.DB = wire.DB
	i.Version = version
	i.APIKey = wire.APIKey
	i.Username = wire.Username
	i.Password = wire.Password
	i.KeyringRef = wire.KeyringRef
	return nil
}

// NormalizeURL promotes a bare host:port to an explicit http:// origin,
// per §8's boundary behavior ("localhost:8069" -> "http://localhost:8069").
func NormalizeURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("url is empty")
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return raw, nil
	}
	return "http://" + raw, nil
}

// coerceVersion accepts a JSON number, a numeric string ("17"), or a
// dotted version string ("17.0") and returns the integer major version.
func coerceVersion(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return int(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if dot := strings.IndexByte(s, '.'); dot >= 0 {
			s = s[:dot]
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid version %q: %w", v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported version type %T", raw)
	}
}
