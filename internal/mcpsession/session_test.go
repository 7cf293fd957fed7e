package mcpsession

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/erpclient"
	"github.com/tombee/odoo-mcp/internal/metadatacache"
)

type fakeRegistry struct {
	tools   []config.ToolDescriptor
	prompts []config.PromptDescriptor
	server  config.ServerMetadata
}

func (r *fakeRegistry) ListTools() ([]config.ToolDescriptor, error) { return r.tools, nil }
func (r *fakeRegistry) LookupTool(name string) (config.ToolDescriptor, error) {
	for _, t := range r.tools {
		if t.Name == name {
			return t, nil
		}
	}
	return config.ToolDescriptor{}, assertErr("tool not found")
}
func (r *fakeRegistry) ListPrompts() []config.PromptDescriptor { return r.prompts }
func (r *fakeRegistry) LookupPrompt(name string) (config.PromptDescriptor, error) {
	for _, p := range r.prompts {
		if p.Name == name {
			return p, nil
		}
	}
	return config.PromptDescriptor{}, assertErr("prompt not found")
}
func (r *fakeRegistry) ServerMetadata() config.ServerMetadata { return r.server }

type assertErr string

func (e assertErr) Error() string { return string(e) }

type fakeDispatcher struct {
	result interface{}
	err    error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, tool config.ToolDescriptor, args map[string]interface{}) (interface{}, error) {
	return d.result, d.err
}

type fakePool struct{}

func (fakePool) Get(name string) (erpclient.Client, error) { return nil, assertErr("no clients configured") }

type fakeInstances struct{ doc *config.InstancesDocument }

func (f fakeInstances) LoadInstances() (*config.InstancesDocument, error) { return f.doc, nil }

func newTestSession() (*Session, *fakeRegistry, *fakeDispatcher) {
	reg := &fakeRegistry{
		tools: []config.ToolDescriptor{{Name: "search_partners", Description: "search"}},
		server: config.ServerMetadata{
			ServerName:             "odoo-mcp",
			ProtocolVersionDefault: "2024-11-05",
		},
	}
	disp := &fakeDispatcher{result: map[string]interface{}{"ids": []int{1}}}
	s := New(Config{
		Registry:   reg,
		Dispatcher: disp,
		Pool:       fakePool{},
		Cache:      metadatacache.New(0, nil),
		Instances:  fakeInstances{doc: &config.InstancesDocument{}},
	})
	return s, reg, disp
}

func TestSessionRejectsCallsBeforeInitialize(t *testing.T) {
	s, _, _ := newTestSession()
	_, err := s.Handle(context.Background(), "1", "tools/list", nil)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, KindProtocolError, sessErr.Kind)
	assert.Equal(t, StateTerminated, s.State())
}

func TestSessionInitializeAdvancesState(t *testing.T) {
	s, _, _ := newTestSession()
	params, _ := json.Marshal(map[string]interface{}{"protocolVersion": "2024-11-05"})
	result, err := s.Handle(context.Background(), "", "initialize", params)
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, s.State())

	envelope := result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", envelope["protocolVersion"])
}

func TestSessionDoubleInitializeIsProtocolError(t *testing.T) {
	s, _, _ := newTestSession()
	_, err := s.Handle(context.Background(), "", "initialize", nil)
	require.NoError(t, err)

	_, err = s.Handle(context.Background(), "", "initialize", nil)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, KindProtocolError, sessErr.Kind)
}

func TestSessionToolsListAfterInitialize(t *testing.T) {
	s, _, _ := newTestSession()
	_, err := s.Handle(context.Background(), "", "initialize", nil)
	require.NoError(t, err)

	result, err := s.Handle(context.Background(), "1", "tools/list", nil)
	require.NoError(t, err)
	envelope := result.(map[string]interface{})
	assert.Len(t, envelope["tools"], 1)
}

func TestSessionToolsCallUnknownToolReturnsToolResultError(t *testing.T) {
	s, _, _ := newTestSession()
	_, err := s.Handle(context.Background(), "", "initialize", nil)
	require.NoError(t, err)

	params, _ := json.Marshal(map[string]interface{}{"name": "ghost", "arguments": map[string]interface{}{}})
	result, err := s.Handle(context.Background(), "1", "tools/call", params)
	require.NoError(t, err)
	toolResult := result.(*mcp.CallToolResult)
	assert.True(t, toolResult.IsError)
}

func TestSessionToolsCallHappyPath(t *testing.T) {
	s, _, disp := newTestSession()
	disp.result = map[string]interface{}{"ids": []int{1, 2}, "count": 2}
	_, err := s.Handle(context.Background(), "", "initialize", nil)
	require.NoError(t, err)

	params, _ := json.Marshal(map[string]interface{}{"name": "search_partners", "arguments": map[string]interface{}{"model": "res.partner"}})
	result, err := s.Handle(context.Background(), "1", "tools/call", params)
	require.NoError(t, err)
	toolResult := result.(*mcp.CallToolResult)
	assert.False(t, toolResult.IsError)
	assert.Len(t, toolResult.Content, 1)
}

func TestSessionCancelMarksRequestCancelled(t *testing.T) {
	s, _, _ := newTestSession()
	_, err := s.Handle(context.Background(), "", "initialize", nil)
	require.NoError(t, err)

	s.Cancel("42")
	_, err = s.Handle(context.Background(), "42", "tools/list", nil)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, KindCancelled, sessErr.Kind)
}

func TestSessionPing(t *testing.T) {
	s, _, _ := newTestSession()
	_, err := s.Handle(context.Background(), "", "initialize", nil)
	require.NoError(t, err)

	result, err := s.Handle(context.Background(), "1", "ping", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, _, _ := newTestSession()
	s.Close()
	s.Close()
	assert.Equal(t, StateTerminated, s.State())
}
