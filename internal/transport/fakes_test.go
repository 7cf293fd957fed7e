package transport

import (
	"context"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/erpclient"
	"github.com/tombee/odoo-mcp/internal/mcpsession"
	"github.com/tombee/odoo-mcp/internal/metadatacache"
)

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

type fakeRegistry struct{ server config.ServerMetadata }

func (r fakeRegistry) ListTools() ([]config.ToolDescriptor, error) { return nil, nil }
func (r fakeRegistry) LookupTool(name string) (config.ToolDescriptor, error) {
	return config.ToolDescriptor{}, fakeErr("tool not found")
}
func (r fakeRegistry) ListPrompts() []config.PromptDescriptor { return nil }
func (r fakeRegistry) LookupPrompt(name string) (config.PromptDescriptor, error) {
	return config.PromptDescriptor{}, fakeErr("prompt not found")
}
func (r fakeRegistry) ServerMetadata() config.ServerMetadata { return r.server }

type fakeDispatcher struct{}

func (fakeDispatcher) Dispatch(ctx context.Context, tool config.ToolDescriptor, args map[string]interface{}) (interface{}, error) {
	return nil, fakeErr("no tools configured")
}

type fakePool struct{}

func (fakePool) Get(name string) (erpclient.Client, error) { return nil, fakeErr("no clients configured") }

type fakeInstanceLister struct{ names []string }

func (f fakeInstanceLister) InstanceNames() []string { return f.names }

func newFakeSession() *mcpsession.Session {
	return mcpsession.New(mcpsession.Config{
		Registry:   fakeRegistry{server: config.ServerMetadata{ServerName: "odoo-mcp", ProtocolVersionDefault: "2024-11-05"}},
		Dispatcher: fakeDispatcher{},
		Pool:       fakePool{},
		Cache:      metadatacache.New(0, nil),
		Instances:  nil,
	})
}
