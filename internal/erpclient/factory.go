package erpclient

import (
	"time"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/metrics"
	"github.com/tombee/odoo-mcp/internal/observability"
)

var (
	_ Client = (*Modern)(nil)
	_ Client = (*Legacy)(nil)
)

// New selects and constructs the dialect implied by desc.Version
// (§4.4, §9: the dispatcher never sees which variant it got).
func New(desc config.InstanceDescriptor, timeout time.Duration, tracer observability.Tracer, m *metrics.Registry) Client {
	if desc.Legacy() {
		return NewLegacy(desc.Name, desc.URL, desc.DB, desc.Username, desc.Password, timeout, tracer, m)
	}
	return NewModern(desc.Name, desc.URL, desc.APIKey, timeout, tracer, m)
}
