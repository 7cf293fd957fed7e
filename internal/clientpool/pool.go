// Package clientpool maintains one live ErpClient per configured
// instance, reconciling against Registry/ConfigStore changes without
// interrupting in-flight callers (§4.5).
package clientpool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/erpclient"
	"github.com/tombee/odoo-mcp/internal/metrics"
	"github.com/tombee/odoo-mcp/internal/observability"
)

// InstanceLister resolves the current set of instance descriptors, by
// name, from the Registry's backing ConfigStore.
type InstanceLister interface {
	LoadInstances() (*config.InstancesDocument, error)
}

// entry is a ClientEntry: the live client plus the descriptor hash it
// was built from, so Get can detect a stale entry cheaply.
type entry struct {
	client erpclient.Client
	hash   string
}

// Pool is the ClientPool. Eviction on reconfiguration is decoupled:
// replacing the map entry does not affect a *entry a caller already
// holds a reference to, so in-flight requests finish against the old
// client (§4.5).
type Pool struct {
	lister  InstanceLister
	tracer  observability.Tracer
	metrics *metrics.Registry
	timeout time.Duration

	mu      sync.RWMutex
	entries map[string]*entry

	group singleflight.Group
}

// New constructs a Pool. lister supplies the current instance
// descriptors on every Get, so hot-reloaded instances.json is observed
// without restarting the pool.
func New(lister InstanceLister, tracer observability.Tracer, m *metrics.Registry, timeout time.Duration) *Pool {
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	if timeout == 0 {
		timeout = erpclient.DefaultTimeout
	}
	return &Pool{
		lister:  lister,
		tracer:  tracer,
		metrics: m,
		timeout: timeout,
		entries: make(map[string]*entry),
	}
}

// ErrInstanceNotFound is returned when name is absent from the current
// instances document (§8 scenario 2: removing an instance makes
// subsequent calls against it fail).
var ErrInstanceNotFound = fmt.Errorf("instance not found")

// Get returns the live client for name, constructing or reconstructing
// it if the instance's descriptor has changed since the last Get.
// Concurrent Get calls for the same uncreated/changed key collapse
// into one construction (single-flight).
func (p *Pool) Get(name string) (erpclient.Client, error) {
	doc, err := p.lister.LoadInstances()
	if err != nil {
		return nil, fmt.Errorf("clientpool: load instances: %w", err)
	}

	var desc *config.InstanceDescriptor
	for i := range doc.Instances {
		if doc.Instances[i].Name == name {
			desc = &doc.Instances[i]
			break
		}
	}
	if desc == nil {
		return nil, ErrInstanceNotFound
	}

	hash := descriptorHash(desc)

	p.mu.RLock()
	existing, ok := p.entries[name]
	p.mu.RUnlock()
	if ok && existing.hash == hash {
		return existing.client, nil
	}

	result, err, _ := p.group.Do(name+":"+hash, func() (interface{}, error) {
		p.mu.RLock()
		existing, ok := p.entries[name]
		p.mu.RUnlock()
		if ok && existing.hash == hash {
			return existing, nil
		}

		client := erpclient.New(*desc, p.timeout, p.tracer, p.metrics)
		e := &entry{client: client, hash: hash}

		p.mu.Lock()
		p.entries[name] = e
		count := len(p.entries)
		p.mu.Unlock()

		if p.metrics != nil {
			p.metrics.ClientPoolActiveClients.Set(float64(count))
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*entry).client, nil
}

// Evict removes name from the pool's live map. Any *entry already
// handed out to a caller remains valid until that caller is done with
// it; Evict only affects future Get calls.
func (p *Pool) Evict(name string) {
	p.mu.Lock()
	delete(p.entries, name)
	count := len(p.entries)
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.ClientPoolActiveClients.Set(float64(count))
	}
}

// descriptorHash hashes the fields that determine client identity, so
// unrelated document edits (e.g. another instance's credentials) don't
// force a reconnect.
func descriptorHash(desc *config.InstanceDescriptor) string {
	normalized := struct {
		URL      string
		DB       string
		Version  int
		APIKey   string
		Username string
		Password string
	}{desc.URL, desc.DB, desc.Version, desc.APIKey, desc.Username, desc.Password}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
