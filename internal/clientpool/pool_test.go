package clientpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/odoo-mcp/internal/config"
)

type fakeLister struct {
	mu  sync.Mutex
	doc *config.InstancesDocument
}

func (f *fakeLister) LoadInstances() (*config.InstancesDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.doc
	return &cp, nil
}

func (f *fakeLister) set(doc *config.InstancesDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = doc
}

func newFakeLister(instances ...config.InstanceDescriptor) *fakeLister {
	return &fakeLister{doc: &config.InstancesDocument{Instances: instances}}
}

func TestPoolGetReturnsSameIdentityAcrossCalls(t *testing.T) {
	lister := newFakeLister(config.InstanceDescriptor{Name: "default", URL: "https://a.example.com", APIKey: "k"})
	pool := New(lister, nil, nil, 0)

	c1, err := pool.Get("default")
	require.NoError(t, err)
	c2, err := pool.Get("default")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}

func TestPoolGetUnknownInstance(t *testing.T) {
	lister := newFakeLister()
	pool := New(lister, nil, nil, 0)

	_, err := pool.Get("ghost")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestPoolReconfigurationSwapsIdentity(t *testing.T) {
	lister := newFakeLister(config.InstanceDescriptor{Name: "default", URL: "https://a.example.com", APIKey: "k1"})
	pool := New(lister, nil, nil, 0)

	c1, err := pool.Get("default")
	require.NoError(t, err)

	lister.set(&config.InstancesDocument{Instances: []config.InstanceDescriptor{
		{Name: "default", URL: "https://a.example.com", APIKey: "k2"},
	}})

	c2, err := pool.Get("default")
	require.NoError(t, err)
	assert.NotSame(t, c1, c2, "credential change must produce a new client identity")
}

func TestPoolConcurrentGetCollapsesConstruction(t *testing.T) {
	lister := newFakeLister(config.InstanceDescriptor{Name: "default", URL: "https://a.example.com", APIKey: "k"})
	pool := New(lister, nil, nil, 0)

	var wg sync.WaitGroup
	results := make([]interface{}, 20)
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := pool.Get("default")
			require.NoError(t, err)
			results[i] = c
		}()
	}
	wg.Wait()

	first := results[0]
	for _, r := range results {
		assert.Same(t, first, r)
	}
}
