package mcpsession

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/erpclient"
)

// resourceTemplate glob-matches an odoo:// URI (sans scheme) and reads it.
type resourceTemplate struct {
	pattern string
	read    func(ctx context.Context, s *Session, u *url.URL) (interface{}, error)
}

var resourceTemplates = []resourceTemplate{
	{pattern: "instances", read: readInstances},
	{pattern: "*/models", read: readModels},
	{pattern: "*/metadata/*", read: readMetadata},
}

// ErrResourceNotFound is returned for a URI matching no template.
type ErrResourceNotFound struct{ URI string }

func (e *ErrResourceNotFound) Error() string {
	return fmt.Sprintf("resource %q not found", e.URI)
}

const resourceScheme = "odoo"

// ReadResource dispatches a resources/read call to the matching template.
func (s *Session) ReadResource(ctx context.Context, uri string) (interface{}, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != resourceScheme {
		return nil, &ErrResourceNotFound{URI: uri}
	}
	path := strings.TrimPrefix(u.Opaque, "//")
	if path == "" {
		path = strings.TrimPrefix(u.Host+u.Path, "/")
	}

	for _, tmpl := range resourceTemplates {
		matched, err := doublestar.Match(tmpl.pattern, path)
		if err != nil {
			continue
		}
		if matched {
			return tmpl.read(ctx, s, u)
		}
	}
	return nil, &ErrResourceNotFound{URI: uri}
}

// ListResources returns the configured instance descriptors from which
// resources/list builds its entries: the fixed instances listing plus
// one models resource per instance (per-model metadata resources are
// readable but not listed).
func (s *Session) ListResources() ([]config.InstanceDescriptor, error) {
	doc, err := s.instances.LoadInstances()
	if err != nil {
		return nil, err
	}
	return doc.Instances, nil
}

func readInstances(ctx context.Context, s *Session, u *url.URL) (interface{}, error) {
	doc, err := s.instances.LoadInstances()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Instances))
	for _, inst := range doc.Instances {
		names = append(names, inst.Name)
	}
	return map[string]interface{}{"instances": names}, nil
}

func readModels(ctx context.Context, s *Session, u *url.URL) (interface{}, error) {
	instance := firstPathSegment(u)
	client, err := s.pool.Get(instance)
	if err != nil {
		return nil, err
	}

	query := u.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	models, err := client.ListModels(ctx, nil, limit, offset)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"models": models}, nil
}

func readMetadata(ctx context.Context, s *Session, u *url.URL) (interface{}, error) {
	segments := pathSegments(u)
	if len(segments) < 3 {
		return nil, &ErrResourceNotFound{URI: u.String()}
	}
	instance, model := segments[0], segments[2]

	client, err := s.pool.Get(instance)
	if err != nil {
		return nil, err
	}
	metadata, err := s.cache.Get(ctx, instance, model, func(ctx context.Context) (*erpclient.ModelMetadata, error) {
		return client.GetModelMetadata(ctx, model)
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"model": map[string]interface{}{
		"name":        metadata.Name,
		"description": metadata.Description,
		"fields":      metadata.Fields,
	}}, nil
}

func firstPathSegment(u *url.URL) string {
	segments := pathSegments(u)
	if len(segments) == 0 {
		return ""
	}
	return segments[0]
}

func pathSegments(u *url.URL) []string {
	path := strings.TrimPrefix(u.Opaque, "//")
	if path == "" {
		path = strings.TrimPrefix(u.Host+u.Path, "/")
	}
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
