// Package catalog holds the in-memory descriptor registry and the ingestion
// path that feeds descriptors into the vector index.
package catalog

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/flowvector/flowvector/pkg/models"
)

// Collection names in the vector index.
const (
	NodesCollection     = "nodes"
	TemplatesCollection = "templates"
)

// Registry is the read side of the catalog: node descriptors by type name and
// template descriptors by id. The refresh process replaces entries wholesale;
// readers see individual registrations atomically ("read committed").
type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	nodes     map[string]*models.NodeDescriptor
	templates map[string]*models.TemplateDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "catalog"),
		nodes:     make(map[string]*models.NodeDescriptor),
		templates: make(map[string]*models.TemplateDescriptor),
	}
}

// RegisterNode stores or replaces a node descriptor.
func (r *Registry) RegisterNode(descriptor *models.NodeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[descriptor.Name] = descriptor
}

// RegisterTemplate stores or replaces a template descriptor.
func (r *Registry) RegisterTemplate(descriptor *models.TemplateDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[descriptor.TemplateID] = descriptor
}

// NodeDescriptor looks up a node type by its stable name.
func (r *Registry) NodeDescriptor(name string) (*models.NodeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptor, ok := r.nodes[name]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", name)
	}

	return descriptor, nil
}

// Template looks up a template by id.
func (r *Registry) Template(id string) (*models.TemplateDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptor, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template '%s' not registered", id)
	}

	return descriptor, nil
}

// NodeCount returns the number of registered node types.
func (r *Registry) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.nodes)
}

// TemplateCount returns the number of registered templates.
func (r *Registry) TemplateCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.templates)
}
