package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowvector/flowvector/pkg/breaker"
	"github.com/flowvector/flowvector/pkg/embedding"
	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/vectorindex"
)

// Snapshot is the catalog record set delivered by the refresh process.
// Records are untrusted and validated before use.
type Snapshot struct {
	Nodes     []json.RawMessage `json:"nodes"`
	Templates []json.RawMessage `json:"templates"`
}

// LoadSnapshot reads a catalog snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot %s: %w", path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse catalog snapshot %s: %w", path, err)
	}

	return &snapshot, nil
}

// Stats summarizes one ingestion run.
type Stats struct {
	NodeCount     int `json:"node_count"`
	TemplateCount int `json:"template_count"`
}

// Ingestor is the consuming end of the one-way catalog path: it validates
// descriptor records, embeds their searchable text, and upserts them into the
// vector index and registry.
type Ingestor struct {
	embedder     embedding.Provider
	embedBreaker *breaker.Breaker
	index        *vectorindex.Index
	registry     *Registry
	logger       *slog.Logger

	nodeSchema     *gojsonschema.Schema
	templateSchema *gojsonschema.Schema
}

// NewIngestor creates an ingestor. The embed breaker guards the embedding
// provider during ingestion runs exactly as it does during searches.
func NewIngestor(
	logger *slog.Logger,
	embedder embedding.Provider,
	embedBreaker *breaker.Breaker,
	index *vectorindex.Index,
	registry *Registry,
) (*Ingestor, error) {
	nodeSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(nodeDescriptorSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile node descriptor schema: %w", err)
	}

	templateSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(templateDescriptorSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile template descriptor schema: %w", err)
	}

	return &Ingestor{
		embedder:       embedder,
		embedBreaker:   embedBreaker,
		index:          index,
		registry:       registry,
		logger:         logger.With("module", "catalog"),
		nodeSchema:     nodeSchema,
		templateSchema: templateSchema,
	}, nil
}

// Ingest validates and indexes every record in the snapshot. A record that
// fails schema validation fails the whole run; a half-applied catalog is
// worse than a stale one.
func (ing *Ingestor) Ingest(ctx context.Context, snapshot *Snapshot) (*Stats, error) {
	ing.index.EnsureCollection(NodesCollection)
	ing.index.EnsureCollection(TemplatesCollection)

	nodes, err := ing.parseNodes(snapshot.Nodes)
	if err != nil {
		return nil, err
	}

	templates, err := ing.parseTemplates(snapshot.Templates)
	if err != nil {
		return nil, err
	}

	if err := ing.indexNodes(ctx, nodes); err != nil {
		return nil, err
	}

	if err := ing.indexTemplates(ctx, templates); err != nil {
		return nil, err
	}

	for _, node := range nodes {
		ing.registry.RegisterNode(node)
	}

	for _, template := range templates {
		ing.registry.RegisterTemplate(template)
	}

	stats := &Stats{NodeCount: len(nodes), TemplateCount: len(templates)}

	ing.logger.Info("Catalog ingested", "nodes", stats.NodeCount, "templates", stats.TemplateCount)

	return stats, nil
}

func (ing *Ingestor) parseNodes(records []json.RawMessage) ([]*models.NodeDescriptor, error) {
	nodes := make([]*models.NodeDescriptor, 0, len(records))

	for i, record := range records {
		if err := validateRecord(ing.nodeSchema, record); err != nil {
			return nil, fmt.Errorf("node record %d: %w", i, err)
		}

		var descriptor models.NodeDescriptor
		if err := json.Unmarshal(record, &descriptor); err != nil {
			return nil, fmt.Errorf("node record %d: %w", i, err)
		}

		nodes = append(nodes, &descriptor)
	}

	return nodes, nil
}

func (ing *Ingestor) parseTemplates(records []json.RawMessage) ([]*models.TemplateDescriptor, error) {
	templates := make([]*models.TemplateDescriptor, 0, len(records))

	for i, record := range records {
		if err := validateRecord(ing.templateSchema, record); err != nil {
			return nil, fmt.Errorf("template record %d: %w", i, err)
		}

		var descriptor models.TemplateDescriptor
		if err := json.Unmarshal(record, &descriptor); err != nil {
			return nil, fmt.Errorf("template record %d: %w", i, err)
		}

		templates = append(templates, &descriptor)
	}

	return templates, nil
}

func (ing *Ingestor) indexNodes(ctx context.Context, nodes []*models.NodeDescriptor) error {
	if len(nodes) == 0 {
		return nil
	}

	texts := make([]string, len(nodes))
	for i, node := range nodes {
		texts[i] = nodeSearchText(node)
	}

	vectors, err := ing.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed node descriptors: %w", err)
	}

	entries := make([]vectorindex.Entry, len(nodes))
	for i, node := range nodes {
		entries[i] = vectorindex.Entry{
			ID:     node.Name,
			Vector: vectors[i],
			Metadata: map[string]any{
				"name":        node.Name,
				"label":       node.Label,
				"category":    string(node.Category),
				"description": node.Description,
			},
		}
	}

	return ing.index.UpsertBatch(NodesCollection, entries)
}

func (ing *Ingestor) indexTemplates(ctx context.Context, templates []*models.TemplateDescriptor) error {
	if len(templates) == 0 {
		return nil
	}

	texts := make([]string, len(templates))
	for i, template := range templates {
		texts[i] = templateSearchText(template)
	}

	vectors, err := ing.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed template descriptors: %w", err)
	}

	entries := make([]vectorindex.Entry, len(templates))
	for i, template := range templates {
		entries[i] = vectorindex.Entry{
			ID:     template.TemplateID,
			Vector: vectors[i],
			Metadata: map[string]any{
				"template_id": template.TemplateID,
				"name":        template.Name,
				"description": template.Description,
				"tags":        strings.Join(template.Tags, ","),
			},
		}
	}

	return ing.index.UpsertBatch(TemplatesCollection, entries)
}

func (ing *Ingestor) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if ing.embedBreaker == nil {
		return ing.embedder.EmbedBatch(ctx, texts)
	}

	return breaker.Execute(ctx, ing.embedBreaker, func(ctx context.Context) ([][]float32, error) {
		return ing.embedder.EmbedBatch(ctx, texts)
	})
}

func validateRecord(schema *gojsonschema.Schema, record json.RawMessage) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(record))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("invalid descriptor: %s", strings.Join(messages, "; "))
	}

	return nil
}

func nodeSearchText(node *models.NodeDescriptor) string {
	return strings.Join([]string{node.Name, node.Label, string(node.Category), node.Description}, " ")
}

func templateSearchText(template *models.TemplateDescriptor) string {
	parts := []string{template.Name, template.Description}
	parts = append(parts, template.Tags...)

	return strings.Join(parts, " ")
}
