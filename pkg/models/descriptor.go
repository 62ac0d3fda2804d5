// Package models defines the core domain models for vector-backed flow construction.
package models

// CategoryType groups node descriptors in the catalog.
type CategoryType string

const (
	CategoryTypeModel     CategoryType = "model"     // Language/chat model nodes
	CategoryTypeMemory    CategoryType = "memory"    // Conversation/state memory nodes
	CategoryTypeChain     CategoryType = "chain"     // Composition nodes (chains, agents)
	CategoryTypeTool      CategoryType = "tool"      // External tool nodes
	CategoryTypeTransform CategoryType = "transform" // Data shaping nodes
	CategoryTypeTrigger   CategoryType = "trigger"   // Entry-point nodes
)

// InputPort describes one typed input slot on a node type.
type InputPort struct {
	Name     string   `json:"name"     validate:"required"`
	Types    []string `json:"types"    validate:"required,min=1"` // Accepted type tags
	Required bool     `json:"required"`
	Default  any      `json:"default,omitempty"` // Literal default satisfying the port when unconnected
}

// OutputPort describes one typed output slot on a node type.
type OutputPort struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required"` // Produced type tag
}

// NodeDescriptor is a catalog entry describing a reusable node type.
// Descriptors are produced by the catalog refresh process and are read-only
// to this engine.
type NodeDescriptor struct {
	Name                string       `json:"name"        validate:"required"` // Stable unique key
	Label               string       `json:"label"       validate:"required"`
	Description         string       `json:"description" validate:"required"`
	Category            CategoryType `json:"category"    validate:"required"`
	Inputs              []InputPort  `json:"inputs"`
	Outputs             []OutputPort `json:"outputs"`
	RequiresCredentials bool         `json:"requires_credentials,omitempty"`
	Version             int          `json:"version"`
}

// Input returns the input port with the given name, if declared.
func (d *NodeDescriptor) Input(name string) (*InputPort, bool) {
	for i := range d.Inputs {
		if d.Inputs[i].Name == name {
			return &d.Inputs[i], true
		}
	}

	return nil, false
}

// Output returns the output port with the given name, if declared.
func (d *NodeDescriptor) Output(name string) (*OutputPort, bool) {
	for i := range d.Outputs {
		if d.Outputs[i].Name == name {
			return &d.Outputs[i], true
		}
	}

	return nil, false
}

// Accepts reports whether the input port accepts the given produced type tag.
// Compatibility is plain set membership over interned tag strings.
func (p *InputPort) Accepts(outputType string) bool {
	for _, t := range p.Types {
		if t == outputType {
			return true
		}
	}

	return false
}
