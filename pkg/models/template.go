package models

// TemplateDescriptor is a named, pre-validated graph pattern stored in the
// catalog. Immutable; looked up by id or by semantic search.
type TemplateDescriptor struct {
	TemplateID  string     `json:"template_id" validate:"required"`
	Name        string     `json:"name"        validate:"required"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Graph       *FlowGraph `json:"graph"       validate:"required"`
	IntendedUse string     `json:"intended_use,omitempty"`
}

// GraphCopy returns a deep copy of the embedded graph body suitable for use
// as a build starting point.
func (t *TemplateDescriptor) GraphCopy() *FlowGraph {
	return t.Graph.Copy()
}
