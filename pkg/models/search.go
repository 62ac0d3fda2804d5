package models

// SearchResultKind distinguishes what a search result refers to.
type SearchResultKind string

const (
	SearchResultKindNode     SearchResultKind = "node"
	SearchResultKindTemplate SearchResultKind = "template"
)

// SearchResult is an ephemeral, token-budgeted projection of a catalog entry
// plus its similarity to the query. The full descriptor is never returned.
type SearchResult struct {
	Kind        SearchResultKind `json:"kind"`
	Name        string           `json:"name"`
	Label       string           `json:"label,omitempty"`
	Category    string           `json:"category,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Description string           `json:"description"` // Truncated summary
	Similarity  float64          `json:"similarity"`  // Cosine-derived, in [0,1]
}
