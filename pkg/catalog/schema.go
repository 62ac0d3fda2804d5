package catalog

// JSON Schemas for untrusted catalog records. The engine checks shape only;
// descriptor content is owned by the refresh process.

const nodeDescriptorSchema = `{
	"type": "object",
	"required": ["name", "label", "description", "category"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"label": {"type": "string", "minLength": 1},
		"description": {"type": "string", "minLength": 1},
		"category": {"type": "string", "minLength": 1},
		"inputs": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "types"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"types": {"type": "array", "items": {"type": "string"}, "minItems": 1},
					"required": {"type": "boolean"},
					"default": {}
				}
			}
		},
		"outputs": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "type"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1}
				}
			}
		},
		"requires_credentials": {"type": "boolean"},
		"version": {"type": "integer"}
	}
}`

const templateDescriptorSchema = `{
	"type": "object",
	"required": ["template_id", "name", "graph"],
	"properties": {
		"template_id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"intended_use": {"type": "string"},
		"graph": {
			"type": "object",
			"required": ["nodes"],
			"properties": {
				"name": {"type": "string"},
				"nodes": {"type": "object"},
				"order": {"type": "array", "items": {"type": "string"}},
				"edges": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["source_node", "source_port", "target_node", "target_port"]
					}
				}
			}
		}
	}
}`
