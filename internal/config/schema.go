package config

import (
	"github.com/invopop/jsonschema"
)

// Schema describes Config as a JSON Schema, keyed by env var name.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
		FieldNameTag:               "env",
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "madgic-chat configuration"
	schema.Description = "Environment variables read by madgic-chat"
	return schema
}
