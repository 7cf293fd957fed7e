package config

import "fmt"

// validateInputSchema enforces §3's constraint on ToolDescriptor.InputSchema:
// a JSON-Schema-shaped object restricted to `type:object` at top, with
// properties of primitive/array/object type, and none of `$ref`,
// `anyOf`/`oneOf`/`allOf`, or a type-array union anywhere. These forms
// are rejected at load time to preserve compatibility with MCP clients
// that only understand a flat property bag.
func validateInputSchema(schema map[string]interface{}) error {
	if schema == nil {
		return fmt.Errorf("inputSchema is required")
	}
	top, _ := schema["type"].(string)
	if top != "object" {
		return fmt.Errorf("inputSchema.type must be \"object\", got %v", schema["type"])
	}
	if err := rejectUnsupportedKeywords(schema, "inputSchema"); err != nil {
		return err
	}
	props, _ := schema["properties"].(map[string]interface{})
	for name, raw := range props {
		propSchema, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("inputSchema.properties.%s must be an object", name)
		}
		if err := validatePropertySchema(propSchema, "inputSchema.properties."+name); err != nil {
			return err
		}
	}
	return nil
}

func validatePropertySchema(schema map[string]interface{}, path string) error {
	if err := rejectUnsupportedKeywords(schema, path); err != nil {
		return err
	}
	switch t := schema["type"].(type) {
	case string:
		switch t {
		case "string", "number", "integer", "boolean", "null":
			// primitive, fine
		case "array":
			if items, ok := schema["items"].(map[string]interface{}); ok {
				return validatePropertySchema(items, path+".items")
			}
		case "object":
			if nested, ok := schema["properties"].(map[string]interface{}); ok {
				for name, raw := range nested {
					nestedSchema, ok := raw.(map[string]interface{})
					if !ok {
						return fmt.Errorf("%s.properties.%s must be an object", path, name)
					}
					if err := validatePropertySchema(nestedSchema, path+".properties."+name); err != nil {
						return err
					}
				}
			}
		default:
			return fmt.Errorf("%s.type %q is not a supported primitive/array/object type", path, t)
		}
	case nil:
		return fmt.Errorf("%s.type is required", path)
	default:
		// A JSON array here is the type-array union form, rejected here.
		return fmt.Errorf("%s.type must be a single string, not a union", path)
	}
	return nil
}

func rejectUnsupportedKeywords(schema map[string]interface{}, path string) error {
	for _, forbidden := range []string{"$ref", "anyOf", "oneOf", "allOf"} {
		if _, present := schema[forbidden]; present {
			return fmt.Errorf("%s: %q is not supported", path, forbidden)
		}
	}
	return nil
}
