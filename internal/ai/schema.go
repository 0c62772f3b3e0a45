package ai

import (
	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/genai"
)

// Type is a JSON schema primitive type.
type Type string

// Schema types understood by both backends.
const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Schema describes the JSON shape a structured call must return. It is
// converted to each backend's own schema type.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
	Enum        []string
}

var genaiTypes = map[Type]genai.Type{
	TypeObject:  genai.TypeObject,
	TypeArray:   genai.TypeArray,
	TypeString:  genai.TypeString,
	TypeInteger: genai.TypeInteger,
	TypeNumber:  genai.TypeNumber,
	TypeBoolean: genai.TypeBoolean,
}

func (s *Schema) toGenai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiTypes[s.Type],
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       s.Items.toGenai(),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.toGenai()
		}
	}
	return out
}

func (s *Schema) toJSONSchema() jsonschema.Definition {
	if s == nil {
		return jsonschema.Definition{}
	}
	out := jsonschema.Definition{
		Type:        jsonschema.DataType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	if s.Items != nil {
		items := s.Items.toJSONSchema()
		out.Items = &items
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]jsonschema.Definition, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.toJSONSchema()
		}
	}
	return out
}
