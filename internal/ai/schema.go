package ai

import (
	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/genai"
)

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// openAITools renders the catalog as an OpenAI-style tool array.
func openAITools(tools []mcp.Tool) []openAITool {
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		props := t.InputSchema.Properties
		if props == nil {
			props = map[string]any{}
		}
		params := map[string]any{
			"type":       "object",
			"properties": props,
		}
		if len(t.InputSchema.Required) > 0 {
			params["required"] = t.InputSchema.Required
		}
		out = append(out, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// geminiDeclarations renders the catalog as Gemini function declarations.
func geminiDeclarations(tools []mcp.Tool) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.InputSchema.Properties) > 0 {
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: geminiProperties(t.InputSchema.Properties),
				Required:   t.InputSchema.Required,
			}
		}
		out = append(out, decl)
	}
	return out
}

func geminiProperties(props map[string]any) map[string]*genai.Schema {
	out := make(map[string]*genai.Schema, len(props))
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out[name] = geminiSchema(prop)
	}
	return out
}

func geminiSchema(prop map[string]any) *genai.Schema {
	s := &genai.Schema{}
	switch prop["type"] {
	case "string":
		s.Type = genai.TypeString
	case "boolean":
		s.Type = genai.TypeBoolean
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "array":
		s.Type = genai.TypeArray
	case "object":
		s.Type = genai.TypeObject
	}
	if d, ok := prop["description"].(string); ok {
		s.Description = d
	}
	if f, ok := prop["format"].(string); ok {
		s.Format = f
	}
	s.Enum = stringList(prop["enum"])
	if nested, ok := prop["properties"].(map[string]any); ok {
		s.Properties = geminiProperties(nested)
	}
	s.Required = stringList(prop["required"])
	if items, ok := prop["items"].(map[string]any); ok {
		s.Items = geminiSchema(items)
	}
	return s
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
