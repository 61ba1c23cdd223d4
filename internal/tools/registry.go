// Package tools is the catalog of operations an assistant may call against
// the family graph, and the dispatcher that runs them.
package tools

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	GetPeople    = "get_people"
	GetMarriages = "get_marriages"
	AddPerson    = "add_person"
	UpdatePerson = "update_person"
)

var genderEnum = []string{"Male", "Female", "Other", "Unknown"}

// Registry is built once and never mutated. Every model backend and the MCP
// server are handed the same tool definitions.
type Registry struct {
	tools  []mcp.Tool
	byName map[string]mcp.Tool
}

func NewRegistry() *Registry {
	tools := []mcp.Tool{
		mcp.NewTool(GetPeople,
			mcp.WithDescription("Get a list of all people in the genealogy database."),
		),
		mcp.NewTool(GetMarriages,
			mcp.WithDescription("Get a list of all marriages in the genealogy database."),
		),
		mcp.NewTool(AddPerson,
			mcp.WithDescription("Add a new person to the genealogy database."),
			mcp.WithString("first_name", mcp.Required(), mcp.Description("The person's first name.")),
			mcp.WithString("last_name", mcp.Required(), mcp.Description("The person's last name.")),
			mcp.WithString("gender", mcp.Enum(genderEnum...), mcp.Description("The person's gender.")),
			mcp.WithString("birth_date", mcp.Description("Birth date in YYYY-MM-DD format.")),
			mcp.WithString("death_date", mcp.Description("Death date in YYYY-MM-DD format.")),
		),
		mcp.NewTool(UpdatePerson,
			mcp.WithDescription("Update an existing person's information."),
			mcp.WithString("person_id", mcp.Required(), mcp.Description("The ID of the person to update.")),
			mcp.WithObject("updates",
				mcp.Required(),
				mcp.Description("The fields to update. Set mother_id or father_id to an empty string to clear it."),
				mcp.Properties(map[string]any{
					"first_name":     map[string]any{"type": "string"},
					"last_name":      map[string]any{"type": "string"},
					"gender":         map[string]any{"type": "string", "enum": genderEnum},
					"birth_date":     map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"death_date":     map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"mother_id":      map[string]any{"type": "string"},
					"father_id":      map[string]any{"type": "string"},
					"is_home_person": map[string]any{"type": "boolean", "description": "Make this person the home person."},
				}),
			),
		),
	}

	byName := make(map[string]mcp.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	return &Registry{tools: tools, byName: byName}
}

// Tools returns a copy of the catalog in declaration order.
func (r *Registry) Tools() []mcp.Tool {
	out := make([]mcp.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *Registry) Lookup(name string) (mcp.Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
