package mcp

// Tool names.
const (
	ToolListWorkspaces   = "linear_list_workspaces"
	ToolResolveWorkspace = "linear_resolve_workspace"
	ToolGetIssue         = "linear_get_issue"
)

// Instructions is sent to clients during initialize.
const Instructions = `Linear tools spanning several workspaces.
Team keys and issue identifiers (TEAM-123) are routed to the workspace that owns the team.
Call linear_list_workspaces to see which teams live where.`

var teamSchema = &PropertySchema{
	Type: "object",
	Properties: map[string]*PropertySchema{
		"key":  {Type: "string"},
		"name": {Type: "string"},
		"id":   {Type: "string"},
	},
	Required: []string{"key", "name", "id"},
}

var listWorkspacesTool = Tool{
	Name:        ToolListWorkspaces,
	Title:       "List workspaces",
	Description: "List every configured Linear workspace with its teams. A workspace whose listing failed carries an error and no teams.",
	InputSchema: &InputSchema{Type: "object"},
	OutputSchema: &OutputSchema{
		Type: "object",
		Properties: map[string]*PropertySchema{
			"workspaces": {
				Type: "array",
				Items: &PropertySchema{
					Type: "object",
					Properties: map[string]*PropertySchema{
						"workspace": {Type: "string"},
						"teams":     {Type: "array", Items: teamSchema},
						"error":     {Type: "string"},
					},
					Required: []string{"workspace", "teams"},
				},
			},
		},
		Required: []string{"workspaces"},
	},
}

var resolveWorkspaceTool = Tool{
	Name:        ToolResolveWorkspace,
	Title:       "Resolve workspace",
	Description: "Find the workspace that owns a team key or issue identifier. Pass exactly one of team_key or identifier.",
	InputSchema: &InputSchema{
		Type: "object",
		Properties: map[string]*PropertySchema{
			"team_key":   {Type: "string", Description: "Team key, case-insensitive (e.g. FAVRES)"},
			"identifier": {Type: "string", Description: "Issue identifier (e.g. FAVRES-123)"},
		},
	},
	OutputSchema: &OutputSchema{
		Type: "object",
		Properties: map[string]*PropertySchema{
			"workspace": {Type: "string"},
			"team_key":  {Type: "string"},
		},
		Required: []string{"workspace", "team_key"},
	},
}

var getIssueTool = Tool{
	Name:        ToolGetIssue,
	Title:       "Get issue",
	Description: "Fetch an issue by identifier from the workspace that owns its team.",
	InputSchema: &InputSchema{
		Type: "object",
		Properties: map[string]*PropertySchema{
			"identifier": {Type: "string", Description: "Issue identifier (e.g. FAVRES-123)"},
		},
		Required: []string{"identifier"},
	},
}

// Tools returns every tool definition.
func Tools() []Tool {
	return []Tool{listWorkspacesTool, resolveWorkspaceTool, getIssueTool}
}
