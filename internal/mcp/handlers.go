package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zjrosen/linearmcp/internal/linear"
	"github.com/zjrosen/linearmcp/internal/workspace"
)

// Registry is the workspace routing the tools depend on. *workspace.Registry satisfies it.
type Registry interface {
	ResolveTeam(ctx context.Context, teamKey string) (workspace.Resolution, error)
	ResolveIssue(ctx context.Context, identifier string) (workspace.Resolution, error)
	ListAllWorkspacesWithTeams(ctx context.Context) workspace.Report
}

var _ Registry = (*workspace.Registry)(nil)

// Handlers implements the Linear tools on top of a Registry.
type Handlers struct {
	registry Registry
}

func NewHandlers(registry Registry) *Handlers {
	return &Handlers{registry: registry}
}

// Register adds every tool to s.
func (h *Handlers) Register(s *Server) {
	s.RegisterTool(listWorkspacesTool, h.ListWorkspaces)
	s.RegisterTool(resolveWorkspaceTool, h.ResolveWorkspace)
	s.RegisterTool(getIssueTool, h.GetIssue)
}

// ListWorkspaces handles linear_list_workspaces.
func (h *Handlers) ListWorkspaces(ctx context.Context, _ json.RawMessage) (*ToolCallResult, error) {
	return StructuredResult(h.registry.ListAllWorkspacesWithTeams(ctx))
}

type resolveWorkspaceArgs struct {
	TeamKey    string `json:"team_key"`
	Identifier string `json:"identifier"`
}

// ResolvedWorkspace is the structured result of linear_resolve_workspace.
type ResolvedWorkspace struct {
	Workspace string `json:"workspace"`
	TeamKey   string `json:"team_key"`
}

// ResolveWorkspace handles linear_resolve_workspace.
func (h *Handlers) ResolveWorkspace(ctx context.Context, raw json.RawMessage) (*ToolCallResult, error) {
	var args resolveWorkspaceArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	hasTeamKey := strings.TrimSpace(args.TeamKey) != ""
	hasIdentifier := strings.TrimSpace(args.Identifier) != ""

	var res workspace.Resolution
	var err error
	switch {
	case hasTeamKey && hasIdentifier:
		return nil, errors.New("pass either team_key or identifier, not both")
	case hasIdentifier:
		// Identifiers are matched exactly, surrounding whitespace included.
		res, err = h.registry.ResolveIssue(ctx, args.Identifier)
	case hasTeamKey:
		res, err = h.registry.ResolveTeam(ctx, args.TeamKey)
	default:
		return nil, errors.New("team_key or identifier is required")
	}
	if err != nil {
		return nil, err
	}
	return StructuredResult(ResolvedWorkspace{Workspace: res.Workspace, TeamKey: res.TeamKey})
}

type getIssueArgs struct {
	Identifier string `json:"identifier"`
}

// IssueResult is the result of linear_get_issue.
type IssueResult struct {
	Workspace string        `json:"workspace"`
	Issue     *linear.Issue `json:"issue"`
}

// GetIssue handles linear_get_issue.
func (h *Handlers) GetIssue(ctx context.Context, raw json.RawMessage) (*ToolCallResult, error) {
	var args getIssueArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Identifier == "" {
		return nil, errors.New("identifier is required")
	}

	res, err := h.registry.ResolveIssue(ctx, args.Identifier)
	if err != nil {
		return nil, err
	}
	name := res.Workspace

	issue, err := res.Client.GetIssue(ctx, strings.ToUpper(args.Identifier))
	if err != nil {
		return nil, fmt.Errorf("fetching %s from workspace %s: %w", args.Identifier, name, err)
	}
	if issue == nil {
		return nil, fmt.Errorf("issue '%s' not found in workspace '%s'", args.Identifier, name)
	}
	return StructuredResult(IssueResult{Workspace: name, Issue: issue})
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
