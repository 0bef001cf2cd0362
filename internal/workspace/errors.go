package workspace

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is.
var (
	ErrUnknownWorkspace  = errors.New("unknown workspace")
	ErrTeamNotFound      = errors.New("team not found")
	ErrInvalidIdentifier = errors.New("invalid issue identifier format")
	ErrNoWorkspaces      = errors.New("no workspaces configured")
)

// UnknownWorkspaceError is returned when a workspace name is not configured.
type UnknownWorkspaceError struct {
	Name      string
	Available []string
}

func (e *UnknownWorkspaceError) Error() string {
	return fmt.Sprintf("workspace '%s' not configured. Available: %s",
		e.Name, strings.Join(e.Available, ", "))
}

func (e *UnknownWorkspaceError) Is(target error) bool { return target == ErrUnknownWorkspace }

// TeamNotFoundError is returned when no workspace knows a team key. TeamKey
// is the upper-cased key: callers that differ only in case share one probe and
// therefore one error.
type TeamNotFoundError struct {
	TeamKey  string
	Searched []string
}

func (e *TeamNotFoundError) Error() string {
	return fmt.Sprintf("team '%s' not found in any workspace. Searched workspaces: %s. "+
		"Use linear_list_workspaces to see available teams.",
		e.TeamKey, strings.Join(e.Searched, ", "))
}

func (e *TeamNotFoundError) Is(target error) bool { return target == ErrTeamNotFound }

// InvalidIdentifierError is returned for identifiers not shaped like TEAM-123.
type InvalidIdentifierError struct {
	Identifier string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid issue identifier format: '%s'. Expected format: TEAM-123 (e.g., FAVRES-123)",
		e.Identifier)
}

func (e *InvalidIdentifierError) Is(target error) bool { return target == ErrInvalidIdentifier }
