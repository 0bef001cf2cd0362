// Package linear is a minimal Linear GraphQL client scoped to one workspace
// credential. It covers the calls the workspace registry and MCP tools need:
// team lookup, team listing and issue lookup.
package linear

import (
	"errors"
	"fmt"
)

// Team is a Linear team.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// IssueState is the workflow state of an issue.
type IssueState struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Issue is a Linear issue.
type Issue struct {
	ID          string     `json:"id"`
	Identifier  string     `json:"identifier"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url"`
	Priority    int        `json:"priority"`
	State       IssueState `json:"state"`
	Team        Team       `json:"team"`
}

// ErrClient is matched by every error returned from a Client call.
var ErrClient = errors.New("linear client error")

// ClientError describes a failed Linear API call. StatusCode is zero for
// transport failures and GraphQL-level errors.
type ClientError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ClientError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("linear %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("linear %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("linear %s: %s", e.Op, e.Message)
	}
}

func (e *ClientError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrClient) match any ClientError.
func (e *ClientError) Is(target error) bool { return target == ErrClient }
