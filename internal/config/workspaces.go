package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/zjrosen/linearmcp/internal/workspace"
)

// WorkspaceSource is where the workspace credentials came from: a single
// linear_api_key (SingleKey) or a linear_workspaces mapping (MultiKey).
type WorkspaceSource interface {
	Resolve() []workspace.Workspace
	isWorkspaceSource()
}

// SingleKey is one credential exposed as the "default" workspace.
type SingleKey struct {
	APIKey string
}

func (s SingleKey) Resolve() []workspace.Workspace {
	return []workspace.Workspace{{Name: DefaultWorkspaceName, APIKey: s.APIKey}}
}

func (SingleKey) isWorkspaceSource() {}

// MultiKey is an ordered set of named credentials.
type MultiKey struct {
	Workspaces []workspace.Workspace
}

func (m MultiKey) Resolve() []workspace.Workspace {
	out := make([]workspace.Workspace, len(m.Workspaces))
	copy(out, m.Workspaces)
	return out
}

func (MultiKey) isWorkspaceSource() {}

// ConfiguredWorkspaces returns the linear_workspaces entries set in v,
// ignoring linear_api_key. Required settings are not validated.
func ConfiguredWorkspaces(v *viper.Viper) ([]workspace.Workspace, error) {
	ws, err := parseWorkspaces(v.Get("linear_workspaces"))
	if err != nil {
		return nil, fmt.Errorf("linear_workspaces: %w", err)
	}
	return ws, nil
}

// parseWorkspaces accepts the forms linear_workspaces can take:
//
//   - a JSON object string, {"ios": "lin_api_x", "backend": "lin_api_y"},
//     as set in LINEAR_WORKSPACES. Document order is kept.
//   - a YAML list of {name, api_key} entries. List order is kept.
//   - a YAML mapping of name to key. Viper lower-cases and reorders mapping
//     keys, so names are sorted; use the list form to control probe order.
//
// An empty string or mapping yields no workspaces.
func parseWorkspaces(raw any) ([]workspace.Workspace, error) {
	var ws []workspace.Workspace
	var err error

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		ws, err = parseWorkspacesJSON(v)
	case []any:
		ws, err = parseWorkspacesList(v)
	case map[string]any:
		ws, err = parseWorkspacesMap(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = val
		}
		ws, err = parseWorkspacesMap(m)
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil {
		return nil, err
	}
	return ws, checkWorkspaces(ws)
}

// parseWorkspacesJSON walks the object token by token so key order survives.
func parseWorkspacesJSON(s string) ([]workspace.Workspace, error) {
	dec := json.NewDecoder(strings.NewReader(s))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected a JSON object mapping workspace names to API keys")
	}

	var ws []workspace.Workspace
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		name := tok.(string) // object keys are always strings

		var key string
		if err := dec.Decode(&key); err != nil {
			return nil, fmt.Errorf("workspace %q: API key must be a string: %w", name, err)
		}
		ws = append(ws, workspace.Workspace{Name: name, APIKey: key})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return ws, nil
}

func parseWorkspacesList(items []any) ([]workspace.Workspace, error) {
	ws := make([]workspace.Workspace, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d: expected {name, api_key}, got %T", i, item)
		}
		name, _ := entry["name"].(string)
		key, _ := entry["api_key"].(string)
		ws = append(ws, workspace.Workspace{Name: name, APIKey: key})
	}
	return ws, nil
}

func parseWorkspacesMap(m map[string]any) ([]workspace.Workspace, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	ws := make([]workspace.Workspace, 0, len(names))
	for _, name := range names {
		key, ok := m[name].(string)
		if !ok {
			return nil, fmt.Errorf("workspace %q: API key must be a string, got %T", name, m[name])
		}
		ws = append(ws, workspace.Workspace{Name: name, APIKey: key})
	}
	return ws, nil
}

func checkWorkspaces(ws []workspace.Workspace) error {
	seen := make(map[string]bool, len(ws))
	for i, w := range ws {
		if w.Name == "" {
			return fmt.Errorf("workspace %d: name is required", i)
		}
		if w.APIKey == "" {
			return fmt.Errorf("workspace %q: api_key is required", w.Name)
		}
		if seen[w.Name] {
			return fmt.Errorf("workspace %q configured more than once", w.Name)
		}
		seen[w.Name] = true
	}
	return nil
}
