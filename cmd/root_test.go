package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/linearmcp/internal/linear"
	"github.com/zjrosen/linearmcp/internal/presentation"
)

// fakeLinear serves the GraphQL calls the client makes, answering per API key.
// Keys missing from teams get HTTP 401.
type fakeLinear struct {
	*httptest.Server
	teams  map[string][]linear.Team
	issues map[string]linear.Issue
	calls  atomic.Int32
}

func newFakeLinear(t *testing.T, teams map[string][]linear.Team) *fakeLinear {
	t.Helper()
	f := &fakeLinear{teams: teams, issues: map[string]linear.Issue{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeLinear) handle(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	teams, ok := f.teams[r.Header.Get("Authorization")]
	if !ok {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}

	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.Contains(req.Query, "issue("):
		id, _ := req.Variables["id"].(string)
		issue, ok := f.issues[id]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": nil, "errors": []map[string]any{
				{"message": "Entity not found", "extensions": map[string]string{"code": "ENTITY_NOT_FOUND"}},
			}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"issue": issue}})
	default:
		nodes := []linear.Team{}
		key, filtered := req.Variables["key"].(string)
		for _, team := range teams {
			if !filtered || team.Key == key {
				nodes = append(nodes, team)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"teams": map[string]any{"nodes": nodes}}})
	}
}

// setupEnv points the CLI at fake and clears user config.
func setupEnv(t *testing.T, fake *fakeLinear) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LINEAR_API_KEY", "")
	t.Setenv("LINEAR_WORKSPACES", `{"ios": "lin_api_ios", "backend": "lin_api_backend"}`)
	t.Setenv("LINEAR_API_URL", fake.URL)
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_ORG", "test-org")
	t.Setenv("DEFAULT_PROJECT", "TEST")
	t.Setenv("DEFAULT_REPO", "TestRepo")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("TRACING_ENABLED", "false")
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	// Flag values persist on the package-level commands between runs.
	cfgFile, debugFlag = "", false
	listFormat, listConfigured = presentation.FormatJSON, false
	resolveFormat = presentation.FormatText
	require.NoError(t, serveCmd.Flags().Set("metrics-addr", ""))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func standardFake(t *testing.T) *fakeLinear {
	return newFakeLinear(t, map[string][]linear.Team{
		"lin_api_ios":     {{ID: "team-1", Name: "iOS App", Key: "FAVRES"}},
		"lin_api_backend": {{ID: "team-2", Name: "Backend", Key: "BACK"}, {ID: "team-3", Name: "Platform", Key: "PLAT"}},
	})
}

func TestWorkspacesList_JSON(t *testing.T) {
	fake := standardFake(t)
	setupEnv(t, fake)

	out, err := run(t, "", "workspaces:list")
	require.NoError(t, err)
	require.JSONEq(t, `{"workspaces":[
		{"workspace":"ios","teams":[{"key":"FAVRES","name":"iOS App","id":"team-1"}]},
		{"workspace":"backend","teams":[{"key":"BACK","name":"Backend","id":"team-2"},{"key":"PLAT","name":"Platform","id":"team-3"}]}
	]}`, out)
}

func TestWorkspacesList_PartialFailure(t *testing.T) {
	fake := newFakeLinear(t, map[string][]linear.Team{
		"lin_api_backend": {{ID: "team-2", Name: "Backend", Key: "BACK"}},
	})
	setupEnv(t, fake)

	out, err := run(t, "", "workspaces:list", "--format", "yaml")
	require.NoError(t, err)
	require.Contains(t, out, "workspace: ios")
	require.Contains(t, out, "HTTP 401")
	require.Contains(t, out, "key: BACK")
}

func TestWorkspacesList_AllFailed(t *testing.T) {
	fake := newFakeLinear(t, map[string][]linear.Team{})
	setupEnv(t, fake)

	_, err := run(t, "", "workspaces:list")
	require.Error(t, err)
	require.Contains(t, err.Error(), "listing failed for every workspace: ios, backend")
}

func TestWorkspacesList_ConfiguredDoesNotCallLinear(t *testing.T) {
	fake := standardFake(t)
	setupEnv(t, fake)

	out, err := run(t, "", "workspaces:list", "--configured", "--format", "json")
	require.NoError(t, err)
	require.JSONEq(t, `[{"name":"ios","key_hint":"****_ios"},{"name":"backend","key_hint":"****kend"}]`, out)
	require.Zero(t, fake.calls.Load())
}

func TestWorkspacesList_MissingCredentials(t *testing.T) {
	fake := standardFake(t)
	setupEnv(t, fake)
	t.Setenv("LINEAR_WORKSPACES", "")

	_, err := run(t, "", "workspaces:list")
	require.Error(t, err)
	require.Contains(t, err.Error(), "LINEAR_API_KEY or LINEAR_WORKSPACES")
}

func TestResolve(t *testing.T) {
	fake := standardFake(t)
	setupEnv(t, fake)

	out, err := run(t, "", "resolve", "plat-12", "--format", "json")
	require.NoError(t, err)
	require.JSONEq(t, `{"input":"plat-12","team_key":"PLAT","workspace":"backend"}`, out)

	out, err = run(t, "", "resolve", "favres")
	require.NoError(t, err)
	require.Contains(t, out, "FAVRES")
	require.Contains(t, out, "ios")
}

func TestResolve_Errors(t *testing.T) {
	fake := standardFake(t)
	setupEnv(t, fake)

	_, err := run(t, "", "resolve", "UNKNOWN")
	require.Error(t, err)
	require.Contains(t, err.Error(), "team 'UNKNOWN' not found in any workspace. Searched workspaces: ios, backend")

	before := fake.calls.Load()
	_, err = run(t, "", "resolve", "bad-format-here")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid issue identifier format")
	require.Equal(t, before, fake.calls.Load(), "malformed identifiers never reach Linear")
}

func TestServe_StdioSession(t *testing.T) {
	fake := standardFake(t)
	fake.issues["BACK-7"] = linear.Issue{ID: "issue-7", Identifier: "BACK-7", Title: "Slow query", Team: linear.Team{Key: "BACK"}}
	setupEnv(t, fake)

	stdin := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"linear_get_issue","arguments":{"identifier":"back-7"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"linear_resolve_workspace","arguments":{"team_key":"nope"}}}`,
	}, "\n") + "\n"

	out, err := run(t, stdin, "serve")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4, "one response per request, none for the notification")

	var initResp struct {
		Result struct {
			ServerInfo struct{ Name string } `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &initResp))
	require.Equal(t, "linearmcp", initResp.Result.ServerInfo.Name)

	require.Contains(t, lines[1], `"linear_list_workspaces"`)

	var issueResp struct {
		Result struct {
			IsError           bool `json:"isError"`
			StructuredContent struct {
				Workspace string       `json:"workspace"`
				Issue     linear.Issue `json:"issue"`
			} `json:"structuredContent"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &issueResp))
	require.False(t, issueResp.Result.IsError)
	require.Equal(t, "backend", issueResp.Result.StructuredContent.Workspace)
	require.Equal(t, "Slow query", issueResp.Result.StructuredContent.Issue.Title)

	require.Contains(t, lines[3], `"isError":true`)
	require.Contains(t, lines[3], "team 'NOPE' not found")
}

func TestWorkspacesAdd(t *testing.T) {
	fake := standardFake(t)
	setupEnv(t, fake)
	t.Setenv("LINEAR_WORKSPACES", "")
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("github_org: from-file\nlinear_workspaces:\n  - name: ios\n    api_key: lin_api_ios\n"), 0o600))

	out, err := run(t, "", "workspaces:add", "backend", "lin_api_backend", "--config", configPath)
	require.NoError(t, err)
	require.Contains(t, out, `Added workspace "backend"`)

	out, err = run(t, "", "workspaces:list", "--configured", "--config", configPath)
	require.NoError(t, err)
	require.JSONEq(t, `[{"name":"ios","key_hint":"****_ios"},{"name":"backend","key_hint":"****kend"}]`, out)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "github_org: from-file")

	_, err = run(t, "", "workspaces:add", "ios", "lin_api_other", "--config", configPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "configured more than once")
}

func TestConfigInit(t *testing.T) {
	fake := standardFake(t)
	setupEnv(t, fake)
	configPath := filepath.Join(t.TempDir(), "linearmcp", "config.yaml")

	out, err := run(t, "", "config:init", "--config", configPath)
	require.NoError(t, err)
	require.Contains(t, out, "Wrote "+configPath)

	_, err = os.Stat(configPath)
	require.NoError(t, err)

	_, err = run(t, "", "config:init", "--config", configPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestExplicitConfigMustParse(t *testing.T) {
	fake := standardFake(t)
	setupEnv(t, fake)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("linear_workspaces: [unclosed\n"), 0o600))

	_, err := run(t, "", "resolve", "FAVRES", "--config", configPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config")
}
