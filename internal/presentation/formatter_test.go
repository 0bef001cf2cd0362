package presentation

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/linearmcp/internal/workspace"
)

var sampleReport = workspace.Report{Workspaces: []workspace.WorkspaceTeams{
	{Workspace: "ios", Teams: []workspace.TeamSummary{{Key: "FAVRES", Name: "iOS App", ID: "team-1"}}},
	{Workspace: "backend", Teams: []workspace.TeamSummary{}, Error: "linear list_teams: HTTP 401: unauthorized"},
}}

func TestNewFormatter_UnknownFormat(t *testing.T) {
	_, err := NewFormatter(&bytes.Buffer{}, "xml")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestFormatReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(&buf, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, f.FormatReport(sampleReport))

	require.JSONEq(t, `{"workspaces":[
		{"workspace":"ios","teams":[{"key":"FAVRES","name":"iOS App","id":"team-1"}]},
		{"workspace":"backend","teams":[],"error":"linear list_teams: HTTP 401: unauthorized"}
	]}`, buf.String())
}

func TestFormatReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(&buf, FormatYAML)
	require.NoError(t, err)
	require.NoError(t, f.FormatReport(sampleReport))

	var got workspace.Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, sampleReport, got)
	require.Contains(t, buf.String(), "- workspace: ios")
}

func TestFormatReport_Text(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(&buf, FormatText)
	require.NoError(t, err)
	require.NoError(t, f.FormatReport(sampleReport))

	out := buf.String()
	require.Contains(t, out, "ios")
	require.Contains(t, out, "FAVRES")
	require.Contains(t, out, "iOS App")
	require.Contains(t, out, "error: linear list_teams: HTTP 401")
}

func TestFormatResolution(t *testing.T) {
	res := ResolutionDTO{Input: "back-1", TeamKey: "BACK", Workspace: "backend"}

	var buf bytes.Buffer
	f, err := NewFormatter(&buf, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, f.FormatResolution(res))

	var got ResolutionDTO
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, res, got)

	buf.Reset()
	f, err = NewFormatter(&buf, FormatText)
	require.NoError(t, err)
	require.NoError(t, f.FormatResolution(res))
	require.Contains(t, buf.String(), "BACK")
	require.Contains(t, buf.String(), "backend")
}

func TestFormatWorkspaces(t *testing.T) {
	ws := []WorkspaceDTO{{Name: "ios", KeyHint: MaskAPIKey("lin_api_abcd1234")}}

	var buf bytes.Buffer
	f, err := NewFormatter(&buf, FormatText)
	require.NoError(t, err)
	require.NoError(t, f.FormatWorkspaces(ws))
	require.Contains(t, buf.String(), "1. ")
	require.Contains(t, buf.String(), "****1234")
	require.NotContains(t, buf.String(), "lin_api_abcd")
}

func TestMaskAPIKey(t *testing.T) {
	require.Equal(t, "****", MaskAPIKey(""))
	require.Equal(t, "****", MaskAPIKey("abcd"))
	require.Equal(t, "****bcde", MaskAPIKey("abcde"))
}
