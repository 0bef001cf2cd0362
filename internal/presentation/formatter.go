// Package presentation renders command output as JSON, YAML or styled text.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/linearmcp/internal/workspace"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

var (
	workspaceStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	keyStyle       = lipgloss.NewStyle().Bold(true).Width(10)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// Formatter writes values in one output format.
type Formatter struct {
	writer io.Writer
	format string
}

// NewFormatter returns a formatter for format, which must be json, yaml or text.
func NewFormatter(writer io.Writer, format string) (*Formatter, error) {
	switch format {
	case FormatJSON, FormatYAML, FormatText:
	default:
		return nil, fmt.Errorf("unknown format %q (want json, yaml or text)", format)
	}
	return &Formatter{writer: writer, format: format}, nil
}

// FormatReport writes a workspace listing.
func (f *Formatter) FormatReport(report workspace.Report) error {
	if f.format != FormatText {
		return f.encode(report)
	}

	var b strings.Builder
	for i, ws := range report.Workspaces {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(workspaceStyle.Render(ws.Workspace))
		b.WriteString("\n")
		switch {
		case ws.Error != "":
			b.WriteString("  " + errorStyle.Render("error: "+ws.Error) + "\n")
		case len(ws.Teams) == 0:
			b.WriteString("  " + mutedStyle.Render("no teams") + "\n")
		}
		for _, team := range ws.Teams {
			b.WriteString("  " + keyStyle.Render(team.Key) + team.Name + " " + mutedStyle.Render(team.ID) + "\n")
		}
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// FormatResolution writes the outcome of a resolve.
func (f *Formatter) FormatResolution(res ResolutionDTO) error {
	if f.format != FormatText {
		return f.encode(res)
	}
	_, err := fmt.Fprintf(f.writer, "%s %s %s\n",
		keyStyle.Render(res.TeamKey), mutedStyle.Render("→"), workspaceStyle.Render(res.Workspace))
	return err
}

// FormatWorkspaces writes the configured workspaces in probe order.
func (f *Formatter) FormatWorkspaces(ws []WorkspaceDTO) error {
	if f.format != FormatText {
		return f.encode(ws)
	}
	var b strings.Builder
	for i, w := range ws {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, workspaceStyle.Render(w.Name), mutedStyle.Render(w.KeyHint))
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

func (f *Formatter) encode(v any) error {
	if f.format == FormatYAML {
		enc := yaml.NewEncoder(f.writer)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
