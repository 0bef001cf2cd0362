package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/linearmcp/internal/config"
	"github.com/zjrosen/linearmcp/internal/log"
	"github.com/zjrosen/linearmcp/internal/presentation"
	"github.com/zjrosen/linearmcp/internal/workspace"
)

var (
	listFormat     string
	listConfigured bool
)

var workspacesListCmd = &cobra.Command{
	Use:   "workspaces:list",
	Short: "List configured workspaces and their teams",
	Long: `List every configured workspace with the teams it contains.

Each workspace is queried in configuration order. A workspace that cannot be
listed is reported with its error; the others are still listed.

Examples:
  # Teams per workspace as JSON
  linearmcp workspaces:list

  # Human-readable
  linearmcp workspaces:list --format text

  # Configured workspaces in probe order, without calling Linear
  linearmcp workspaces:list --configured

  # Team keys of one workspace
  linearmcp workspaces:list | jq '.workspaces[] | select(.workspace=="ios") | .teams[].key'`,
	Args: cobra.NoArgs,
	RunE: runWorkspacesList,
}

var workspacesAddCmd = &cobra.Command{
	Use:   "workspaces:add NAME API_KEY",
	Short: "Add a workspace to the config file",
	Long: `Append a workspace to linear_workspaces in the config file. The new
workspace is probed after the existing ones.

Comments and other settings in the file are kept.

Example:
  linearmcp workspaces:add backend lin_api_xxxxx`,
	Args: cobra.ExactArgs(2),
	RunE: runWorkspacesAdd,
}

func init() {
	workspacesListCmd.Flags().StringVarP(&listFormat, "format", "f", presentation.FormatJSON, "output format: json, yaml or text")
	workspacesListCmd.Flags().BoolVar(&listConfigured, "configured", false, "list configured workspaces only, without calling Linear")
	rootCmd.AddCommand(workspacesListCmd)
	rootCmd.AddCommand(workspacesAddCmd)
}

func runWorkspacesList(cmd *cobra.Command, _ []string) error {
	formatter, err := presentation.NewFormatter(cmd.OutOrStdout(), listFormat)
	if err != nil {
		return err
	}

	s, cleanup, err := loadSettings()
	defer cleanup()
	if err != nil {
		return err
	}

	if listConfigured {
		ws := s.ResolvedWorkspaces()
		dtos := make([]presentation.WorkspaceDTO, len(ws))
		for i, w := range ws {
			dtos[i] = presentation.WorkspaceDTO{Name: w.Name, KeyHint: presentation.MaskAPIKey(w.APIKey)}
		}
		return formatter.FormatWorkspaces(dtos)
	}

	registry, err := newRegistry(s, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = registry.CloseAll() }()

	report := registry.ListAllWorkspacesWithTeams(cmd.Context())
	if err := formatter.FormatReport(report); err != nil {
		return err
	}

	if failed := report.Failed(); len(failed) == len(report.Workspaces) {
		return fmt.Errorf("listing failed for every workspace: %s", strings.Join(failed, ", "))
	}
	return nil
}

func runWorkspacesAdd(cmd *cobra.Command, args []string) error {
	if configErr != nil && !errors.Is(configErr, fs.ErrNotExist) {
		return configErr
	}
	cleanup, err := initLogging()
	if err != nil {
		return err
	}
	defer cleanup()

	existing, err := config.ConfiguredWorkspaces(v)
	if err != nil {
		return err
	}

	path := configWritePath()
	ws := workspace.Workspace{Name: args[0], APIKey: args[1]}
	if err := config.AddWorkspace(path, ws, existing); err != nil {
		return fmt.Errorf("adding workspace %s: %w", ws.Name, err)
	}

	log.Info(log.CatConfig, "workspace added", "workspace", ws.Name, "path", path)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added workspace %q to %s (%d configured)\n", ws.Name, path, len(existing)+1)
	return err
}
