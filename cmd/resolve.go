package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/linearmcp/internal/presentation"
	"github.com/zjrosen/linearmcp/internal/workspace"
)

var resolveFormat string

var resolveCmd = &cobra.Command{
	Use:   "resolve TEAM|TEAM-123",
	Short: "Print the workspace that owns a team key or issue",
	Long: `Resolve a team key or issue identifier to the workspace that owns it,
probing workspaces in configuration order.

Examples:
  linearmcp resolve FAVRES
  linearmcp resolve favres-123 --format text`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveFormat, "format", "f", presentation.FormatText, "output format: json, yaml or text")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	formatter, err := presentation.NewFormatter(cmd.OutOrStdout(), resolveFormat)
	if err != nil {
		return err
	}

	s, cleanup, err := loadSettings()
	defer cleanup()
	if err != nil {
		return err
	}

	registry, err := newRegistry(s, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = registry.CloseAll() }()

	input := args[0]
	var res workspace.Resolution
	if strings.Contains(input, "-") {
		res, err = registry.ResolveIssue(cmd.Context(), input)
	} else {
		res, err = registry.ResolveTeam(cmd.Context(), input)
	}
	if err != nil {
		return err
	}
	return formatter.FormatResolution(presentation.ResolutionDTO{
		Input:     input,
		TeamKey:   res.TeamKey,
		Workspace: res.Workspace,
	})
}
