package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/linearmcp/internal/config"
	"github.com/zjrosen/linearmcp/internal/log"
	"github.com/zjrosen/linearmcp/internal/metrics"
	"github.com/zjrosen/linearmcp/internal/paths"
	"github.com/zjrosen/linearmcp/internal/workspace"

	"go.opentelemetry.io/otel/trace"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool

	// v is rebuilt by initConfig before every command run.
	v         *viper.Viper
	configErr error
)

var rootCmd = &cobra.Command{
	Use:   "linearmcp",
	Short: "MCP server for Linear across several workspaces",
	Long: `linearmcp serves Linear tools over the Model Context Protocol.

Each configured workspace is a Linear API key. Team keys and issue
identifiers are routed to the workspace that owns the team: known keys come
from a cache, unknown keys are probed in configuration order.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .linearmcp/config.yaml, then ~/.config/linearmcp/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"log at debug level")
}

func initConfig() {
	v = viper.New()
	configErr = nil
	config.SetDefaults(v)
	config.BindEnv(v)
	_ = v.BindPFlag("metrics_addr", serveCmd.Flags().Lookup("metrics-addr"))

	path := paths.ResolveConfigFile(cfgFile, ".")
	if path == "" {
		// No config file: env vars may carry everything.
		return
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		configErr = fmt.Errorf("reading config: %w", err)
	}
}

// initLogging installs the global logger from log.path and log.level.
func initLogging() (func(), error) {
	level := log.ParseLevel(v.GetString("log.level"))
	if debugFlag {
		level = log.LevelDebug
	}
	cleanup, err := log.Init(v.GetString("log.path"), level)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cleanup, nil
}

// loadSettings starts logging and loads validated settings. The returned
// cleanup must be called even when err is non-nil.
func loadSettings() (config.Settings, func(), error) {
	noop := func() {}
	if configErr != nil {
		return config.Settings{}, noop, configErr
	}
	cleanup, err := initLogging()
	if err != nil {
		return config.Settings{}, noop, err
	}
	log.Debug(log.CatConfig, "config file", "path", v.ConfigFileUsed())

	s, err := config.Load(v)
	if err != nil {
		return config.Settings{}, cleanup, err
	}
	return s, cleanup, nil
}

// newRegistry builds the workspace registry for s.
func newRegistry(s config.Settings, tracer trace.Tracer, m *metrics.Registry) (*workspace.Registry, error) {
	ws := s.ResolvedWorkspaces()
	return workspace.New(ws,
		workspace.WithClientFactory(workspace.LinearClientFactory(s.LinearAPIURL, s.RequestTimeout)),
		workspace.WithProbeTimeout(workspace.ProbeTimeout(len(ws), s.RequestTimeout)),
		workspace.WithTracer(tracer),
		workspace.WithMetrics(m),
	)
}

// configWritePath is where commands that edit the config write to.
func configWritePath() string {
	return paths.WritePath(v.ConfigFileUsed(), ".")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(ver string) {
	version = ver
	rootCmd.Version = ver
}
