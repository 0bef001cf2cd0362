// Package config provides configuration types, defaults and loading for linearmcp.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/zjrosen/linearmcp/internal/linear"
	"github.com/zjrosen/linearmcp/internal/log"
	"github.com/zjrosen/linearmcp/internal/paths"
	"github.com/zjrosen/linearmcp/internal/tracing"
	"github.com/zjrosen/linearmcp/internal/workspace"
)

// DefaultWorkspaceName names the single workspace built from linear_api_key.
const DefaultWorkspaceName = "default"

const DefaultGitHubAPIURL = "https://api.github.com"

// ErrInvalidConfig is matched by every error returned from Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// Settings holds all configuration options for linearmcp.
type Settings struct {
	LinearAPIKey string `mapstructure:"linear_api_key"`
	LinearAPIURL string `mapstructure:"linear_api_url"`

	GitHubToken    string `mapstructure:"github_token"`
	GitHubAPIURL   string `mapstructure:"github_api_url"`
	GitHubOrg      string `mapstructure:"github_org"`
	DefaultProject string `mapstructure:"default_project"`
	DefaultRepo    string `mapstructure:"default_repo"`

	// RequestTimeout bounds each Linear API call. Bare numbers are seconds.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	Log         LogConfig      `mapstructure:"log"`
	Tracing     tracing.Config `mapstructure:"tracing"`
	MetricsAddr string         `mapstructure:"metrics_addr"`

	// Workspaces is parsed from linear_workspaces and linear_api_key by Load.
	Workspaces WorkspaceSource `mapstructure:"-"`
}

// LogConfig holds logging options. An empty Path logs to stderr.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// Defaults returns the default settings. Required GitHub fields stay empty.
func Defaults() Settings {
	return Settings{
		LinearAPIURL:   linear.DefaultAPIURL,
		GitHubAPIURL:   DefaultGitHubAPIURL,
		RequestTimeout: linear.DefaultTimeout,
		Log:            LogConfig{Level: "info"},
		Tracing:        tracing.DefaultConfig(),
	}
}

// SetDefaults registers every known key on v. Keys without a default are
// registered empty so AutomaticEnv can supply them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("linear_api_key", "")
	v.SetDefault("linear_workspaces", "")
	v.SetDefault("linear_api_url", d.LinearAPIURL)
	v.SetDefault("github_token", "")
	v.SetDefault("github_api_url", d.GitHubAPIURL)
	v.SetDefault("github_org", "")
	v.SetDefault("default_project", "")
	v.SetDefault("default_repo", "")
	v.SetDefault("request_timeout", d.RequestTimeout.String())
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", DefaultTracesFilePath())
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("metrics_addr", "")
}

// BindEnv makes v read LINEAR_API_KEY style variables for every key.
func BindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// DefaultTracesFilePath returns ~/.config/linearmcp/traces/traces.jsonl, or
// empty if the home directory is unavailable.
func DefaultTracesFilePath() string {
	return paths.TracesFile()
}

// Load decodes settings from v, parses the workspace configuration and
// validates the result.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	err := v.Unmarshal(&s, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	multi, err := parseWorkspaces(v.Get("linear_workspaces"))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: linear_workspaces: %w", ErrInvalidConfig, err)
	}
	switch {
	case len(multi) > 0:
		if s.LinearAPIKey != "" {
			log.Debug(log.CatConfig, "linear_workspaces set, ignoring linear_api_key")
		}
		s.Workspaces = MultiKey{Workspaces: multi}
	case s.LinearAPIKey != "":
		s.Workspaces = SingleKey{APIKey: s.LinearAPIKey}
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	log.Info(log.CatConfig, "settings loaded",
		"workspaces", strings.Join(workspaceNames(s.ResolvedWorkspaces()), ","),
		"api_url", s.LinearAPIURL,
		"timeout", s.RequestTimeout)
	return s, nil
}

// Validate checks required fields and sub-configurations.
func (s Settings) Validate() error {
	if s.Workspaces == nil {
		return errors.New("at least one of LINEAR_API_KEY or LINEAR_WORKSPACES must be set")
	}
	required := []struct{ key, val string }{
		{"github_token", s.GitHubToken},
		{"github_org", s.GitHubOrg},
		{"default_project", s.DefaultProject},
		{"default_repo", s.DefaultRepo},
	}
	for _, r := range required {
		if r.val == "" {
			return fmt.Errorf("%s is required (env %s)", r.key, strings.ToUpper(r.key))
		}
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", s.RequestTimeout)
	}
	switch strings.ToLower(s.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", s.Log.Level)
	}
	return s.Tracing.Validate()
}

// ResolvedWorkspaces returns the configured workspaces in probing order.
func (s Settings) ResolvedWorkspaces() []workspace.Workspace {
	if s.Workspaces == nil {
		return nil
	}
	return s.Workspaces.Resolve()
}

// secondsToDurationHook decodes bare numbers (and numeric strings) into
// time.Duration as seconds.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return time.Duration(f * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}

func workspaceNames(ws []workspace.Workspace) []string {
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Name
	}
	return names
}
