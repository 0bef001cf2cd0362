package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/linearmcp/internal/log"
	"github.com/zjrosen/linearmcp/internal/workspace"
)

// SaveWorkspaces replaces linear_workspaces in the config file with ws, in
// list form so probe order is kept. Comments and other keys are preserved.
func SaveWorkspaces(configPath string, ws []workspace.Workspace) error {
	if err := checkWorkspaces(ws); err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	setMappingKey(&doc, "linear_workspaces", buildWorkspacesNode(ws))

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	if err := writeFileAtomic(configPath, buf.Bytes()); err != nil {
		return err
	}
	log.Info(log.CatConfig, "saved workspaces", "path", configPath, "count", len(ws))
	return nil
}

// AddWorkspace appends ws to existing and saves. Adding a name that already
// exists is an error.
func AddWorkspace(configPath string, ws workspace.Workspace, existing []workspace.Workspace) error {
	all := make([]workspace.Workspace, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, ws)
	return SaveWorkspaces(configPath, all)
}

// setMappingKey sets key on the document's root mapping, creating the
// document if it is empty.
func setMappingKey(doc *yaml.Node, key string, value *yaml.Node) {
	if doc.Kind == 0 {
		*doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return
	}

	root := doc.Content[0]
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = value
			return
		}
	}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

func buildWorkspacesNode(ws []workspace.Workspace) *yaml.Node {
	node := &yaml.Node{
		Kind:    yaml.SequenceNode,
		Content: make([]*yaml.Node, 0, len(ws)),
	}
	for _, w := range ws {
		node.Content = append(node.Content, &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: "name"},
				{Kind: yaml.ScalarNode, Value: w.Name},
				{Kind: yaml.ScalarNode, Value: "api_key"},
				{Kind: yaml.ScalarNode, Value: w.APIKey},
			},
		})
	}
	return node
}

// writeFileAtomic writes to a temp file in the same directory, then renames.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".linearmcp.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	// Credentials live here.
	if err := os.Chmod(tempPath, 0o600); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// DefaultConfigTemplate returns a commented starter config.
func DefaultConfigTemplate() string {
	return `# linearmcp configuration
#
# Every key can also be set through the environment, upper-cased:
# LINEAR_API_KEY, LINEAR_WORKSPACES, GITHUB_TOKEN, ...

# One Linear workspace:
# linear_api_key: lin_api_xxxxx

# Several workspaces. Team keys are resolved by asking each workspace in
# this order; the first one that knows the team wins.
# linear_workspaces:
#   - name: ios
#     api_key: lin_api_xxxxx
#   - name: backend
#     api_key: lin_api_yyyyy

linear_api_url: https://api.linear.app/graphql
request_timeout: 30s

github_token: ""
github_api_url: https://api.github.com
github_org: ""
default_project: ""
default_repo: ""

log:
  path: ""     # empty logs to stderr
  level: info  # debug, info, warn, error

tracing:
  enabled: false
  exporter: file  # none, file, stdout, otlp
  # file_path: ~/.config/linearmcp/traces/traces.jsonl
  # otlp_endpoint: localhost:4317
  sample_rate: 1.0

# metrics_addr: 127.0.0.1:9464
`
}

// WriteDefaultConfig creates a config file at configPath from the template.
// An existing file is left untouched.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s already exists", configPath)
	}
	if err := writeFileAtomic(configPath, []byte(DefaultConfigTemplate())); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return err
	}
	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
