package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))
}

func TestResolveConfigFile_Explicit(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, LocalConfigFile))

	// An explicit path wins even when it does not exist.
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	require.Equal(t, missing, ResolveConfigFile(missing, dir))

	explicitDir := t.TempDir()
	require.Equal(t, filepath.Join(explicitDir, "config.yaml"), ResolveConfigFile(explicitDir, dir))
}

func TestResolveConfigFile_LocalBeforeUser(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()

	require.Empty(t, ResolveConfigFile("", dir))

	user := filepath.Join(home, ".config", "linearmcp", "config.yaml")
	writeFile(t, user)
	require.Equal(t, user, ResolveConfigFile("", dir))

	local := filepath.Join(dir, LocalConfigFile)
	writeFile(t, local)
	require.Equal(t, local, ResolveConfigFile("", dir))
}

func TestResolveConfigFile_IgnoresDirectoryNamedLikeConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, LocalConfigFile), 0o750))

	require.Empty(t, ResolveConfigFile("", dir))
}

func TestWritePath(t *testing.T) {
	require.Equal(t, "/etc/linearmcp.yaml", WritePath("/etc/linearmcp.yaml", "/work"))
	require.Equal(t, filepath.Join("/work", LocalConfigFile), WritePath("", "/work"))
	require.Equal(t, LocalConfigFile, WritePath("", ""))
}

func TestTracesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.Equal(t, filepath.Join(home, ".config", "linearmcp", "traces", "traces.jsonl"), TracesFile())
}
