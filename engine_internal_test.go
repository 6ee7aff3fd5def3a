package sikulibridge

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	e := newEndpoint(5123)
	assert.Equal(t, "http://127.0.0.1:5123/", e.URL())
	assert.Equal(t, "127.0.0.1:5123", e.String())
}

func TestOutputFiles(t *testing.T) {
	dir := t.TempDir()
	stdout, stderr, err := outputFiles(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(stdout))
	assert.Regexp(t, regexp.MustCompile(`^Sikuli_java_stdout_\d+\.\d{3}_[0-9a-f]{8}\.txt$`), filepath.Base(stdout))
	assert.Equal(t, strings.Replace(stdout, "_stdout_", "_stderr_", 1), stderr)

	again, _, err := outputFiles(dir)
	require.NoError(t, err)
	assert.NotEqual(t, stdout, again)
}

func TestEngineCommandJar(t *testing.T) {
	b := &Bridge{opts: defaultOptions()}
	b.opts.javaPath = "/opt/jdk/bin/java"
	b.opts.disableEngineLogs = true
	b.opts.env = []string{"SIKULI_DEBUG=1"}

	cmd, err := b.engineCommand("/opt/sikuli/lib/SikuliLibrary.jar", 5123, "/tmp/out")
	require.NoError(t, err)
	assert.Equal(t, "/opt/jdk/bin/java", cmd.Path)
	assert.Equal(t, []string{"-jar", "/opt/sikuli/lib/SikuliLibrary.jar", "5123", "/tmp/out"}, cmd.Args)
	assert.Equal(t, []string{"SIKULI_DEBUG=1"}, cmd.Env)
	assert.Empty(t, cmd.StdoutPath)
}

func TestEngineCommandExecutable(t *testing.T) {
	out := t.TempDir()
	b := &Bridge{opts: defaultOptions()}
	t.Setenv(EnvDisableEngineLog, "")

	cmd, err := b.engineCommand("/opt/sikuli/lib/engine", 5123, out)
	require.NoError(t, err)
	assert.Equal(t, "/opt/sikuli/lib/engine", cmd.Path)
	assert.Equal(t, []string{"5123", out}, cmd.Args)
	assert.True(t, strings.HasPrefix(cmd.StdoutPath, filepath.Join(out, "Sikuli_java_stdout_")))
	assert.True(t, strings.HasPrefix(cmd.StderrPath, filepath.Join(out, "Sikuli_java_stderr_")))
}

func TestEngineLogsDisabledByEnv(t *testing.T) {
	b := &Bridge{opts: defaultOptions()}
	t.Setenv(EnvDisableEngineLog, "1")
	assert.False(t, b.engineLogsEnabled())
}

func TestResolveLibDir(t *testing.T) {
	t.Setenv(EnvLibDir, "/env/lib")

	dir, err := resolveLibDir("/opt/lib")
	require.NoError(t, err)
	assert.Equal(t, "/opt/lib", dir)

	dir, err = resolveLibDir("")
	require.NoError(t, err)
	assert.Equal(t, "/env/lib", dir)

	t.Setenv(EnvLibDir, "")
	exe, err := os.Executable()
	require.NoError(t, err)
	dir, err = resolveLibDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(exe), "lib"), dir)
}

func TestResolveJavaPath(t *testing.T) {
	t.Setenv(EnvJava, "/env/java")
	path, err := resolveJavaPath("")
	require.NoError(t, err)
	assert.Equal(t, "/env/java", path)

	t.Setenv(EnvJava, "")
	t.Setenv("PATH", t.TempDir())
	_, err = resolveJavaPath("")
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestOutputDirFromSession(t *testing.T) {
	dir := t.TempDir()
	b := &Bridge{opts: defaultOptions()}
	b.opts.session = MapSession{VarOutputDir: dir}

	got, err := b.outputDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	b.opts.outputDir = "relative"
	got, err = b.outputDir()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestFreshPortSkipsUsed(t *testing.T) {
	used := make(map[int]bool)
	for i := 0; i < 3; i++ {
		port, err := freshPort(used)
		require.NoError(t, err)
		assert.False(t, used[port])
		used[port] = true
	}
}
