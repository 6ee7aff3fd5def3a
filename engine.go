package sikulibridge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cboone/sikulibridge/internal/enginecli"
	"github.com/cboone/sikulibridge/internal/freeport"
)

// Environment variables read by the bridge.
const (
	EnvDisableEngineLog = "DISABLE_SIKULI_LOG"
	EnvJava             = "SIKULI_JAVA"
	EnvLibDir           = "SIKULI_LIB_DIR"
)

// Endpoint is the loopback address an engine serves on.
type Endpoint struct {
	Host string
	Port int
}

func newEndpoint(port int) Endpoint {
	return Endpoint{Host: freeport.Host, Port: port}
}

// URL returns the engine's HTTP/XML-RPC root URL.
func (e Endpoint) URL() string {
	return "http://" + e.Host + ":" + strconv.Itoa(e.Port) + "/"
}

func (e Endpoint) String() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// resolveLibDir determines the engine library directory by checking, in order:
// 1. WithLibDir option
// 2. SIKULI_LIB_DIR environment variable
// 3. lib next to the running executable
func resolveLibDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if envDir := os.Getenv(EnvLibDir); envDir != "" {
		return envDir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate engine library directory: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "lib"), nil
}

// resolveJavaPath determines the java binary by checking, in order:
// 1. WithJavaPath option
// 2. SIKULI_JAVA environment variable
// 3. $PATH lookup
func resolveJavaPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if envPath := os.Getenv(EnvJava); envPath != "" {
		return envPath, nil
	}
	found, err := exec.LookPath("java")
	if err != nil {
		return "", &ConfigError{Pattern: "java", Err: err}
	}
	return found, nil
}

// findArtifact locates the single engine artifact. It runs before any
// process is spawned so misconfiguration is reported without side effects.
func (b *Bridge) findArtifact() (string, error) {
	libDir, err := resolveLibDir(b.opts.libDir)
	if err != nil {
		return "", err
	}
	return enginecli.FindArtifact(libDir, b.opts.artifactPattern)
}

// engineCommand builds the launch command for artifact. A .jar runs under
// java; anything else is executed directly. Both receive the port and the
// output directory as positional arguments.
func (b *Bridge) engineCommand(artifact string, port int, outputDir string) (enginecli.Command, error) {
	args := []string{strconv.Itoa(port), outputDir}
	cmd := enginecli.Command{
		Path: artifact,
		Args: args,
		Env:  b.opts.env,
	}

	if strings.EqualFold(filepath.Ext(artifact), ".jar") {
		java, err := resolveJavaPath(b.opts.javaPath)
		if err != nil {
			return enginecli.Command{}, err
		}
		cmd.Path = java
		cmd.Args = append([]string{"-jar", artifact}, args...)
	}

	if b.engineLogsEnabled() {
		stdout, stderr, err := outputFiles(outputDir)
		if err != nil {
			return enginecli.Command{}, err
		}
		cmd.StdoutPath = stdout
		cmd.StderrPath = stderr
	}
	return cmd, nil
}

func (b *Bridge) engineLogsEnabled() bool {
	return !b.opts.disableEngineLogs && os.Getenv(EnvDisableEngineLog) == ""
}

// outputDir resolves where engine output goes: WithOutputDir, then the
// session's ${OUTPUTDIR}, then the working directory.
func (b *Bridge) outputDir() (string, error) {
	if b.opts.outputDir != "" {
		return filepath.Abs(b.opts.outputDir)
	}
	if dir, err := b.opts.session.VariableValue(VarOutputDir); err == nil && dir != "" {
		return filepath.Abs(dir)
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}
	return dir, nil
}

// outputFiles returns fresh stdout and stderr file paths in dir, named with
// a seconds timestamp and a random suffix.
func outputFiles(dir string) (stdout, stderr string, err error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate output file suffix: %w", err)
	}
	stamp := fmt.Sprintf("%.3f_%s", float64(time.Now().UnixMilli())/1000, hex.EncodeToString(b))
	stdout = filepath.Join(dir, "Sikuli_java_stdout_"+stamp+".txt")
	stderr = filepath.Join(dir, "Sikuli_java_stderr_"+stamp+".txt")
	return stdout, stderr, nil
}

// freshPort allocates a port not listed in used.
func freshPort(used map[int]bool) (int, error) {
	for i := 0; i < 10; i++ {
		port, err := freeport.Allocate()
		if err != nil {
			return 0, err
		}
		if !used[port] {
			return port, nil
		}
	}
	return 0, fmt.Errorf("could not allocate an unused port after 10 attempts")
}
