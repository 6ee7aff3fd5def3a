package enginecli_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboone/sikulibridge/internal/enginecli"
	"github.com/cboone/sikulibridge/internal/freeport"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestFindArtifact(t *testing.T) {
	dir := t.TempDir()

	_, err := enginecli.FindArtifact(dir, "*.jar")
	var cfgErr *enginecli.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, cfgErr.Matches)
	assert.Contains(t, err.Error(), "found none")

	jar := filepath.Join(dir, "SikuliLibrary.jar")
	require.NoError(t, os.WriteFile(jar, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), nil, 0o644))

	got, err := enginecli.FindArtifact(dir, "*.jar")
	require.NoError(t, err)
	assert.Equal(t, jar, got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.jar"), nil, 0o644))
	_, err = enginecli.FindArtifact(dir, "*.jar")
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Matches, 2)
	assert.Contains(t, err.Error(), "found 2")
}

func TestStartCapturesOutput(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	stdout := filepath.Join(dir, "out.txt")
	stderr := filepath.Join(dir, "err.txt")

	p, err := enginecli.Start(enginecli.Command{
		Path:       "/bin/sh",
		Args:       []string{"-c", "echo to-out; echo to-err >&2; echo $ENGINE_VAR"},
		Env:        []string{"ENGINE_VAR=from-env"},
		StdoutPath: stdout,
		StderrPath: stderr,
	})
	require.NoError(t, err)
	assert.Positive(t, p.PID())
	assert.Equal(t, stdout, p.StdoutPath())
	assert.Equal(t, stderr, p.StderrPath())

	select {
	case <-p.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.False(t, p.Alive())
	assert.NoError(t, p.ExitErr())

	out, err := os.ReadFile(stdout)
	require.NoError(t, err)
	assert.Equal(t, "to-out\nfrom-env\n", string(out))

	errOut, err := os.ReadFile(stderr)
	require.NoError(t, err)
	assert.Equal(t, "to-err\n", string(errOut))
}

func TestStartRefusesExistingLogFile(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	stdout := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(stdout, []byte("keep"), 0o644))

	_, err := enginecli.Start(enginecli.Command{
		Path:       "/bin/sh",
		Args:       []string{"-c", "true"},
		StdoutPath: stdout,
		StderrPath: filepath.Join(dir, "err.txt"),
	})
	var engErr *enginecli.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "start", engErr.Op)
}

func TestStartMissingBinary(t *testing.T) {
	_, err := enginecli.Start(enginecli.Command{Path: filepath.Join(t.TempDir(), "no-such-engine")})
	var engErr *enginecli.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "start", engErr.Op)
}

func TestTerminate(t *testing.T) {
	requireShell(t)
	p, err := enginecli.Start(enginecli.Command{
		Path: "/bin/sh",
		Args: []string{"-c", "trap '' TERM; exec sleep 30"},
	})
	require.NoError(t, err)
	require.True(t, p.Alive())

	start := time.Now()
	require.NoError(t, p.Terminate(200*time.Millisecond))
	assert.False(t, p.Alive())
	assert.Less(t, time.Since(start), 10*time.Second)

	// Second call is a no-op.
	require.NoError(t, p.Terminate(time.Second))
}

func TestWaitForHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Any response counts, even an error status.
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer srv.Close()

	err := enginecli.WaitForHTTP(context.Background(), srv.URL+"/", time.Second, 10*time.Millisecond)
	require.NoError(t, err)
}

func TestWaitForHTTPTimeout(t *testing.T) {
	port, err := freeport.Allocate()
	require.NoError(t, err)
	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/"

	start := time.Now()
	err = enginecli.WaitForHTTP(context.Background(), url, 150*time.Millisecond, 20*time.Millisecond)
	elapsed := time.Since(start)

	var timeoutErr *enginecli.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 150*time.Millisecond, timeoutErr.Timeout)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestPollRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	var notified []error
	err := enginecli.Poll(context.Background(), "thing", time.Second, 5*time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}, func(err error) {
		notified = append(notified, err)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, notified, 2)
}

func TestPollNonPositiveTimeout(t *testing.T) {
	called := false
	err := enginecli.Poll(context.Background(), "thing", 0, time.Millisecond, func() error {
		called = true
		return nil
	}, nil)
	var timeoutErr *enginecli.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.False(t, called)
}

func TestPollContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := enginecli.Poll(ctx, "thing", 10*time.Second, 50*time.Millisecond, func() error {
		cancel()
		return errors.New("never")
	}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPollKeepsTryingUntilTimeout(t *testing.T) {
	start := time.Now()
	attempts := 0
	err := enginecli.Poll(context.Background(), "thing", 300*time.Millisecond, 100*time.Millisecond, func() error {
		attempts++
		if time.Since(start) < 250*time.Millisecond {
			return errors.New("not yet")
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestPollTimeoutEqualToInterval(t *testing.T) {
	start := time.Now()
	attempts := 0
	err := enginecli.Poll(context.Background(), "thing", 100*time.Millisecond, 100*time.Millisecond, func() error {
		attempts++
		return errors.New("not yet")
	}, nil)
	elapsed := time.Since(start)

	var timeoutErr *enginecli.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestPollReportsTimeoutOnlyAfterTimeout(t *testing.T) {
	start := time.Now()
	err := enginecli.Poll(context.Background(), "thing", 250*time.Millisecond, 100*time.Millisecond, func() error {
		return errors.New("not yet")
	}, nil)

	var timeoutErr *enginecli.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
	assert.ErrorContains(t, err, "not yet")
}
