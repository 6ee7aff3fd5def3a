package sikulibridge

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboone/sikulibridge/internal/enginetest"
)

// slowStopEngine serves the fake engine but holds stop_remote_server until
// release is closed. stopping is closed when the stop request arrives.
func slowStopEngine(t *testing.T) (port int, stopping, release chan struct{}) {
	t.Helper()
	engine := enginetest.New(enginetest.DefaultKeywords())
	stopping = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if bytes.Contains(body, []byte("stop_remote_server")) {
				once.Do(func() { close(stopping) })
				<-release
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		engine.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().(*net.TCPAddr).Port, stopping, release
}

func TestCloseWaitsForScheduledStop(t *testing.T) {
	port, stopping, release := slowStopEngine(t)
	released := false
	defer func() {
		if !released {
			close(release)
		}
	}()

	log := logrus.New()
	log.SetOutput(io.Discard)
	b, err := New(context.Background(),
		WithMode(ModePython),
		WithPort(port),
		WithTimeout(2*time.Second),
		WithPollInterval(10*time.Millisecond),
		WithLogger(log),
	)
	require.NoError(t, err)
	require.Equal(t, StateConnectedOnly, b.State())

	b.scheduleStop(time.Millisecond)
	select {
	case <-stopping:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled stop never reached the engine")
	}
	require.Equal(t, StateStopping, b.State())

	closed := make(chan error, 1)
	go func() { closed <- b.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned while the engine was still stopping")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	released = true

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the stop completed")
	}
	assert.Equal(t, StateStopped, b.State())
}
