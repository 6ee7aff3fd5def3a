// Command testengine is a stand-in engine for testing the bridge. It is
// launched the way the real engine is, with the port and the output
// directory as positional arguments, and serves the fake engine from
// internal/enginetest on 127.0.0.1.
//
// Behavior is tuned through environment variables:
//   - TESTENGINE_MODE=exit: exits with status 1 before listening
//   - TESTENGINE_MODE=hang: never listens, sleeps until killed
//   - TESTENGINE_FAIL_NAMES=N: the first N get_keyword_names calls fault
//
// stop_remote_server shuts the server down and exits with status 0.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cboone/sikulibridge/internal/enginetest"
	"github.com/cboone/sikulibridge/internal/freeport"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: testengine PORT OUTPUT_DIR")
		os.Exit(2)
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q\n", os.Args[1])
		os.Exit(2)
	}

	switch os.Getenv("TESTENGINE_MODE") {
	case "exit":
		fmt.Fprintln(os.Stderr, "engine failed to initialize")
		os.Exit(1)
	case "hang":
		time.Sleep(time.Hour)
		os.Exit(1)
	}

	engine := enginetest.New(enginetest.DefaultKeywords())
	if n, err := strconv.Atoi(os.Getenv("TESTENGINE_FAIL_NAMES")); err == nil {
		engine.FailKeywordNames(n)
	}

	addr := net.JoinHostPort(freeport.Host, strconv.Itoa(port))
	srv := &http.Server{Addr: addr, Handler: engine}
	engine.OnStop(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	fmt.Printf("engine listening on %s, output in %s\n", addr, os.Args[2])
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("engine stopped")
}
