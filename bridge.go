package sikulibridge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/cboone/sikulibridge/catalog"
	"github.com/cboone/sikulibridge/internal/enginecli"
	"github.com/cboone/sikulibridge/internal/remote"
)

// Bridge is a handle to one engine for one test session. It is created
// with New and released with Close.
//
// A Bridge is meant for a single caller; concurrent calls must be
// serialized by the caller.
type Bridge struct {
	opts     options
	log      *logrus.Entry
	metrics  MetricsCollector
	keywords KeywordSource

	mu       sync.Mutex
	state    State
	endpoint Endpoint
	process  *enginecli.Process
	remote   *remote.Client
	watchdog *watchdog
	stopped  chan struct{}
}

// New builds a Bridge and runs the initialization of its mode: depending
// on the mode the engine is started, connected to, or left alone.
func New(ctx context.Context, userOpts ...Option) (*Bridge, error) {
	opts := defaultOptions()
	for _, o := range userOpts {
		o(&opts)
	}

	strategy, ok := modeStrategies[opts.mode]
	if !ok {
		return nil, fmt.Errorf("sikulibridge: new: %w: %v", ErrUnknownMode, opts.mode)
	}
	if opts.timeout < 0 {
		return nil, fmt.Errorf("sikulibridge: new: negative timeout: %v", opts.timeout)
	}
	if opts.pollInterval < 0 {
		return nil, fmt.Errorf("sikulibridge: new: negative poll interval: %v", opts.pollInterval)
	}
	if opts.pollInterval == 0 {
		opts.pollInterval = defaultPollInterval
	} else if opts.pollInterval < minPollInterval {
		opts.pollInterval = minPollInterval
	}
	if opts.session == nil {
		opts.session = noSession{}
	}
	if opts.logger == nil {
		opts.logger = newLogger(opts.session)
	}
	if opts.metrics == nil {
		opts.metrics = NewNoopMetricsCollector()
	}

	b := &Bridge{
		opts:    opts,
		log:     opts.logger.WithField("mode", opts.mode.String()),
		metrics: opts.metrics,
		state:   StateUnstarted,
		stopped: make(chan struct{}),
	}

	switch {
	case strategy.live || opts.liveKeywords:
		b.keywords = liveSource{b: b}
	case opts.keywords != nil:
		b.keywords = opts.keywords
	default:
		bundled, err := catalog.Bundled()
		if err != nil {
			return nil, fmt.Errorf("sikulibridge: new: %w", err)
		}
		b.keywords = bundled
	}

	if err := strategy.init(b, ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Endpoint returns the engine endpoint. It is the zero Endpoint until a
// start or connect has begun.
func (b *Bridge) Endpoint() Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.endpoint
}

// Process returns the engine process owned by the bridge, or nil when the
// bridge did not launch one.
func (b *Bridge) Process() *enginecli.Process {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.process
}

// Stopped is closed once the bridge reaches StateStopped.
func (b *Bridge) Stopped() <-chan struct{} {
	return b.stopped
}

func (b *Bridge) setState(to State) {
	b.mu.Lock()
	from := b.setStateLocked(to)
	b.mu.Unlock()
	b.reportTransition(from, to)
}

func (b *Bridge) setStateLocked(to State) (from State) {
	from = b.state
	b.state = to
	if to == StateStopped && from != StateStopped {
		close(b.stopped)
	}
	return from
}

func (b *Bridge) reportTransition(from, to State) {
	b.metrics.StateTransition(from, to)
	b.log.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Debug("Bridge state changed")
}

// claimStart moves an unstarted bridge to StateStarting.
func (b *Bridge) claimStart() error {
	b.mu.Lock()
	if b.state != StateUnstarted {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, state)
	}
	from := b.setStateLocked(StateStarting)
	b.mu.Unlock()
	b.reportTransition(from, StateStarting)
	return nil
}

// StartSikuliProcess launches the engine and connects to it. A port of
// zero picks a free port. A launch whose engine does not answer HTTP
// within the timeout is killed and retried on a fresh port, up to 5
// attempts in total; the connection is then verified with a keyword
// listing before the bridge becomes ready.
func (b *Bridge) StartSikuliProcess(ctx context.Context, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("sikulibridge: start: port %d out of range", port)
	}

	if state := b.State(); state != StateUnstarted {
		return fmt.Errorf("sikulibridge: start: %w (state %s)", ErrAlreadyStarted, state)
	}

	artifact, err := b.findArtifact()
	if err != nil {
		return fmt.Errorf("sikulibridge: start: %w", err)
	}
	outputDir, err := b.outputDir()
	if err != nil {
		return fmt.Errorf("sikulibridge: start: %w", err)
	}

	if err := b.claimStart(); err != nil {
		return fmt.Errorf("sikulibridge: start: %w", err)
	}

	used := make(map[int]bool)
	if port == 0 {
		if port, err = freshPort(used); err != nil {
			b.setState(StateStopped)
			return fmt.Errorf("sikulibridge: start: %w", err)
		}
	}

	attempts := 0
	proc, err := backoff.Retry(ctx, func() (*enginecli.Process, error) {
		attempts++
		if attempts > 1 {
			next, err := freshPort(used)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			port = next
		}
		used[port] = true

		proc, err := b.launch(ctx, artifact, port, outputDir)
		b.metrics.LaunchAttempt(port, err)
		if err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return proc, nil
	},
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(maxStartAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, _ time.Duration) {
			b.log.WithError(err).WithField("port", port).Warn("Engine failed to start, retrying on a new port")
		}),
	)
	if err != nil {
		b.setState(StateStopped)
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return fmt.Errorf("sikulibridge: start: %w", err)
		}
		return fmt.Errorf("sikulibridge: start: %w after %d attempts: %w", ErrStartFailed, attempts, err)
	}

	b.mu.Lock()
	b.process = proc
	b.mu.Unlock()
	b.log.WithFields(logrus.Fields{
		"port": port,
		"pid":  proc.PID(),
	}).Info("Sikuli java process is started")

	client, err := b.verify(ctx, port)
	if err != nil {
		_ = proc.Terminate(b.opts.terminateGrace)
		b.setState(StateStopped)
		return fmt.Errorf("sikulibridge: start: %w", err)
	}

	b.mu.Lock()
	b.remote = client
	b.mu.Unlock()
	b.setState(StateReady)
	return nil
}

// launch runs one launch attempt: spawn the engine on port and wait until
// its HTTP endpoint answers. A failed attempt leaves no process behind.
func (b *Bridge) launch(ctx context.Context, artifact string, port int, outputDir string) (*enginecli.Process, error) {
	cmd, err := b.engineCommand(artifact, port, outputDir)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.endpoint = newEndpoint(port)
	endpoint := b.endpoint
	b.mu.Unlock()

	proc, err := enginecli.Start(cmd)
	if err != nil {
		return nil, err
	}
	b.log.WithFields(logrus.Fields{
		"port":   port,
		"pid":    proc.PID(),
		"stdout": proc.StdoutPath(),
		"stderr": proc.StderrPath(),
	}).Info("Start sikuli java process")

	if err := enginecli.WaitForHTTP(ctx, endpoint.URL(), b.opts.timeout, b.opts.pollInterval); err != nil {
		if termErr := proc.Terminate(b.opts.terminateGrace); termErr != nil {
			b.log.WithError(termErr).Warn("Could not terminate engine")
		}
		return nil, err
	}
	return proc, nil
}

// ConnectSikuliProcess connects to an engine already listening on port,
// without launching anything.
func (b *Bridge) ConnectSikuliProcess(ctx context.Context, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("sikulibridge: connect: port %d out of range", port)
	}

	b.mu.Lock()
	if b.state != StateUnstarted {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("sikulibridge: connect: %w (state %s)", ErrAlreadyStarted, state)
	}
	b.endpoint = newEndpoint(port)
	b.mu.Unlock()

	client, err := b.verify(ctx, port)
	if err != nil {
		return fmt.Errorf("sikulibridge: connect: %w", err)
	}

	b.mu.Lock()
	b.remote = client
	b.mu.Unlock()
	b.setState(StateConnectedOnly)
	return nil
}

// verify polls get_keyword_names until it succeeds. Only a client that
// passed this check is ever used for keyword invocations.
func (b *Bridge) verify(ctx context.Context, port int) (*remote.Client, error) {
	endpoint := newEndpoint(port)
	client, err := remote.New(endpoint.URL(), nil, b.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	err = enginecli.Poll(ctx, "remote connection "+endpoint.String(), b.opts.timeout, b.opts.pollInterval, func() error {
		_, err := client.KeywordNames()
		return err
	}, func(err error) {
		b.log.WithError(err).Warn("Test get_keyword_names failed")
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}
	return client, nil
}

// connected returns the verified engine client.
func (b *Bridge) connected() (*remote.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remote == nil || !b.state.Connected() {
		return nil, fmt.Errorf("%w (state %s)", ErrNotConnected, b.state)
	}
	return b.remote, nil
}

// GetKeywordNames lists every keyword, including StartKeyword.
func (b *Bridge) GetKeywordNames() ([]string, error) {
	names, err := b.keywords.KeywordNames()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names)+1)
	for _, name := range names {
		if name != StartKeyword {
			out = append(out, name)
		}
	}
	return append(out, StartKeyword), nil
}

// GetKeywordArguments returns the argument specification of name.
func (b *Bridge) GetKeywordArguments(name string) ([]string, error) {
	if name == StartKeyword {
		return append([]string{}, startKeywordArgs...), nil
	}
	return b.keywords.KeywordArguments(name)
}

// GetKeywordDocumentation returns the documentation of name. The library
// introduction and constructor documentation are available as "__intro__"
// and "__init__".
func (b *Bridge) GetKeywordDocumentation(name string) (string, error) {
	switch name {
	case StartKeyword:
		return StartKeywordDoc, nil
	case introName:
		return IntroDoc, nil
	case initName:
		return InitDoc, nil
	}
	return b.keywords.KeywordDocumentation(name)
}

// RunKeyword runs a keyword. StartKeyword starts the engine, with an
// optional port argument; every other keyword is forwarded to the engine
// and its result or failure returned unchanged.
func (b *Bridge) RunKeyword(ctx context.Context, name string, args []interface{}) (interface{}, error) {
	if name == StartKeyword {
		port, err := startPortArg(args)
		if err != nil {
			return nil, fmt.Errorf("sikulibridge: run keyword: %w", err)
		}
		return nil, b.StartSikuliProcess(ctx, port)
	}

	client, err := b.connected()
	if err != nil {
		return nil, fmt.Errorf("sikulibridge: run keyword %q: %w", name, err)
	}

	start := time.Now()
	ret, err := client.RunKeyword(name, args, nil)
	b.metrics.KeywordCall(name, time.Since(start), err)
	return ret, err
}

// WriteCatalog introspects every keyword of the connected engine and writes
// the resulting catalog to path. StartKeyword is never included.
func (b *Bridge) WriteCatalog(ctx context.Context, path string) (catalog.Catalog, error) {
	client, err := b.connected()
	if err != nil {
		return nil, fmt.Errorf("sikulibridge: write catalog: %w", err)
	}
	clients, err := remote.NewPool(client.URL(), nil, b.log, b.opts.catalogWorkers)
	if err != nil {
		return nil, fmt.Errorf("sikulibridge: write catalog: %w", err)
	}
	defer func() { _ = clients.Close() }()

	c, err := catalog.Build(ctx, clients, b.opts.catalogWorkers, StartKeyword)
	if err != nil {
		return nil, fmt.Errorf("sikulibridge: write catalog: %w", err)
	}
	if err := c.WriteFile(path); err != nil {
		return nil, fmt.Errorf("sikulibridge: write catalog: %w", err)
	}
	b.log.WithFields(logrus.Fields{
		"path":     path,
		"keywords": len(c),
	}).Info("Keyword catalog written")
	return c, nil
}

func (b *Bridge) catalogPath() string {
	if b.opts.catalogPath != "" {
		return b.opts.catalogPath
	}
	dir, err := b.outputDir()
	if err != nil {
		return defaultCatalogFile
	}
	return filepath.Join(dir, defaultCatalogFile)
}

// scheduleStop arranges for the engine to be told to stop after delay.
// The timer runs on its own goroutine and is cancelled by Close.
func (b *Bridge) scheduleStop(delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.watchdog != nil {
		b.watchdog.Cancel()
	}
	b.log.WithField("delay", delay).Debug("Scheduling engine stop")
	b.watchdog = scheduleWatchdog(delay, func() {
		b.log.Info("Stopping unattended engine")
		b.shutdown(true)
	})
}

// Close cancels any scheduled stop, stops the engine the bridge launched
// and releases the connection. A bridge that only connected leaves the
// engine running. Close is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	wd := b.watchdog
	b.watchdog = nil
	b.mu.Unlock()

	if wd != nil {
		wd.Cancel()
	}
	return b.shutdown(false)
}

// shutdown stops the engine and moves the bridge to StateStopped. With
// always set, stop_remote_server is sent even to an engine the bridge did
// not launch. A shutdown already in progress is waited for.
func (b *Bridge) shutdown(always bool) error {
	b.mu.Lock()
	switch b.state {
	case StateStopped:
		b.mu.Unlock()
		return nil
	case StateStopping:
		b.mu.Unlock()
		<-b.stopped
		return nil
	}
	client, proc := b.remote, b.process
	b.remote = nil
	from := b.setStateLocked(StateStopping)
	b.mu.Unlock()
	b.reportTransition(from, StateStopping)

	var errs []error
	if client != nil && (proc != nil || always) {
		if err := client.Stop(); err != nil {
			// The engine may drop the connection while shutting down.
			b.log.WithError(err).Debug("stop_remote_server failed")
		}
	}
	if proc != nil {
		select {
		case <-proc.Done():
		case <-time.After(b.opts.terminateGrace):
		}
		if err := proc.Terminate(b.opts.terminateGrace); err != nil {
			errs = append(errs, err)
		}
	}
	if client != nil {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	b.setState(StateStopped)
	return errors.Join(errs...)
}
