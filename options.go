package sikulibridge

import (
	"time"

	"github.com/sirupsen/logrus"
)

type options struct {
	mode              Mode
	port              int
	timeout           time.Duration
	pollInterval      time.Duration
	libDir            string
	artifactPattern   string
	javaPath          string
	outputDir         string
	env               []string
	disableEngineLogs bool
	terminateGrace    time.Duration
	session           Session
	logger            *logrus.Logger
	metrics           MetricsCollector
	keywords          KeywordSource
	liveKeywords      bool
	catalogPath       string
	catalogWorkers    int
}

// Option configures a Bridge created by New.
type Option func(*options)

// WithMode sets the operating mode. Defaults to ModeOld.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithPort sets the engine port used by modes that start or connect during
// New. Zero picks a free port when starting.
func WithPort(port int) Option {
	return func(o *options) {
		o.port = port
	}
}

// WithTimeout bounds both the readiness poll of each launch attempt and
// the remote verification poll. Defaults to 3s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithPollInterval sets the interval between readiness and verification
// attempts. Defaults to 1s.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithLibDir sets the directory holding the engine artifact. The
// SIKULI_LIB_DIR environment variable is used as a fallback, then the lib
// directory next to the running executable.
func WithLibDir(dir string) Option {
	return func(o *options) {
		o.libDir = dir
	}
}

// WithArtifactPattern sets the glob matching the engine artifact inside the
// library directory. Defaults to "*.jar". Exactly one file must match.
func WithArtifactPattern(pattern string) Option {
	return func(o *options) {
		o.artifactPattern = pattern
	}
}

// WithJavaPath sets the java binary used for .jar artifacts. The
// SIKULI_JAVA environment variable is used as a fallback before $PATH.
func WithJavaPath(path string) Option {
	return func(o *options) {
		o.javaPath = path
	}
}

// WithOutputDir sets the directory receiving the engine's output files,
// overriding the session's ${OUTPUTDIR}.
func WithOutputDir(dir string) Option {
	return func(o *options) {
		o.outputDir = dir
	}
}

// WithEnv appends environment variables to the engine process environment.
// Each entry should be in "KEY=VALUE" format.
func WithEnv(env ...string) Option {
	return func(o *options) {
		o.env = append(o.env, env...)
	}
}

// WithoutEngineLogs lets the engine inherit the caller's stdout and stderr
// instead of writing them to files, as DISABLE_SIKULI_LOG does.
func WithoutEngineLogs() Option {
	return func(o *options) {
		o.disableEngineLogs = true
	}
}

// WithTerminateGrace sets how long a stopping engine may take to exit
// before it is killed. Defaults to 5s.
func WithTerminateGrace(d time.Duration) Option {
	return func(o *options) {
		o.terminateGrace = d
	}
}

// WithSession sets the test run the bridge belongs to. Without one, the
// bridge behaves as if no test run were active.
func WithSession(s Session) Option {
	return func(o *options) {
		o.session = s
	}
}

// WithLogger sets the logger. By default a logger writing to stdout is
// built at the session's ${LOG_LEVEL}, or debug.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithKeywordCatalog replaces the bundled keyword catalog used in cached
// mode.
func WithKeywordCatalog(src KeywordSource) Option {
	return func(o *options) {
		o.keywords = src
	}
}

// WithLiveKeywords reads keyword metadata from the engine instead of the
// cached catalog, whatever the mode.
func WithLiveKeywords() Option {
	return func(o *options) {
		o.liveKeywords = true
	}
}

// WithCatalogPath sets the file ModeCreate writes. Defaults to
// keywords.yaml in the output directory.
func WithCatalogPath(path string) Option {
	return func(o *options) {
		o.catalogPath = path
	}
}

// WithCatalogWorkers sets how many connections introspect keywords
// concurrently when a catalog is written. Defaults to 4.
func WithCatalogWorkers(n int) Option {
	return func(o *options) {
		o.catalogWorkers = n
	}
}

const (
	defaultTimeout         = 3 * time.Second
	defaultPollInterval    = 1 * time.Second
	defaultArtifactPattern = "*.jar"
	defaultTerminateGrace  = 5 * time.Second
	defaultCatalogWorkers  = 4
	defaultCatalogFile     = "keywords.yaml"
	minPollInterval        = 10 * time.Millisecond
	maxStartAttempts       = 5
)

func defaultOptions() options {
	return options{
		mode:            ModeOld,
		timeout:         defaultTimeout,
		pollInterval:    defaultPollInterval,
		artifactPattern: defaultArtifactPattern,
		terminateGrace:  defaultTerminateGrace,
		catalogWorkers:  defaultCatalogWorkers,
	}
}
