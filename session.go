package sikulibridge

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner variables the bridge reads from its Session.
const (
	VarSuiteSource = "${SUITE SOURCE}"
	VarOutputDir   = "${OUTPUTDIR}"
	VarLogLevel    = "${LOG_LEVEL}"
)

// ErrNoSession is returned by sessions that are not backed by a test run.
var ErrNoSession = errors.New("no active test run")

// Session exposes the variables of the test run hosting the bridge. Any
// error from VariableValue is read as "no active test run".
type Session interface {
	VariableValue(name string) (string, error)
}

type noSession struct{}

func (noSession) VariableValue(name string) (string, error) {
	return "", fmt.Errorf("%w: cannot read %s", ErrNoSession, name)
}

// MapSession is a Session backed by a fixed set of variables.
type MapSession map[string]string

// VariableValue returns the value of name or an error when it is unset.
func (m MapSession) VariableValue(name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", fmt.Errorf("variable %s not found", name)
	}
	return v, nil
}

// EnvSession reads runner variables from the environment. "${SUITE SOURCE}"
// with prefix "ROBOT_" is read from ROBOT_SUITE_SOURCE.
type EnvSession struct {
	Prefix string
}

// VariableValue returns the environment value for name.
func (s EnvSession) VariableValue(name string) (string, error) {
	key := s.Prefix + envKey(name)
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("%w: %s is not set", ErrNoSession, key)
	}
	return v, nil
}

var envKeyReplacer = strings.NewReplacer("${", "", "}", "", " ", "_", "-", "_")

func envKey(name string) string {
	return strings.ToUpper(envKeyReplacer.Replace(name))
}

// probeSession reports whether s belongs to an active test run. A probe
// that fails in any way, including a panic, means there is none.
func probeSession(s Session) (active bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			active, err = false, fmt.Errorf("session probe panicked: %v", r)
		}
	}()
	if _, err := s.VariableValue(VarSuiteSource); err != nil {
		return false, err
	}
	return true, nil
}

var runnerLogLevels = map[string]logrus.Level{
	"TRACE": logrus.TraceLevel,
	"DEBUG": logrus.DebugLevel,
	"INFO":  logrus.InfoLevel,
	"HTML":  logrus.InfoLevel,
	"WARN":  logrus.WarnLevel,
	"ERROR": logrus.ErrorLevel,
	"NONE":  logrus.PanicLevel,
}

// newLogger builds the default logger: message-only lines on stdout, at
// the runner's log level when the session has one and debug otherwise.
func newLogger(s Session) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.DebugLevel)

	if v, err := s.VariableValue(VarLogLevel); err == nil {
		if lvl, ok := runnerLogLevels[strings.ToUpper(strings.TrimSpace(v))]; ok {
			l.SetLevel(lvl)
		}
	}
	return l
}
