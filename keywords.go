package sikulibridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cboone/sikulibridge/internal/remote"
)

// KeywordSource describes keywords. It is implemented by catalog.Catalog
// (cached metadata) and by the live engine connection.
type KeywordSource interface {
	KeywordNames() ([]string, error)
	KeywordArguments(name string) ([]string, error)
	KeywordDocumentation(name string) (string, error)
}

// Names answered by the bridge itself.
const (
	// StartKeyword starts the engine. It is never forwarded.
	StartKeyword = "start_sikuli_process"

	// StopKeyword is the engine keyword that shuts its server down.
	StopKeyword = remote.StopRemoteServer

	introName = "__intro__"
	initName  = "__init__"
)

// StartKeywordDoc documents StartKeyword.
const StartKeywordDoc = `This keyword is used to start sikuli java process.
If library is inited with mode "OLD", sikuli java process is started automatically.
If library is inited with mode "NEW", this keyword should be used.

:param port: port of sikuli java process, if value is None or 0, a random free port will be used
:return: None`

// IntroDoc is the library documentation, answered for "__intro__".
const IntroDoc = `Sikuli library provides keywords to test UI through Sikuli.

Keywords are implemented by a Sikuli engine running as a separate java
process. The library starts that process on a free local port, waits until
it answers, and forwards every keyword to it over the remote library
interface.`

// InitDoc documents library construction, answered for "__init__".
const InitDoc = `port: sikuli java process socket port
timeout: Timeout of waiting java process started
mode: if set as 'DOC', will stop java process automatically,
      if set as 'PYTHON', means library is running out of robot environment
      if set as 'CREATE', it is only for mvn package usage, will create keywords file
      if set as 'OLD'(default), sikuli java process will be started when library is inited
      if set as 'NEW', user should use 'start_sikuli_process' to start java process`

var startKeywordArgs = []string{"port=None"}

// liveSource reads keyword metadata from the verified engine connection.
type liveSource struct {
	b *Bridge
}

func (s liveSource) KeywordNames() ([]string, error) {
	c, err := s.b.connected()
	if err != nil {
		return nil, err
	}
	return c.KeywordNames()
}

func (s liveSource) KeywordArguments(name string) ([]string, error) {
	c, err := s.b.connected()
	if err != nil {
		return nil, err
	}
	return c.KeywordArguments(name)
}

func (s liveSource) KeywordDocumentation(name string) (string, error) {
	c, err := s.b.connected()
	if err != nil {
		return "", err
	}
	return c.KeywordDocumentation(name)
}

// startPortArg reads the optional port argument of StartKeyword. Missing,
// empty, "None" and zero all mean "pick a free port".
func startPortArg(args []interface{}) (int, error) {
	if len(args) == 0 || args[0] == nil {
		return 0, nil
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("%s expects at most 1 argument, got %d", StartKeyword, len(args))
	}

	var port int
	switch v := args[0].(type) {
	case int:
		port = v
	case int64:
		port = int(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s: invalid port %v", StartKeyword, v)
		}
		port = int(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "None") {
			return 0, nil
		}
		p, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid port %q", StartKeyword, v)
		}
		port = p
	default:
		return 0, fmt.Errorf("%s: invalid port %v (%T)", StartKeyword, v, v)
	}

	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s: port %d out of range", StartKeyword, port)
	}
	return port, nil
}
