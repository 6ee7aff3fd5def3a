// Package enginetest provides a fake engine that speaks the remote library
// protocol over XML-RPC and records every call it receives.
package enginetest

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Keyword is a keyword served by the fake engine.
type Keyword struct {
	Arguments     []string
	Documentation string
	// Run is invoked by run_keyword. A nil Run passes and returns "".
	Run func(args []interface{}) (interface{}, error)
}

// Call records one XML-RPC request.
type Call struct {
	Method  string
	Keyword string
	Args    []interface{}
	// Params is the number of XML-RPC parameters sent.
	Params int
}

// Engine is an http.Handler serving the remote library protocol.
type Engine struct {
	mu         sync.Mutex
	keywords   map[string]Keyword
	calls      []Call
	failNames  int
	stopped    chan struct{}
	stopOnce   sync.Once
	onStop     func()
	getCounter int
}

// New returns an engine exposing the given keywords.
func New(keywords map[string]Keyword) *Engine {
	return &Engine{
		keywords: keywords,
		stopped:  make(chan struct{}),
	}
}

// DefaultKeywords is a small keyword set resembling the real engine.
func DefaultKeywords() map[string]Keyword {
	return map[string]Keyword{
		"click": {
			Arguments:     []string{"image"},
			Documentation: "Click image",
		},
		"find": {
			Arguments:     []string{"image", "timeout=3"},
			Documentation: "Find image on screen",
			Run: func(args []interface{}) (interface{}, error) {
				if len(args) == 0 {
					return nil, fmt.Errorf("find: image argument is required")
				}
				return fmt.Sprintf("found %v", args[0]), nil
			},
		},
	}
}

// OnStop registers fn to run once stop_remote_server has been answered.
func (e *Engine) OnStop(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStop = fn
}

// FailKeywordNames makes the next n get_keyword_names calls return a fault.
func (e *Engine) FailKeywordNames(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNames = n
}

// Stopped is closed once stop_remote_server has been received.
func (e *Engine) Stopped() <-chan struct{} {
	return e.stopped
}

// Calls returns a copy of every XML-RPC call received so far.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// CallCount returns how many calls of method were received.
func (e *Engine) CallCount(method string) int {
	n := 0
	for _, c := range e.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// KeywordCalls returns the run_keyword calls for keyword.
func (e *Engine) KeywordCalls(keyword string) []Call {
	var out []Call
	for _, c := range e.Calls() {
		if c.Method == "run_keyword" && c.Keyword == keyword {
			out = append(out, c)
		}
	}
	return out
}

// GetCount returns how many plain GET probes were answered.
func (e *Engine) GetCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getCounter
}

// ServeHTTP answers GET probes and XML-RPC POSTs.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		e.mu.Lock()
		e.getCounter++
		e.mu.Unlock()
		fmt.Fprintln(w, "fake engine")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var call methodCall
	if err := xml.Unmarshal(body, &call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params := make([]interface{}, len(call.Params))
	for i, p := range call.Params {
		params[i] = p.native()
	}

	rec := Call{Method: call.Method, Params: len(params)}
	if len(params) > 0 {
		rec.Keyword, _ = params[0].(string)
	}
	if len(params) > 1 {
		rec.Args, _ = params[1].([]interface{})
	}

	e.mu.Lock()
	e.calls = append(e.calls, rec)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	switch call.Method {
	case "get_keyword_names":
		e.mu.Lock()
		fail := e.failNames > 0
		if fail {
			e.failNames--
		}
		e.mu.Unlock()
		if fail {
			writeFault(w, 1, "engine still initializing")
			return
		}
		names := make([]string, 0, len(e.keywords))
		for name := range e.keywords {
			names = append(names, name)
		}
		sort.Strings(names)
		writeResponse(w, names)
	case "get_keyword_arguments":
		kw, ok := e.lookup(w, rec.Keyword)
		if ok {
			writeResponse(w, append([]string{}, kw.Arguments...))
		}
	case "get_keyword_documentation":
		kw, ok := e.lookup(w, rec.Keyword)
		if ok {
			writeResponse(w, kw.Documentation)
		}
	case "run_keyword":
		e.runKeyword(w, rec)
	default:
		writeFault(w, 2, fmt.Sprintf("method %q is not supported", call.Method))
	}
}

func (e *Engine) lookup(w http.ResponseWriter, name string) (Keyword, bool) {
	if name == "stop_remote_server" {
		return Keyword{Documentation: "Stop the remote server"}, true
	}
	kw, ok := e.keywords[name]
	if !ok {
		writeFault(w, 3, fmt.Sprintf("no keyword with name %q", name))
	}
	return kw, ok
}

func (e *Engine) runKeyword(w http.ResponseWriter, rec Call) {
	if rec.Keyword == "stop_remote_server" {
		writeResponse(w, map[string]interface{}{"status": "PASS", "return": "", "output": ""})
		e.stopOnce.Do(func() {
			close(e.stopped)
			e.mu.Lock()
			fn := e.onStop
			e.mu.Unlock()
			if fn != nil {
				go fn()
			}
		})
		return
	}

	kw, ok := e.keywords[rec.Keyword]
	if !ok {
		writeResponse(w, map[string]interface{}{
			"status": "FAIL",
			"error":  fmt.Sprintf("No keyword with name '%s' found.", rec.Keyword),
		})
		return
	}

	var ret interface{} = ""
	if kw.Run != nil {
		v, err := kw.Run(rec.Args)
		if err != nil {
			writeResponse(w, map[string]interface{}{
				"status":    "FAIL",
				"error":     err.Error(),
				"traceback": "at " + rec.Keyword,
			})
			return
		}
		if v != nil {
			ret = v
		}
	}
	writeResponse(w, map[string]interface{}{
		"status": "PASS",
		"return": ret,
		"output": "*INFO* ran " + rec.Keyword,
	})
}

type methodCall struct {
	Method string  `xml:"methodName"`
	Params []value `xml:"params>param>value"`
}

type value struct {
	String  *string     `xml:"string"`
	Int     *int64      `xml:"int"`
	I4      *int64      `xml:"i4"`
	Boolean *string     `xml:"boolean"`
	Double  *float64    `xml:"double"`
	Array   *arrayValue `xml:"array"`
	Struct  *structVal  `xml:"struct"`
	Text    string      `xml:",chardata"`
}

type arrayValue struct {
	Values []value `xml:"data>value"`
}

type structVal struct {
	Members []member `xml:"member"`
}

type member struct {
	Name  string `xml:"name"`
	Value value  `xml:"value"`
}

func (v value) native() interface{} {
	switch {
	case v.String != nil:
		return *v.String
	case v.Int != nil:
		return *v.Int
	case v.I4 != nil:
		return *v.I4
	case v.Boolean != nil:
		return strings.TrimSpace(*v.Boolean) == "1"
	case v.Double != nil:
		return *v.Double
	case v.Array != nil:
		out := make([]interface{}, len(v.Array.Values))
		for i, item := range v.Array.Values {
			out[i] = item.native()
		}
		return out
	case v.Struct != nil:
		out := make(map[string]interface{}, len(v.Struct.Members))
		for _, m := range v.Struct.Members {
			out[m.Name] = m.Value.native()
		}
		return out
	default:
		return v.Text
	}
}

func writeResponse(w io.Writer, v interface{}) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><methodResponse><params><param>`)
	encodeValue(&b, v)
	b.WriteString(`</param></params></methodResponse>`)
	io.WriteString(w, b.String())
}

func writeFault(w io.Writer, code int, msg string) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><methodResponse><fault>`)
	encodeValue(&b, map[string]interface{}{"faultCode": code, "faultString": msg})
	b.WriteString(`</fault></methodResponse>`)
	io.WriteString(w, b.String())
}

func encodeValue(b *strings.Builder, v interface{}) {
	b.WriteString("<value>")
	switch x := v.(type) {
	case nil:
		b.WriteString("<string></string>")
	case string:
		b.WriteString("<string>")
		_ = xml.EscapeText(b, []byte(x))
		b.WriteString("</string>")
	case int:
		b.WriteString("<int>" + strconv.Itoa(x) + "</int>")
	case int64:
		b.WriteString("<int>" + strconv.FormatInt(x, 10) + "</int>")
	case bool:
		if x {
			b.WriteString("<boolean>1</boolean>")
		} else {
			b.WriteString("<boolean>0</boolean>")
		}
	case float64:
		b.WriteString("<double>" + strconv.FormatFloat(x, 'f', -1, 64) + "</double>")
	case []string:
		b.WriteString("<array><data>")
		for _, s := range x {
			encodeValue(b, s)
		}
		b.WriteString("</data></array>")
	case []interface{}:
		b.WriteString("<array><data>")
		for _, item := range x {
			encodeValue(b, item)
		}
		b.WriteString("</data></array>")
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("<struct>")
		for _, k := range keys {
			b.WriteString("<member><name>")
			_ = xml.EscapeText(b, []byte(k))
			b.WriteString("</name>")
			encodeValue(b, x[k])
			b.WriteString("</member>")
		}
		b.WriteString("</struct>")
	default:
		b.WriteString("<string>")
		_ = xml.EscapeText(b, []byte(fmt.Sprint(x)))
		b.WriteString("</string>")
	}
	b.WriteString("</value>")
}
