// Package remote is a client for engines speaking the Robot Framework remote
// library protocol over XML-RPC.
package remote

import (
	"fmt"
	"net/http"

	"github.com/kolo/xmlrpc"
	"github.com/sirupsen/logrus"
)

// Keyword names and RPC methods defined by the remote protocol.
const (
	MethodKeywordNames         = "get_keyword_names"
	MethodKeywordArguments     = "get_keyword_arguments"
	MethodKeywordDocumentation = "get_keyword_documentation"
	MethodRunKeyword           = "run_keyword"

	StopRemoteServer = "stop_remote_server"
)

// Status values of a keyword result.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// Client forwards keyword operations to one engine endpoint. Every method
// is a single blocking round trip; nothing is retried here.
type Client struct {
	url string
	rpc *xmlrpc.Client
	log logrus.FieldLogger
}

// New returns a client for the XML-RPC endpoint at url. A nil transport
// uses http.DefaultTransport.
func New(url string, transport http.RoundTripper, log logrus.FieldLogger) (*Client, error) {
	rpc, err := xmlrpc.NewClient(url, transport)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w", url, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		url: url,
		rpc: rpc,
		log: log.WithField("endpoint", url),
	}, nil
}

// URL returns the endpoint this client talks to.
func (c *Client) URL() string {
	return c.url
}

// KeywordNames lists the keywords the engine exposes.
func (c *Client) KeywordNames() ([]string, error) {
	var names []string
	if err := c.rpc.Call(MethodKeywordNames, nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// KeywordArguments returns the argument specification of a keyword, such as
// ["image", "timeout=3"].
func (c *Client) KeywordArguments(name string) ([]string, error) {
	var args []string
	if err := c.rpc.Call(MethodKeywordArguments, name, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// KeywordDocumentation returns the documentation of a keyword.
func (c *Client) KeywordDocumentation(name string) (string, error) {
	var doc string
	if err := c.rpc.Call(MethodKeywordDocumentation, name, &doc); err != nil {
		return "", err
	}
	return doc, nil
}

// result mirrors the struct returned by run_keyword.
type result struct {
	Status      string      `xmlrpc:"status"`
	Return      interface{} `xmlrpc:"return"`
	Output      string      `xmlrpc:"output"`
	Error       string      `xmlrpc:"error"`
	Traceback   string      `xmlrpc:"traceback"`
	Continuable bool        `xmlrpc:"continuable"`
	Fatal       bool        `xmlrpc:"fatal"`
}

// RunKeyword executes a keyword on the engine and returns its return value.
// A transport or protocol fault is returned as is; a keyword that ran and
// failed is returned as a *KeywordError. kwargs are only sent when present.
func (c *Client) RunKeyword(name string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	params := []interface{}{name, normalizeArgs(args)}
	if len(kwargs) > 0 {
		params = append(params, kwargs)
	}

	var res result
	if err := c.rpc.Call(MethodRunKeyword, params, &res); err != nil {
		return nil, err
	}

	if res.Output != "" {
		c.log.WithField("keyword", name).Info(res.Output)
	}

	if res.Status != StatusPass {
		return nil, &KeywordError{
			Keyword:     name,
			Message:     res.Error,
			Traceback:   res.Traceback,
			Continuable: res.Continuable,
			Fatal:       res.Fatal,
		}
	}
	return res.Return, nil
}

// Stop asks the engine to shut its server down.
func (c *Client) Stop() error {
	_, err := c.RunKeyword(StopRemoteServer, nil, nil)
	return err
}

// Close releases the underlying connection resources.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// XML-RPC has no nil; the remote protocol sends empty strings instead.
func normalizeArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if a == nil {
			out[i] = ""
			continue
		}
		out[i] = a
	}
	return out
}

// KeywordError is a keyword that the engine executed and reported as failed.
type KeywordError struct {
	Keyword     string
	Message     string
	Traceback   string
	Continuable bool
	Fatal       bool
}

func (e *KeywordError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("keyword %q failed", e.Keyword)
	}
	return e.Message
}
