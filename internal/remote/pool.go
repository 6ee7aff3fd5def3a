package remote

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Pool holds several clients for one endpoint. A single Client serializes
// its calls, so concurrent introspection borrows one client per call.
type Pool struct {
	clients chan *Client
	all     []*Client
}

// NewPool returns a pool of size clients for url. A size below 1 is
// treated as 1.
func NewPool(url string, transport http.RoundTripper, log logrus.FieldLogger, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{clients: make(chan *Client, size)}
	for range size {
		c, err := New(url, transport, log)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.all = append(p.all, c)
		p.clients <- c
	}
	return p, nil
}

func (p *Pool) get() *Client  { return <-p.clients }
func (p *Pool) put(c *Client) { p.clients <- c }

// KeywordNames lists the keywords the engine exposes.
func (p *Pool) KeywordNames() ([]string, error) {
	c := p.get()
	defer p.put(c)
	return c.KeywordNames()
}

// KeywordArguments returns the argument specification of a keyword.
func (p *Pool) KeywordArguments(name string) ([]string, error) {
	c := p.get()
	defer p.put(c)
	return c.KeywordArguments(name)
}

// KeywordDocumentation returns the documentation of a keyword.
func (p *Pool) KeywordDocumentation(name string) (string, error) {
	c := p.get()
	defer p.put(c)
	return c.KeywordDocumentation(name)
}

// Close closes every client. The pool must not be used afterwards.
func (p *Pool) Close() error {
	var errs []error
	for _, c := range p.all {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
