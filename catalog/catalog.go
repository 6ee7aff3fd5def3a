// Package catalog holds keyword metadata for the engine: the name, argument
// specification and documentation of every keyword it exposes.
//
// A catalog is generated once from a running engine and bundled with the
// library, so keyword discovery does not need a live engine.
package catalog

//go:generate go run ../cmd/sikulibridge catalog --out keywords.yaml

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"gopkg.in/yaml.v3"
)

// ErrUnknownKeyword is returned for names missing from a catalog.
var ErrUnknownKeyword = errors.New("unknown keyword")

// Spec describes one keyword.
type Spec struct {
	Name          string   `yaml:"-"`
	Arguments     []string `yaml:"args"`
	Documentation string   `yaml:"doc"`
}

// Catalog maps keyword names to their specs.
type Catalog map[string]Spec

//go:embed keywords.yaml
var bundledYAML []byte

var (
	bundledOnce sync.Once
	bundled     Catalog
	bundledErr  error
)

// Bundled returns the catalog shipped with the library.
func Bundled() (Catalog, error) {
	bundledOnce.Do(func() {
		bundled, bundledErr = Parse(bundledYAML)
	})
	return bundled, bundledErr
}

// Parse decodes a catalog from YAML.
func Parse(data []byte) (Catalog, error) {
	c := Catalog{}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	for name, spec := range c {
		spec.Name = name
		if spec.Arguments == nil {
			spec.Arguments = []string{}
		}
		c[name] = spec
	}
	return c, nil
}

// Load reads a catalog file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: load: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the catalog as YAML, keywords sorted by name.
func (c Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(map[string]Spec(c))
}

// WriteFile atomically replaces path with the encoded catalog.
func (c Catalog) WriteFile(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("catalog: write: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".keywords-*.yaml")
	if err != nil {
		return fmt.Errorf("catalog: write: %w", err)
	}
	defer os.Remove(tmp.Name())

	header := "# Code generated by sikulibridge catalog. DO NOT EDIT.\n"
	if _, err := tmp.WriteString(header); err != nil {
		tmp.Close()
		return fmt.Errorf("catalog: write: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("catalog: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalog: write: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("catalog: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("catalog: write: %w", err)
	}
	return nil
}

// KeywordNames returns every keyword name, sorted.
func (c Catalog) KeywordNames() ([]string, error) {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// KeywordArguments returns the argument specification of name.
func (c Catalog) KeywordArguments(name string) ([]string, error) {
	spec, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyword, name)
	}
	return append([]string{}, spec.Arguments...), nil
}

// KeywordDocumentation returns the documentation of name.
func (c Catalog) KeywordDocumentation(name string) (string, error) {
	spec, ok := c[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKeyword, name)
	}
	return spec.Documentation, nil
}

// Source is anything that can describe keywords, such as a live engine.
type Source interface {
	KeywordNames() ([]string, error)
	KeywordArguments(name string) ([]string, error)
	KeywordDocumentation(name string) (string, error)
}

// Build introspects every keyword of src, at most workers at a time, and
// returns the resulting catalog. Names listed in skip are left out.
func Build(ctx context.Context, src Source, workers int, skip ...string) (Catalog, error) {
	names, err := src.KeywordNames()
	if err != nil {
		return nil, fmt.Errorf("catalog: build: list keywords: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	p := pool.NewWithResults[Spec]().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for _, name := range names {
		if skipped[name] {
			continue
		}
		p.Go(func(ctx context.Context) (Spec, error) {
			if err := ctx.Err(); err != nil {
				return Spec{}, err
			}
			args, err := src.KeywordArguments(name)
			if err != nil {
				return Spec{}, fmt.Errorf("arguments of %q: %w", name, err)
			}
			doc, err := src.KeywordDocumentation(name)
			if err != nil {
				return Spec{}, fmt.Errorf("documentation of %q: %w", name, err)
			}
			if args == nil {
				args = []string{}
			}
			return Spec{Name: name, Arguments: args, Documentation: doc}, nil
		})
	}

	specs, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("catalog: build: %w", err)
	}

	c := make(Catalog, len(specs))
	for _, spec := range specs {
		c[spec.Name] = spec
	}
	return c, nil
}
