package catalog

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ChangeKind classifies one difference between two catalogs.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Changed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	}
	return "unknown"
}

// Change is one keyword that differs between two catalogs.
type Change struct {
	Name string
	Kind ChangeKind
	// Fields lists what differs for a Changed keyword: "args", "doc".
	Fields []string
}

func (c Change) String() string {
	if c.Kind == Changed {
		return fmt.Sprintf("%s: %s (%s)", c.Name, c.Kind, strings.Join(c.Fields, ", "))
	}
	return fmt.Sprintf("%s: %s", c.Name, c.Kind)
}

// Diff reports how got differs from want, sorted by keyword name.
// Documentation is compared after normalizing trailing whitespace.
func Diff(want, got Catalog) []Change {
	var changes []Change
	for name, w := range want {
		g, ok := got[name]
		if !ok {
			changes = append(changes, Change{Name: name, Kind: Removed})
			continue
		}
		var fields []string
		if !slices.Equal(w.Arguments, g.Arguments) {
			fields = append(fields, "args")
		}
		if normalizeDoc(w.Documentation) != normalizeDoc(g.Documentation) {
			fields = append(fields, "doc")
		}
		if len(fields) > 0 {
			changes = append(changes, Change{Name: name, Kind: Changed, Fields: fields})
		}
	}
	for name := range got {
		if _, ok := want[name]; !ok {
			changes = append(changes, Change{Name: name, Kind: Added})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Name < changes[j].Name
	})
	return changes
}

// normalizeDoc trims trailing spaces on each line and trailing blank lines.
func normalizeDoc(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
