package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cboone/sikulibridge/catalog"
)

func TestDiff(t *testing.T) {
	want := catalog.Catalog{
		"click":    {Name: "click", Arguments: []string{"image"}, Documentation: "Click image"},
		"find":     {Name: "find", Arguments: []string{"image"}, Documentation: "Find image"},
		"setTimer": {Name: "setTimer", Arguments: []string{"timeout"}, Documentation: "Set timer"},
	}
	got := catalog.Catalog{
		"click":     {Name: "click", Arguments: []string{"image"}, Documentation: "Click image  \n\n"},
		"find":      {Name: "find", Arguments: []string{"image", "timeout=3"}, Documentation: "Find image on screen"},
		"inputText": {Name: "inputText", Arguments: []string{"text"}, Documentation: "Type text"},
	}

	changes := catalog.Diff(want, got)
	assert.Equal(t, []catalog.Change{
		{Name: "find", Kind: catalog.Changed, Fields: []string{"args", "doc"}},
		{Name: "inputText", Kind: catalog.Added},
		{Name: "setTimer", Kind: catalog.Removed},
	}, changes)
	assert.Equal(t, "find: changed (args, doc)", changes[0].String())
	assert.Equal(t, "setTimer: removed", changes[2].String())
}

func TestDiffIdentical(t *testing.T) {
	c, err := catalog.Bundled()
	if err != nil {
		t.Fatalf("Bundled() error: %v", err)
	}
	assert.Empty(t, catalog.Diff(c, c))
}
