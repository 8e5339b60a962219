package source_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"pwexport/internal/source"
)

type stubProvider struct{ name string }

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Open(context.Context, source.Options) (source.Session, error) {
	return nil, nil
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	source.Register(stubProvider{name: "Stub-Registry"})

	p, ok := source.Get("stub-registry")
	assert.True(t, ok)
	assert.Equal(t, "Stub-Registry", p.Name())
	assert.Contains(t, source.Names(), "stub-registry")

	_, ok = source.Get("missing")
	assert.False(t, ok)
}

func TestSelectors_WithDefaults(t *testing.T) {
	t.Parallel()

	s := source.Selectors{Row: "tr.item"}.WithDefaults()

	assert.Equal(t, "tr.item", s.Row)
	assert.Equal(t, source.DefaultSelectors().Detail, s.Detail)
	assert.Equal(t, source.DefaultSelectors().CloseButton, s.CloseButton)
}
