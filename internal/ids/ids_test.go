package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Prefix(t *testing.T) {
	id := UUIDv7Generator{Prefix: "local-"}.Generate()
	require.True(t, strings.HasPrefix(id, "local-"))

	parsed, err := uuid.Parse(strings.TrimPrefix(id, "local-"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_Sortable(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("o1", "o2")
	assert.Equal(t, "o1", g.Generate())
	assert.Equal(t, "o2", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
