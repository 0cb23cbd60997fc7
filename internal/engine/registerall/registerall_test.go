package registerall

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robertjbass/spindb/internal/enum"
)

func TestNewRegistersAllSeventeenEngines(t *testing.T) {
	r := New()
	for _, tag := range enum.Engine("").Values() {
		assert.True(t, r.Registered(enum.Engine(tag)), "missing adapter for %s", tag)
	}
}

func TestCreateReturnsMatchingAdapter(t *testing.T) {
	r := New()
	a, err := r.Create(enum.EngineQdrant)
	assert.NoError(t, err)
	assert.Equal(t, enum.EngineQdrant, a.Engine())
}
