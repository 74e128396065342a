package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectory(t *testing.T) {
	d := NewDirectory()

	_, ok := d.Lookup("c1")
	assert.False(t, ok)

	d.Register("c1", "alice")
	name, ok := d.Lookup("c1")
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.Equal(t, 1, d.Len())

	// Re-registering overwrites the name.
	d.Register("c1", "alicia")
	name, _ = d.Lookup("c1")
	assert.Equal(t, "alicia", name)

	d.Unregister("c1")
	_, ok = d.Lookup("c1")
	assert.False(t, ok)

	// Unregistering an unknown id is a no-op.
	d.Unregister("ghost")
	assert.Equal(t, 0, d.Len())
}
