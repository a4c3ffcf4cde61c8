package dberr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageNamesObject(t *testing.T) {
	err := New(KindEntityMissing, "schema.orders", "no such entity")
	assert.Contains(t, err.Error(), "schema.orders")
	assert.Contains(t, err.Error(), "no such entity")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("bolt: bucket not found")
	err := Wrap(KindStoreMissing, "entity.vectors", cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindStoreMissing, err.Kind)
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	inner := New(KindDeadlock, "tx#7", "waits-for cycle detected")
	outer := fmt.Errorf("commit failed: %w", inner)

	assert.True(t, Is(outer, KindDeadlock))
	assert.False(t, Is(outer, KindAborted))

	kind, ok := KindOf(outer)
	require.True(t, ok)
	assert.Equal(t, KindDeadlock, kind)
}
