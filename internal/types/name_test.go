package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameEqualityIsCaseInsensitive(t *testing.T) {
	a := NewEntityName("Shop", "Products")
	b := NewEntityName("shop", "products")
	assert.True(t, a.Equal(b))
}

func TestColumnWildcardMatch(t *testing.T) {
	pattern := NewColumnName("shop", "products", "*")
	col := NewColumnName("shop", "products", "embedding")
	assert.True(t, pattern.Matches(col))

	other := NewColumnName("shop", "reviews", "embedding")
	assert.False(t, pattern.Matches(other))
}

func TestNameParent(t *testing.T) {
	col := NewColumnName("shop", "products", "embedding")
	entity := col.Parent()
	assert.Equal(t, EntityName, entity.Kind)
	assert.Equal(t, "shop.products", entity.String())

	schema := entity.Parent()
	assert.Equal(t, SchemaName, schema.Kind)
	assert.Equal(t, "shop", schema.String())
}
