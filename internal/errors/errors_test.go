package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SetsCategoryAndContext(t *testing.T) {
	t.Parallel()

	base := NewStd("view not found")
	err := New(base).
		Component("migrate").
		Category(CategoryNotFound).
		Context("view_external_id", "CogniteAsset").
		Build()

	require.Error(t, err)
	assert.Equal(t, "view not found", err.Error())
	assert.Equal(t, CategoryNotFound, err.Category)
	assert.Equal(t, "migrate", err.Component)
	assert.Equal(t, "CogniteAsset", err.GetContext()["view_external_id"])
	assert.True(t, Is(err, base))
}

func TestBuilder_Defaults(t *testing.T) {
	t.Parallel()

	err := Newf("boom: %d", 42).Build()
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, "boom: 42", err.Error())
}

func TestIs_MatchesByCategory(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryCapacity).Build()
	b := Newf("b").Category(CategoryCapacity).Build()
	c := Newf("c").Category(CategoryCapability).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestUnwrap_PreservesChain(t *testing.T) {
	t.Parallel()

	inner := NewStd("inner")
	wrapped := fmt.Errorf("outer: %w", inner)
	err := New(wrapped).Category(CategoryHTTP).Build()

	assert.True(t, Is(err, inner))

	var ee *EnhancedError
	require.True(t, As(err, &ee))
	assert.Equal(t, CategoryHTTP, ee.Category)
}
