package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrimitive(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"string passes through", "u1", "u1"},
		{"number passes through", float64(5), float64(5)},
		{"reference object unwraps", map[string]any{"id": "u1", "name": "Ada"}, "u1"},
		{"object without id passes through", map[string]any{"name": "Ada"}, map[string]any{"name": "Ada"}},
		{"nil passes through", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPrimitive(tt.input))
		})
	}
}

func TestEntityID_Simple(t *testing.T) {
	e := map[string]any{"id": "1", "name": "Ada"}

	id, err := EntityID(e, nil)
	require.NoError(t, err)
	assert.False(t, id.IsComposite())
	assert.Equal(t, "1", id.Value())
}

func TestEntityID_SimpleMissingID(t *testing.T) {
	_, err := EntityID(map[string]any{"name": "Ada"}, nil)
	assert.Error(t, err)
}

func TestEntityID_Composite(t *testing.T) {
	e := map[string]any{
		"spaceId": map[string]any{"id": "s1", "name": "Space One"},
		"tagName": "t1",
		"color":   "red",
	}

	id, err := EntityID(e, []string{"spaceId", "tagName"})
	require.NoError(t, err)
	require.True(t, id.IsComposite())

	space, ok := id.Field("spaceId")
	require.True(t, ok)
	assert.Equal(t, "s1", space)

	tag, ok := id.Field("tagName")
	require.True(t, ok)
	assert.Equal(t, "t1", tag)
}

func TestEntityID_CompositeMissingField(t *testing.T) {
	e := map[string]any{"spaceId": "s1"}

	_, err := EntityID(e, []string{"spaceId", "tagName"})
	assert.Error(t, err)
}

func TestEntityID_ReferenceWithoutID(t *testing.T) {
	e := map[string]any{
		"spaceId": map[string]any{"name": "no id here"},
		"tagName": "t1",
	}

	_, err := EntityID(e, []string{"spaceId", "tagName"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spaceId")
}

func TestNewID_Simple(t *testing.T) {
	id, err := NewID("42", nil)
	require.NoError(t, err)
	assert.False(t, id.IsComposite())
	assert.Equal(t, "42", id.Value())
}

func TestNewID_CompositeRequiresMap(t *testing.T) {
	_, err := NewID("42", []string{"a", "b"})
	assert.Error(t, err)
}

func TestNewID_CompositeUnwrapsReferences(t *testing.T) {
	id, err := NewID(map[string]any{
		"a": map[string]any{"id": "x"},
		"b": "y",
	}, []string{"a", "b"})
	require.NoError(t, err)

	a, _ := id.Field("a")
	assert.Equal(t, "x", a)
}

func TestSerialize_SimplePassesThrough(t *testing.T) {
	s, err := Serialize(Simple("u1"), nil)
	require.NoError(t, err)
	assert.Equal(t, "u1", s)
}

func TestSerialize_NumberRendersWithoutFraction(t *testing.T) {
	s, err := Serialize(Simple(float64(5)), nil)
	require.NoError(t, err)
	assert.Equal(t, "5", s)
}

func TestSerialize_CompositeUsesDeclaredOrder(t *testing.T) {
	// Two maps built in opposite insertion orders serialize identically.
	first := map[string]any{"spaceId": "s1", "tagName": "t1"}
	second := map[string]any{"tagName": "t1", "spaceId": "s1"}
	fields := []string{"spaceId", "tagName"}

	a, err := Serialize(Composite(first), fields)
	require.NoError(t, err)
	b, err := Serialize(Composite(second), fields)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, `{"spaceId":"s1","tagName":"t1"}`, a)
}

func TestSerialize_CompositeMissingField(t *testing.T) {
	_, err := Serialize(Composite(map[string]any{"a": "1"}), []string{"a", "b"})
	assert.Error(t, err)
}

func TestStoreKey_Simple(t *testing.T) {
	key, err := StoreKey(Simple("u1"), nil)
	require.NoError(t, err)
	assert.Equal(t, "u1", key)
}

func TestStoreKey_CompositeOrdered(t *testing.T) {
	id := Composite(map[string]any{
		"tagName": "t1",
		"spaceId": map[string]any{"id": "s1"},
	})

	key, err := StoreKey(id, []string{"spaceId", "tagName"})
	require.NoError(t, err)
	assert.Equal(t, []any{"s1", "t1"}, key)
}

func TestPrimitiveString(t *testing.T) {
	assert.Equal(t, "5", PrimitiveString(float64(5)))
	assert.Equal(t, "5.5", PrimitiveString(5.5))
	assert.Equal(t, "true", PrimitiveString(true))
	assert.Equal(t, "hello", PrimitiveString("hello"))
	assert.Equal(t, "", PrimitiveString(nil))
}
