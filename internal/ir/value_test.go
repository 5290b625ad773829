package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FF61
	// in UTF-16 but after it in UTF-8.
	obj := Object{"｡": Int(1), "\U0001F600": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "｡"}, obj.SortedKeys())
}

func TestParseJSON(t *testing.T) {
	v, err := ParseJSON([]byte(`{"n": 3, "r": 2.5, "e": 1e3, "s": "x", "b": true, "z": null, "l": [1, 2.0]}`))
	require.NoError(t, err)

	want := Object{
		"n": Int(3),
		"r": Real(2.5),
		"e": Real(1000),
		"s": String("x"),
		"b": Bool(true),
		"z": Null{},
		"l": List{Int(1), Real(2)},
	}
	assert.True(t, Equal(want, v), "got %s", Format(v))
}

func TestParseJSON_Errors(t *testing.T) {
	_, err := ParseJSON([]byte(`{"n": 99999999999999999999}`))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"count": 2,
		"rate":  0.5,
		"tags":  []any{"a", nil},
	})
	require.NoError(t, err)
	assert.True(t, Equal(Object{
		"count": Int(2),
		"rate":  Real(0.5),
		"tags":  List{String("a"), Null{}},
	}, v))

	_, err = FromAny(math.Inf(1))
	assert.Error(t, err)
	_, err = FromAny(struct{}{})
	assert.Error(t, err)
	_, err = FromAny(map[string]any{"bad": []any{math.NaN()}})
	assert.ErrorContains(t, err, `["bad"]`)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, Null{}))
	assert.True(t, Equal(List{Int(1)}, List{Int(1)}))
	assert.False(t, Equal(Int(1), Real(1)))
	assert.False(t, Equal(Object{"a": Int(1)}, Object{"a": Int(1), "b": Int(2)}))
	assert.False(t, Equal(Object{"a": Int(1)}, Object{"b": Int(1)}))
	assert.False(t, Equal(List{Int(1)}, String("x")))
}

func TestObjectAccessors(t *testing.T) {
	args := NewObject(O("rate", Int(2)), O("scale", Real(1.5)), O("name", String("ripe")), O("whole", Real(4)))

	f, err := args.Float("rate", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	f, err = args.Float("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)

	_, err = args.Float("name", 0)
	assert.ErrorContains(t, err, `argument "name": expected number, got string`)

	n, err := args.Int("whole", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = args.Int("scale", 0)
	assert.Error(t, err)

	s, err := args.Str("name", "")
	require.NoError(t, err)
	assert.Equal(t, "ripe", s)

	_, err = args.Str("rate", "")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	v := Object{"b": List{Int(1), Real(2), Null{}}, "a": String("x")}
	assert.Equal(t, `{a: "x", b: [1, 2.0, null]}`, Format(v))
}

func TestObjectJSONRoundTrip(t *testing.T) {
	obj := Object{"z": Real(0.1), "a": List{Bool(false)}}
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[false],"z":0.1}`, string(data))

	var back Object
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(obj, back))

	var notObj Object
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &notObj))
}
