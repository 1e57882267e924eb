package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeysAndCompacts(t *testing.T) {
	obj := IRObject{
		"next":      IRObject{"unit_price": IRInt(115)},
		"operation": IRString("price_change"),
		"material":  IRBool(true),
		"previous":  IRObject{"unit_price": IRInt(100)},
	}

	data, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t,
		`{"material":true,"next":{"unit_price":115},"operation":"price_change","previous":{"unit_price":100}}`,
		string(data))
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	data, err := MarshalCanonical(IRArray{IRFloat(12.5), IRFloat(3), IRInt(-7), IRFloat(0.1)})
	require.NoError(t, err)
	assert.Equal(t, `[12.5,3,-7,0.1]`, string(data))
}

func TestMarshalCanonical_RejectsInfinity(t *testing.T) {
	_, err := MarshalCanonical(IRObject{"x": IRFloat(math.Inf(1))})
	require.Error(t, err)
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(IRString("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(data))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" as e + combining acute accent normalises to the precomposed form.
	decomposed, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	precomposed, err := MarshalCanonical(IRString("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, precomposed, decomposed)
}

func TestMarshalCanonical_LineSeparatorsUnescaped(t *testing.T) {
	data, err := MarshalCanonical(IRString("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(data))

	literal, err := MarshalCanonical(IRString(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(literal))
}

func TestMarshalCanonical_NullAllowed(t *testing.T) {
	data, err := MarshalCanonical(IRObject{"previous": IRNull{}})
	require.NoError(t, err)
	assert.Equal(t, `{"previous":null}`, string(data))
}

func TestMarshalCanonical_GoMaps(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"b": 2, "a": []any{"x", true}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",true],"b":2}`, string(data))
}

func TestMarshalCanonical_RoundTripIsStable(t *testing.T) {
	original := IRObject{
		"entity": IRObject{"unit_price": IRFloat(99.95), "quantity": IRInt(10)},
		"target": IRObject{"entity_id": IRString("PO-1"), "sub_index": IRInt(10)},
	}
	first, err := MarshalCanonical(original)
	require.NoError(t, err)

	var decoded IRObject
	require.NoError(t, json.Unmarshal(first, &decoded))
	assert.Equal(t, original, decoded)

	second, err := MarshalCanonical(decoded)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
