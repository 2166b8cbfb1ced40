package jsontok

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFlatObject(t *testing.T) {
	input := []byte(`{"a":1,"b":true}`)
	toks, err := Parse(input, DefaultMaxTokens)
	require.NoError(t, err)
	require.Len(t, toks, 5) // object, "a", 1, "b", true
	require.Equal(t, Object, toks[0].Type)
	require.Equal(t, 2, toks[0].Children)
	require.Equal(t, "a", string(toks[1].Raw(input)))
	require.Equal(t, "1", string(toks[2].Raw(input)))
}

func TestParseNestedArray(t *testing.T) {
	input := []byte(`[1,[2,3],"x"]`)
	toks, err := Parse(input, DefaultMaxTokens)
	require.NoError(t, err)
	require.Equal(t, Array, toks[0].Type)
	require.Equal(t, 3, toks[0].Children)
}

func TestParseRejectsObjectAsKey(t *testing.T) {
	_, err := Parse([]byte(`{"a":{"b":1}}`), DefaultMaxTokens)
	require.NoError(t, err) // value may be an object

	_, err = Parse([]byte(`{{"a":1}:2}`), DefaultMaxTokens)
	require.Error(t, err)
}

func TestParseRejectsNonStrictPrimitive(t *testing.T) {
	_, err := Parse([]byte(`{"a":undefined}`), DefaultMaxTokens)
	require.Error(t, err)
}

func TestParseIncompleteReportsIncomplete(t *testing.T) {
	_, err := Parse([]byte(`{"a":1`), DefaultMaxTokens)
	require.Error(t, err)
}

func TestParseInputOverLimitRejected(t *testing.T) {
	big := make([]byte, MaxInputLen+1)
	for i := range big {
		big[i] = ' '
	}
	big[0] = '1'
	_, err := Parse(big, DefaultMaxTokens)
	require.Error(t, err)
}

func TestParseTokenBudgetExceeded(t *testing.T) {
	_, err := Parse([]byte(`[1,2,3,4,5]`), 3)
	require.Error(t, err)
}

func TestParseIsRestartable(t *testing.T) {
	input := []byte(`{"a":1}`)
	toks1, err := Parse(input, DefaultMaxTokens)
	require.NoError(t, err)
	toks2, err := Parse(input, DefaultMaxTokens)
	require.NoError(t, err)
	require.Equal(t, toks1, toks2)
}

func TestParseNumberForms(t *testing.T) {
	for _, s := range []string{"0", "-1", "3.14", "-2.5e10", "1E-3"} {
		_, err := Parse([]byte(s), DefaultMaxTokens)
		require.NoError(t, err, s)
	}
	for _, s := range []string{"01", "-", "1.", ".5", "1e"} {
		_, err := Parse([]byte(s), DefaultMaxTokens)
		require.Error(t, err, s)
	}
}
