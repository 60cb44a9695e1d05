package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"b": 1, "a": "x", "c": true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":true}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(data))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"
	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMarshalCanonical_RejectsFloatAndNull(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.Error(t, err)
	_, err = MarshalCanonical(nil)
	assert.Error(t, err)
	_, err = MarshalCanonical([]any{"a", nil})
	assert.Error(t, err)
}

func TestFingerprint_Deterministic(t *testing.T) {
	v := map[string]any{"rules": []string{"Wait: <s>", "tcd.sleep(<s>)"}}
	a, err := Fingerprint(DomainTable, v)
	require.NoError(t, err)
	b, err := Fingerprint(DomainTable, v)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Fingerprint(DomainScript, v)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "domain separation")
}

func TestScriptFingerprint(t *testing.T) {
	assert.Equal(t, ScriptFingerprint([]string{"a"}), ScriptFingerprint([]string{"a"}))
	assert.NotEqual(t, ScriptFingerprint([]string{"a"}), ScriptFingerprint([]string{"b"}))
}
