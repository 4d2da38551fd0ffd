package rest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHash(t *testing.T) {
	valid := "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	hash, ok := ParseHash(valid)
	require.True(t, ok)
	assert.Equal(t, valid, hash.String())

	upper, ok := ParseHash(strings.ToUpper(valid))
	require.True(t, ok)
	assert.Equal(t, *hash, *upper)

	for _, bad := range []string{
		"",
		valid[:63],
		valid + "0",
		"zz" + valid[2:],
		valid[:62] + " 1",
	} {
		_, ok := ParseHash(bad)
		assert.False(t, ok, bad)
	}
}

func TestDecodeName(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"a+b%20c", []byte("a b c")},
		{"d%2ftest", []byte("d/test")},
		{"d%2Ftest", []byte("d/test")},
		{"%00%ff", []byte{0x00, 0xff}},
		{"plain", []byte("plain")},
		{"", []byte{}},
	}
	for _, tt := range tests {
		got, err := DecodeName(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"a%2", "a%", "%", "%g0", "%0x"} {
		_, err := DecodeName(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsHex(t *testing.T) {
	assert.True(t, isHex("00ff"))
	assert.True(t, isHex("AbCd"))
	for _, bad := range []string{"", "0", "abc", "0g", "00 1"} {
		assert.False(t, isHex(bad), bad)
	}
}
