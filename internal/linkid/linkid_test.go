package linkid

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	id, err := NewSessionID()
	require.NoError(t, err)
	assert.Len(t, id, 64) // 32 байта в hex

	other, err := NewSessionID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestNewGroupPIN(t *testing.T) {
	for i := 0; i < 100; i++ {
		pin, err := NewGroupPIN()
		require.NoError(t, err)
		require.Len(t, pin, 6)
		n, err := strconv.Atoi(pin)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestNewLinkIDStyles(t *testing.T) {
	cases := []struct {
		style    string
		length   int
		alphabet string
	}{
		{Style44Upper, 9, alphaUpper},
		{Style44Lower, 9, alphaLower},
		{Style44Mixed, 9, alphaMixed},
		{Style16Hex, 16, "0123456789abcdef"},
		{Style16Upper, 16, alphaUpper},
		{Style16Lower, 16, alphaLower},
		{Style16Mixed, 16, alphaMixed},
		{Style32Hex, 32, "0123456789abcdef"},
		{Style32Upper, 32, alphaUpper},
		{Style32Lower, 32, alphaLower},
		{Style32Mixed, 32, alphaMixed},
	}
	for _, tc := range cases {
		t.Run(tc.style, func(t *testing.T) {
			id, err := NewLinkID(tc.style)
			require.NoError(t, err)
			require.Len(t, id, tc.length)
			for _, r := range id {
				if r == '-' {
					continue
				}
				assert.Contains(t, tc.alphabet, string(r))
			}
		})
	}
}

func TestNewLinkIDDashedForm(t *testing.T) {
	id, err := NewLinkID(Style44Upper)
	require.NoError(t, err)
	parts := strings.Split(id, "-")
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 4)
	assert.Len(t, parts[1], 4)
}

func TestNewLinkIDUUID(t *testing.T) {
	id, err := NewLinkID(StyleUUID)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

func TestNewLinkIDUnknownStyleFallsBack(t *testing.T) {
	id, err := NewLinkID("bogus-style")
	require.NoError(t, err)
	assert.Len(t, id, 9)
	assert.Equal(t, "-", string(id[4]))
}

func TestHumanAlphabetsExcludeConfusables(t *testing.T) {
	assert.NotContains(t, alphaUpper, "0")
	assert.NotContains(t, alphaUpper, "O")
	assert.NotContains(t, alphaMixed, "0")
	assert.NotContains(t, alphaMixed, "O")
	assert.NotContains(t, alphaMixed, "l")
	assert.NotContains(t, alphaMixed, "I")
}
