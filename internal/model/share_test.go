package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareEncodeDecodeSolo(t *testing.T) {
	solo := NewSoloShare("ABCD-1234")
	solo.Host = "host-session"
	solo.Expire = 1700000600
	solo.CanAdopt = true

	data, err := EncodeShare(solo)
	require.NoError(t, err)

	got, err := DecodeShare("ABCD-1234", data)
	require.NoError(t, err)
	decoded, ok := got.(*SoloShare)
	require.True(t, ok)
	assert.Equal(t, solo.ID, decoded.ID)
	assert.Equal(t, solo.Host, decoded.Host)
	assert.Equal(t, solo.Expire, decoded.Expire)
	assert.True(t, decoded.CanAdopt)
	assert.Equal(t, ShareTypeSolo, decoded.Type())
	assert.True(t, decoded.Adoptable())
}

func TestShareEncodeDecodeGroup(t *testing.T) {
	group := NewGroupShare("WXYZ-5678", "123456")
	group.AddHost("alice", "sid-a")
	group.AddHost("bob", "sid-b")
	group.Expire = 1700000600

	data, err := EncodeShare(group)
	require.NoError(t, err)

	got, err := DecodeShare("WXYZ-5678", data)
	require.NoError(t, err)
	decoded, ok := got.(*GroupShare)
	require.True(t, ok)
	assert.Equal(t, "123456", decoded.PIN)
	assert.Equal(t, map[string]string{"alice": "sid-a", "bob": "sid-b"}, decoded.Hosts)
	assert.Equal(t, ShareTypeGroup, decoded.Type())
	assert.False(t, decoded.Adoptable())
}

func TestDecodeShareUnknownTag(t *testing.T) {
	_, err := DecodeShare("id", []byte(`{"type":7,"expire":1}`))
	assert.Error(t, err)

	_, err = DecodeShare("id", []byte(`not json`))
	assert.Error(t, err)
}

func TestGroupShareHosts(t *testing.T) {
	g := NewGroupShare("id", "100000")
	g.AddHost("alice", "sid-1")
	g.AddHost("alice", "sid-2") // ник перезаписывается
	assert.Equal(t, "sid-2", g.Hosts["alice"])

	g.AddHost("bob", "sid-2")
	g.RemoveHost("sid-2") // удаляются все ники этой сессии
	assert.Empty(t, g.Hosts)
}
