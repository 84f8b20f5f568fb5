package encription_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warestage/loadsheet-client/pkg/encription"
)

func TestSealOpenRoundTrip(t *testing.T) {
	enc, err := encription.NewEnc("dock4")
	require.NoError(t, err)

	plain := []byte(`[{"id":"m1","kind":"update_record"}]`)
	sealed, err := enc.Seal(plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, sealed)

	opened, err := enc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestSealIsRandomized(t *testing.T) {
	enc, err := encription.NewEnc("dock4")
	require.NoError(t, err)

	a, err := enc.Seal([]byte("payload"))
	require.NoError(t, err)
	b, err := enc.Seal([]byte("payload"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWrongKeyGarbles(t *testing.T) {
	enc1, err := encription.NewEnc("dock4")
	require.NoError(t, err)
	enc2, err := encription.NewEnc("dock5")
	require.NoError(t, err)

	sealed, err := enc1.Seal([]byte("payload"))
	require.NoError(t, err)

	opened, err := enc2.Open(sealed)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("payload"), opened)
}

func TestOpenTooShort(t *testing.T) {
	enc, err := encription.NewEnc("dock4")
	require.NoError(t, err)

	_, err = enc.Open([]byte("short"))
	assert.Error(t, err)
}

func TestGetHash(t *testing.T) {
	enc, err := encription.NewEnc("dock4")
	require.NoError(t, err)
	assert.Len(t, enc.GetHash([]byte("photo bytes")), 64)
}
