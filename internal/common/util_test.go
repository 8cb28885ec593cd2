package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(12)
	b := GenerateRandByteArray(12)

	assert.Len(t, a, 12)
	assert.Len(t, b, 12)
	assert.False(t, bytes.Equal(a, b), "two 12-byte draws collided")
	assert.Empty(t, GenerateRandByteArray(0))
}

func TestWipeByteArray(t *testing.T) {
	key := []byte("0123456789abcdef")
	WipeByteArray(key)
	assert.Equal(t, make([]byte, 16), key)

	assert.NotPanics(t, func() { WipeByteArray(nil) })
}
