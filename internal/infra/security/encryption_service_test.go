//go:build !integration

package security

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionService(t *testing.T) {
	t.Run("should round-trip a contact", func(t *testing.T) {
		svc, err := NewEncryptionService("0123456789abcdef")
		require.NoError(t, err)

		ct, err := svc.Encrypt("+7 999 000-11-22")
		require.NoError(t, err)
		assert.NotContains(t, ct, "999")

		pt, err := svc.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, "+7 999 000-11-22", pt)
	})

	t.Run("should use a fresh nonce per message", func(t *testing.T) {
		svc, _ := NewEncryptionService("0123456789abcdef")
		a, _ := svc.Encrypt("same")
		b, _ := svc.Encrypt("same")
		assert.NotEqual(t, a, b)
	})

	t.Run("should accept a base64 encoded key", func(t *testing.T) {
		key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
		_, err := NewEncryptionService(key)
		assert.NoError(t, err)
	})

	t.Run("should reject bad key lengths", func(t *testing.T) {
		_, err := NewEncryptionService("short")
		assert.Error(t, err)
	})

	t.Run("should fail on tampered or foreign ciphertext", func(t *testing.T) {
		svc, _ := NewEncryptionService("0123456789abcdef")
		other, _ := NewEncryptionService("fedcba9876543210")
		ct, _ := svc.Encrypt("secret")

		_, err := other.Decrypt(ct)
		assert.Error(t, err)

		_, err = svc.Decrypt(base64.StdEncoding.EncodeToString([]byte("x")))
		assert.ErrorIs(t, err, ErrCiphertextTooShort)

		_, err = svc.Decrypt("%%%")
		assert.Error(t, err)
	})
}
