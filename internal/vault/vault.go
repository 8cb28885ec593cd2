// Package vault encrypts user signing keys at rest.
//
// Blobs have the form hex(iv) + ":" + hex(ciphertext), where the cipher is
// AES-256-GCM keyed by SHA-256 of a process-wide secret and iv is a fresh
// 12-byte nonce per encryption. GCM authenticates the whole blob, so a
// tampered IV or ciphertext fails to decrypt instead of yielding different
// plaintext.
//
// There is no key rotation: changing the secret makes every stored blob
// undecryptable.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// IVSize is the GCM nonce length in bytes.
	IVSize = 12

	delimiter = ":"
)

// Vault holds the derived AES key. It is safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New derives the encryption key from secret.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault: empty encryption secret")
	}

	key := sha256.Sum256([]byte(secret))
	defer common.WipeByteArray(key[:])

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a random IV.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	iv := common.GenerateRandByteArray(IVSize)
	ciphertext := v.aead.Seal(nil, iv, plaintext, nil)
	return hex.EncodeToString(iv) + delimiter + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a blob produced by Encrypt.
//
// A blob without the delimiter, with non-hex segments or with an IV of the
// wrong length yields common.ErrInvalidCiphertextFormat. A blob that fails
// authentication yields common.ErrDecryptionFailure.
func (v *Vault) Decrypt(blob string) ([]byte, error) {
	ivHex, ctHex, ok := strings.Cut(blob, delimiter)
	if !ok {
		return nil, fmt.Errorf("%w: missing iv delimiter", common.ErrInvalidCiphertextFormat)
	}
	if len(ivHex) != IVSize*2 {
		return nil, fmt.Errorf("%w: iv is %d hex chars, expected %d", common.ErrInvalidCiphertextFormat, len(ivHex), IVSize*2)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("%w: iv is not hex", common.ErrInvalidCiphertextFormat)
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not hex", common.ErrInvalidCiphertextFormat)
	}
	if len(ciphertext) < v.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrInvalidCiphertextFormat)
	}

	plaintext, err := v.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryptionFailure
	}
	return plaintext, nil
}

// EncryptKey stores a ledger signing key as its hex encoding.
func (v *Vault) EncryptKey(key *ecdsa.PrivateKey) (string, error) {
	raw := crypto.FromECDSA(key)
	defer common.WipeByteArray(raw)

	encoded := []byte(hex.EncodeToString(raw))
	defer common.WipeByteArray(encoded)

	return v.Encrypt(encoded)
}

// DecryptKey opens a blob produced by EncryptKey. The caller owns the key
// and should release it with WipeKey once the request is done.
func (v *Vault) DecryptKey(blob string) (*ecdsa.PrivateKey, error) {
	plaintext, err := v.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	s := strings.TrimPrefix(string(plaintext), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("%w: plaintext is not a signing key", common.ErrDecryptionFailure)
	}
	return key, nil
}

// WipeKey zeroes the private scalar of key. Nil is a no-op.
func WipeKey(key *ecdsa.PrivateKey) {
	if key == nil || key.D == nil {
		return
	}
	words := key.D.Bits()
	for i := range words {
		words[i] = 0
	}
	key.D.SetInt64(0)
}
