package vaultctl

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/vault"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func env(secret string) func(string) string {
	return func(name string) string {
		if name == "ENCRYPTION_SECRET" {
			return secret
		}
		return ""
	}
}

func stubSecret(t *testing.T, value string, err error) {
	t.Helper()
	old := readSecret
	t.Cleanup(func() { readSecret = old })
	readSecret = func(int) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		return []byte(value), nil
	}
}

// parse returns the address and blob printed by generate and encrypt.
func parse(t *testing.T, out string) (string, string) {
	t.Helper()
	var address, blob string
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "address: "); ok {
			address = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "blob:"); ok {
			blob = strings.TrimSpace(v)
		}
	}
	require.NotEmpty(t, address)
	require.NotEmpty(t, blob)
	return address, blob
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	err := Run(nil, env("s"), &out)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out.String(), "usage: vaultctl")

	out.Reset()
	err = Run([]string{"frobnicate"}, env("s"), &out)
	assert.ErrorIs(t, err, ErrUsage)

	out.Reset()
	assert.NoError(t, Run([]string{"help"}, env(""), &out))
}

func TestRun_MissingSecret(t *testing.T) {
	var out bytes.Buffer
	err := Run([]string{"generate"}, env(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENCRYPTION_SECRET")
}

func TestGenerate_BlobDecryptsToAddress(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run([]string{"generate"}, env("op-secret"), &out))
	address, blob := parse(t, out.String())

	v, err := vault.New("op-secret")
	require.NoError(t, err)
	key, err := v.DecryptKey(blob)
	require.NoError(t, err)
	assert.Equal(t, address, crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func TestEncrypt(t *testing.T) {
	stubSecret(t, "0x"+testKeyHex+"\n", nil)

	var out bytes.Buffer
	require.NoError(t, Run([]string{"encrypt"}, env("op-secret"), &out))
	assert.NotContains(t, out.String(), testKeyHex)

	address, blob := parse(t, out.String())
	want, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(want.PublicKey).Hex(), address)

	out.Reset()
	require.NoError(t, Run([]string{"decrypt-address", blob}, env("op-secret"), &out))
	assert.Equal(t, address, strings.TrimSpace(out.String()))
	assert.NotContains(t, out.String(), testKeyHex)
}

func TestEncrypt_Errors(t *testing.T) {
	stubSecret(t, "not-hex", nil)
	var out bytes.Buffer
	err := Run([]string{"encrypt"}, env("op-secret"), &out)
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)

	stubSecret(t, "", errors.New("no tty"))
	err = Run([]string{"encrypt"}, env("op-secret"), &out)
	assert.EqualError(t, err, "no tty")
}

func TestDecryptAddress_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, Run([]string{"decrypt-address"}, env("s"), &out), ErrUsage)

	err := Run([]string{"decrypt-address", "zz:zz"}, env("s"), &out)
	assert.ErrorIs(t, err, common.ErrInvalidCiphertextFormat)
}
