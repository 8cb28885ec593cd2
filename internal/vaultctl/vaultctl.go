// Package vaultctl implements the operator commands for managing vault
// blobs of signing keys.
package vaultctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/vault"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"
)

const usage = `usage: vaultctl <command>

commands:
  generate                 create a new signing key, print its address and blob
  encrypt                  read a hex private key from the terminal, print its blob
  decrypt-address <blob>   print the address a blob decrypts to
`

// readSecret is a test seam for term.ReadPassword.
var readSecret = term.ReadPassword

var ErrUsage = errors.New("invalid usage")

// Run executes one command. The vault secret comes from ENCRYPTION_SECRET.
func Run(args []string, getenv func(string) string, w io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(w, usage)
		return ErrUsage
	}
	switch args[0] {
	case "help", "-h", "--help":
		fmt.Fprint(w, usage)
		return nil
	}

	v, err := vault.New(getenv("ENCRYPTION_SECRET"))
	if err != nil {
		return fmt.Errorf("ENCRYPTION_SECRET: %w", err)
	}

	switch args[0] {
	case "generate":
		return generate(v, w)
	case "encrypt":
		return encrypt(v, w)
	case "decrypt-address":
		if len(args) != 2 {
			fmt.Fprint(w, usage)
			return ErrUsage
		}
		return decryptAddress(v, args[1], w)
	}

	fmt.Fprint(w, usage)
	return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
}

func generate(v *vault.Vault, w io.Writer) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	defer vault.WipeKey(key)

	blob, err := v.EncryptKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "address: %s\nblob:    %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex(), blob)
	return nil
}

func encrypt(v *vault.Vault, w io.Writer) error {
	fmt.Fprint(w, "Enter private key (hex): ")
	raw, err := readSecret(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(raw)

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	if err != nil {
		return fmt.Errorf("%w: not a hex private key", common.ErrorInvalidArgument)
	}
	defer vault.WipeKey(key)

	blob, err := v.EncryptKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "address: %s\nblob:    %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex(), blob)
	return nil
}

func decryptAddress(v *vault.Vault, blob string, w io.Writer) error {
	key, err := v.DecryptKey(blob)
	if err != nil {
		return err
	}
	defer vault.WipeKey(key)

	fmt.Fprintln(w, crypto.PubkeyToAddress(key.PublicKey).Hex())
	return nil
}
