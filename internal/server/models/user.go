// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. EncryptedKey is the vault blob of the
// account's signing key; the decrypted key is never stored.
type User struct {
	ID            string
	Email         string
	PasswordHash  []byte
	Name          string
	Phone         string
	WalletAddress string
	EncryptedKey  string
	IsDistributor bool
	PhoneVerified bool
	CreatedAt     time.Time
}
