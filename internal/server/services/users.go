// Package services contains server-side business logic. UserService handles
// registration with a custodial wallet, password login and phone
// verification.
package services

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/auth"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/sms"
	"github.com/dmitrijs2005/ticketkeeper/internal/vault"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// KeyVault encrypts and decrypts account signing keys.
type KeyVault interface {
	EncryptKey(key *ecdsa.PrivateKey) (string, error)
	DecryptKey(blob string) (*ecdsa.PrivateKey, error)
}

var _ KeyVault = (*vault.Vault)(nil)

type RegisterInput struct {
	Email         string
	Password      string
	Name          string
	Phone         string
	IsDistributor bool
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       KeyVault
	verifier    sms.Verifier
	jwtSecret   []byte
	tokenTTL    time.Duration
	log         logging.Logger

	generateKey func() (*ecdsa.PrivateKey, error)
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, v KeyVault, verifier sms.Verifier,
	jwtSecret string, tokenTTL time.Duration, log logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		vault:       v,
		verifier:    verifier,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		log:         log.With("module", "users"),
		generateKey: crypto.GenerateKey,
	}
}

// Register creates the account together with a fresh custodial wallet. The
// stored blob is decrypted once and checked against the wallet address
// before anything is persisted.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorInvalidArgument)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorInvalidArgument, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	address, blob, err := s.newWallet()
	if err != nil {
		return nil, err
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:         email,
		PasswordHash:  hash,
		Name:          strings.TrimSpace(in.Name),
		Phone:         strings.TrimSpace(in.Phone),
		WalletAddress: address,
		EncryptedKey:  blob,
		IsDistributor: in.IsDistributor,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("%w: email already registered", common.ErrorAlreadyExists)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID, "wallet", u.WalletAddress, "distributor", u.IsDistributor)
	return u, nil
}

func (s *UserService) newWallet() (string, string, error) {
	key, err := s.generateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate wallet: %w", err)
	}
	defer vault.WipeKey(key)
	address := crypto.PubkeyToAddress(key.PublicKey)

	blob, err := s.vault.EncryptKey(key)
	if err != nil {
		return "", "", fmt.Errorf("encrypt wallet key: %w", err)
	}

	check, err := s.vault.DecryptKey(blob)
	if err != nil {
		return "", "", fmt.Errorf("verify wallet key: %w", err)
	}
	defer vault.WipeKey(check)
	if crypto.PubkeyToAddress(check.PublicKey) != address {
		return "", "", fmt.Errorf("%w: encrypted key does not match wallet", common.ErrorInternal)
	}

	return address.Hex(), blob, nil
}

// Login returns an access token. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil, common.ErrorUnauthorized
		}
		return "", nil, fmt.Errorf("error loading user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return "", nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(u.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// SendVerificationCode texts a code to the phone on file.
func (s *UserService) SendVerificationCode(ctx context.Context, userID string) error {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.Phone == "" {
		return fmt.Errorf("%w: no phone number on file", common.ErrorInvalidArgument)
	}
	_, err = s.verifier.Send(ctx, u.Phone)
	return err
}

// VerifyPhone marks the phone verified when code matches.
func (s *UserService) VerifyPhone(ctx context.Context, userID, code string) error {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.verifier.Check(ctx, u.Phone, code)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: invalid or expired code", common.ErrorInvalidArgument)
	}

	return s.repomanager.Users(s.db).SetPhoneVerified(ctx, u.ID, true)
}
