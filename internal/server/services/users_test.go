package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/auth"
	"github.com/dmitrijs2005/ticketkeeper/internal/vault"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "jwt-secret"

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New("encryption-secret")
	require.NoError(t, err)
	return v
}

func newUserService(t *testing.T, rm *fakeRepoManager, v KeyVault, verifier *fakeVerifier) *UserService {
	t.Helper()
	return NewUserService(nil, rm, v, verifier, testJWTSecret, time.Hour, logging.Nop())
}

func register(t *testing.T, s *UserService, email string, distributor bool) string {
	t.Helper()
	u, err := s.Register(context.Background(), RegisterInput{
		Email: email, Password: "correct horse", Name: "N", Phone: "+15550001", IsDistributor: distributor,
	})
	require.NoError(t, err)
	return u.ID
}

func TestRegister_CreatesWalletWithMatchingKey(t *testing.T) {
	rm := newFakeRepoManager()
	v := newVault(t)
	s := newUserService(t, rm, v, &fakeVerifier{})

	u, err := s.Register(context.Background(), RegisterInput{
		Email: "  Alice@Example.com ", Password: "correct horse", Name: "Alice", Phone: "+15550001",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, ethcommon.IsHexAddress(u.WalletAddress))
	assert.NoError(t, bcrypt.CompareHashAndPassword(u.PasswordHash, []byte("correct horse")))

	key, err := v.DecryptKey(u.EncryptedKey)
	require.NoError(t, err)
	assert.Equal(t, u.WalletAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func TestRegister_Validation(t *testing.T) {
	s := newUserService(t, newFakeRepoManager(), newVault(t), &fakeVerifier{})

	_, err := s.Register(context.Background(), RegisterInput{Email: "nope", Password: "long enough"})
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)

	_, err = s.Register(context.Background(), RegisterInput{Email: "a@b.co", Password: "short"})
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newUserService(t, newFakeRepoManager(), newVault(t), &fakeVerifier{})
	register(t, s, "dup@example.com", false)

	_, err := s.Register(context.Background(), RegisterInput{Email: "dup@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

// swappingVault decrypts every blob to a different key.
type swappingVault struct{ *vault.Vault }

func (s swappingVault) DecryptKey(string) (*ecdsa.PrivateKey, error) { return crypto.GenerateKey() }

func TestRegister_RejectsBlobForAnotherWallet(t *testing.T) {
	rm := newFakeRepoManager()
	s := newUserService(t, rm, swappingVault{newVault(t)}, &fakeVerifier{})

	_, err := s.Register(context.Background(), RegisterInput{Email: "a@b.co", Password: "correct horse"})
	require.Error(t, err)
	assert.Empty(t, rm.u.byID, "nothing persisted")
}

func TestLogin(t *testing.T) {
	s := newUserService(t, newFakeRepoManager(), newVault(t), &fakeVerifier{})
	id := register(t, s, "bob@example.com", false)

	token, u, err := s.Login(context.Background(), "BOB@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	gotID, err := auth.GetUserIDFromToken(token, []byte(testJWTSecret))
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	_, _, err = s.Login(context.Background(), "bob@example.com", "wrong password")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, _, err = s.Login(context.Background(), "ghost@example.com", "correct horse")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin_RepositoryFailure(t *testing.T) {
	rm := newFakeRepoManager()
	s := newUserService(t, rm, newVault(t), &fakeVerifier{})
	rm.u.err = errors.New("db down")

	_, _, err := s.Login(context.Background(), "bob@example.com", "correct horse")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorUnauthorized)
}

func TestPhoneVerification(t *testing.T) {
	rm := newFakeRepoManager()
	verifier := &fakeVerifier{code: "123456"}
	s := newUserService(t, rm, newVault(t), verifier)
	id := register(t, s, "carol@example.com", false)
	ctx := context.Background()

	require.NoError(t, s.SendVerificationCode(ctx, id))
	assert.Equal(t, "+15550001", verifier.sentTo)

	err := s.VerifyPhone(ctx, id, "000000")
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)
	assert.False(t, rm.u.byID[id].PhoneVerified)

	require.NoError(t, s.VerifyPhone(ctx, id, "123456"))
	assert.True(t, rm.u.byID[id].PhoneVerified)
}

func TestSendVerificationCode_NoPhone(t *testing.T) {
	rm := newFakeRepoManager()
	s := newUserService(t, rm, newVault(t), &fakeVerifier{})
	u, err := s.Register(context.Background(), RegisterInput{Email: "d@example.com", Password: "correct horse"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.SendVerificationCode(context.Background(), u.ID), common.ErrorInvalidArgument)
	assert.ErrorIs(t, s.SendVerificationCode(context.Background(), "ghost"), common.ErrorNotFound)
}
