// Package sms verifies phone numbers with one-time codes.
package sms

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultMaxAttempts = 5
	codeDigits         = 6
)

// Verifier sends and checks verification codes for a phone number.
type Verifier interface {
	Send(ctx context.Context, phone string) (bool, error)
	Check(ctx context.Context, phone, code string) (bool, error)
}

// Sender delivers a text message.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithMaxAttempts(n int64) Option {
	return func(s *Service) { s.maxAttempts = n }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service keeps only a hash of the outstanding code for each phone.
type Service struct {
	store       CodeStore
	sender      Sender
	ttl         time.Duration
	maxAttempts int64
	log         logging.Logger
	generate    func() (string, error)
}

var _ Verifier = (*Service)(nil)

func NewService(store CodeStore, sender Sender, opts ...Option) *Service {
	s := &Service{
		store:       store,
		sender:      sender,
		ttl:         DefaultTTL,
		maxAttempts: DefaultMaxAttempts,
		log:         logging.Nop(),
		generate:    generateCode,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "sms")
	return s
}

// Send issues a fresh code, replacing any outstanding one.
func (s *Service) Send(ctx context.Context, phone string) (bool, error) {
	if phone == "" {
		return false, fmt.Errorf("%w: phone number is required", common.ErrorInvalidArgument)
	}

	code, err := s.generate()
	if err != nil {
		return false, fmt.Errorf("generate code: %w", err)
	}
	if err := s.store.Put(ctx, phone, hashCode(phone, code), s.ttl); err != nil {
		return false, fmt.Errorf("store code: %w", err)
	}

	msg := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.sender.Send(ctx, phone, msg); err != nil {
		_ = s.store.Delete(ctx, phone)
		return false, fmt.Errorf("deliver code: %w", err)
	}

	s.log.Info(ctx, "verification code sent", "phone", maskPhone(phone))
	return true, nil
}

// Check consumes the code on success. After maxAttempts wrong guesses the
// code is discarded and a new one must be requested.
func (s *Service) Check(ctx context.Context, phone, code string) (bool, error) {
	if phone == "" || code == "" {
		return false, fmt.Errorf("%w: phone and code are required", common.ErrorInvalidArgument)
	}

	stored, err := s.store.Get(ctx, phone)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load code: %w", err)
	}

	n, err := s.store.Attempt(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("count attempt: %w", err)
	}
	if n > s.maxAttempts {
		_ = s.store.Delete(ctx, phone)
		s.log.Warn(ctx, "too many verification attempts", "phone", maskPhone(phone))
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(hashCode(phone, code))) != 1 {
		return false, nil
	}

	if err := s.store.Delete(ctx, phone); err != nil {
		s.log.Warn(ctx, "drop used code", "error", err)
	}
	return true, nil
}

func hashCode(phone, code string) string {
	sum := sha256.Sum256([]byte(phone + ":" + code))
	return hex.EncodeToString(sum[:])
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return "****" + p[len(p)-4:]
}

// LogSender writes messages to the log instead of a carrier gateway.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(l logging.Logger) *LogSender {
	return &LogSender{log: l.With("module", "sms_sender")}
}

func (s *LogSender) Send(ctx context.Context, phone, message string) error {
	s.log.Info(ctx, "sms", "to", phone, "message", message)
	return nil
}
