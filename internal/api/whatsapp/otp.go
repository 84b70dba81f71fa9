package whatsapp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpDigits      = 6
	maxOTPAttempts = 5
	defaultOTPTTL  = 5 * time.Minute
)

var (
	ErrOTPNotFound        = errors.New("no active verification code for this number")
	ErrOTPInvalid         = errors.New("verification code is incorrect")
	ErrOTPTooManyAttempts = errors.New("too many attempts, request a new code")
)

type otpEntry struct {
	hash     []byte
	attempts int
}

// OTPService issues single-use phone verification codes. Codes are stored bcrypt-hashed
// in a TTL cache; the mutex serialises attempt counting per process.
type OTPService struct {
	mu       sync.Mutex
	codes    *cache.Cache
	ttl      time.Duration
	sender   Sender
	logger   *slog.Logger
	generate func() (string, error)
}

func NewOTPService(sender Sender, ttl time.Duration, logger *slog.Logger) *OTPService {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	return &OTPService{
		codes:    cache.New(ttl, 2*ttl),
		ttl:      ttl,
		sender:   sender,
		logger:   logger,
		generate: randomCode,
	}
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// Send issues a new code, replacing any previous one for the number.
func (s *OTPService) Send(ctx context.Context, phone string) error {
	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing code: %w", err)
	}

	s.mu.Lock()
	s.codes.Set(phone, &otpEntry{hash: hash}, s.ttl)
	s.mu.Unlock()

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.sender.Send(ctx, phone, body); err != nil {
		s.mu.Lock()
		s.codes.Delete(phone)
		s.mu.Unlock()
		return fmt.Errorf("sending code: %w", err)
	}
	s.logger.InfoContext(ctx, "Verification code sent")
	return nil
}

// Verify consumes the code on success. Each attempt counts towards maxOTPAttempts and is
// reserved before the bcrypt compare, which runs outside the lock.
func (s *OTPService) Verify(phone, code string) error {
	s.mu.Lock()
	v, ok := s.codes.Get(phone)
	if !ok {
		s.mu.Unlock()
		return ErrOTPNotFound
	}
	entry := v.(*otpEntry)
	if entry.attempts >= maxOTPAttempts {
		s.codes.Delete(phone)
		s.mu.Unlock()
		return ErrOTPTooManyAttempts
	}
	entry.attempts++
	hash, attempt := entry.hash, entry.attempts
	s.mu.Unlock()

	match := bcrypt.CompareHashAndPassword(hash, []byte(code)) == nil

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.codes.Get(phone)
	if !ok || current.(*otpEntry) != entry {
		// Consumed by a concurrent success, expired, or replaced by a newer code.
		return ErrOTPNotFound
	}
	if match {
		s.codes.Delete(phone)
		return nil
	}
	if attempt >= maxOTPAttempts {
		s.codes.Delete(phone)
		return ErrOTPTooManyAttempts
	}
	return ErrOTPInvalid
}
