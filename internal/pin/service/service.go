package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/moneywright/moneywright/internal/audit"
	auditdomain "github.com/moneywright/moneywright/internal/audit/domain"
	"github.com/moneywright/moneywright/internal/pin"
	"github.com/moneywright/moneywright/internal/pin/domain"
	"github.com/moneywright/moneywright/internal/pin/repository"
	"github.com/moneywright/moneywright/internal/security"
)

// Sentinel errors for PIN auth; handlers map them to HTTP codes.
var (
	// ErrNotConfigured means no PIN credential exists yet.
	ErrNotConfigured = errors.New("pin not configured")
	// ErrAlreadyConfigured means Setup was called but a credential exists.
	// There is no unauthenticated way to replace it; use recovery.
	ErrAlreadyConfigured = errors.New("pin already configured")
	// ErrPinFormat means the submitted PIN is not exactly 6 ASCII digits.
	ErrPinFormat = errors.New("pin must be exactly 6 digits")
)

// LockedError is returned while a lockout is active, regardless of whether
// the submitted PIN was correct. RetryAfter is in seconds.
type LockedError struct {
	RetryAfter int64
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("pin locked, retry in %ds", e.RetryAfter)
}

// InvalidPinError is returned when a PIN or backup code does not match.
// AttemptsRemaining is how many tries are left before the next lockout.
type InvalidPinError struct {
	AttemptsRemaining int
}

func (e *InvalidPinError) Error() string {
	return fmt.Sprintf("pin invalid, %d attempts remaining", e.AttemptsRemaining)
}

const (
	defaultMaxAttempts = 5
	defaultLockoutBase = time.Minute
	// maxLockout caps the exponential backoff.
	maxLockout = time.Hour
)

// StatusInfo is the unauthenticated view of the PIN credential state.
type StatusInfo struct {
	Configured bool
	Locked     bool
	RetryAfter int64
}

// Service implements local PIN authentication: setup, verification with
// lockout, and backup-code recovery. Hashing is bcrypt; brute force is
// contained by the failure counter and exponential lockout, all updated
// through single-statement writes so concurrent attempts cannot bypass it.
type Service struct {
	repo        repository.Repository
	hasher      *security.Hasher
	audit       audit.Recorder
	maxAttempts int
	lockoutBase time.Duration

	configured atomic.Bool
	now        func() time.Time
}

// NewService returns a PIN service. maxAttempts and lockoutBase fall back to
// 5 and 1m when zero. Call Prime before serving so Configured reflects the
// database.
func NewService(repo repository.Repository, hasher *security.Hasher, auditLog audit.Recorder, maxAttempts int, lockoutBase time.Duration) *Service {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if lockoutBase <= 0 {
		lockoutBase = defaultLockoutBase
	}
	return &Service{
		repo:        repo,
		hasher:      hasher,
		audit:       auditLog,
		maxAttempts: maxAttempts,
		lockoutBase: lockoutBase,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Prime loads the credential once so Configured answers without a query.
func (s *Service) Prime(ctx context.Context) error {
	cred, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	s.configured.Store(cred != nil)
	return nil
}

// Configured reports whether a PIN credential exists. Safe for concurrent
// use; the middleware consults this on every unauthenticated request in
// local mode.
func (s *Service) Configured() bool {
	return s.configured.Load()
}

// Status reports whether a PIN is set up and whether it is locked out.
func (s *Service) Status(ctx context.Context) (*StatusInfo, error) {
	cred, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return &StatusInfo{}, nil
	}
	info := &StatusInfo{Configured: true}
	if now := s.now(); cred.Locked(now) {
		info.Locked = true
		info.RetryAfter = retryAfter(*cred.LockedUntil, now)
	}
	return info, nil
}

// Setup creates the PIN credential and returns the backup code. The code is
// displayed exactly once; only hashes are stored.
func (s *Service) Setup(ctx context.Context, pinValue string) (string, error) {
	if !pin.Valid(pinValue) {
		return "", ErrPinFormat
	}
	existing, err := s.repo.Get(ctx)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrAlreadyConfigured
	}

	code, err := pin.GenerateBackupCode()
	if err != nil {
		return "", err
	}
	pinHash, err := s.hasher.Hash([]byte(pinValue))
	if err != nil {
		return "", err
	}
	codeHash, err := s.hasher.Hash([]byte(pin.NormalizeBackupCode(code)))
	if err != nil {
		return "", err
	}

	now := s.now()
	cred := &domain.Credential{
		ID:             1,
		PinHash:        pinHash,
		BackupCodeHash: codeHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		// A concurrent Setup may have won the insert.
		if again, getErr := s.repo.Get(ctx); getErr == nil && again != nil {
			return "", ErrAlreadyConfigured
		}
		return "", err
	}
	s.configured.Store(true)
	s.audit.Record(ctx, "", auditdomain.ActionPinSetup, "", "", "")
	return code, nil
}

// Verify checks the PIN. An active lockout rejects before the hash is even
// compared, so the lockout window cannot be used as a correctness oracle.
func (s *Service) Verify(ctx context.Context, pinValue string) error {
	cred, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	if cred == nil {
		return ErrNotConfigured
	}
	now := s.now()
	if cred.Locked(now) {
		return &LockedError{RetryAfter: retryAfter(*cred.LockedUntil, now)}
	}

	if err := s.hasher.Compare(cred.PinHash, []byte(pinValue)); err != nil {
		return s.recordFailure(ctx, now)
	}
	return s.repo.ClearFailures(ctx, now)
}

// RecoverWithBackupCode verifies the backup code and, on match, replaces the
// PIN and issues a fresh code in one atomic swap. The old code is spent
// either way once recovery succeeds. Failed codes count toward the same
// lockout as failed PINs.
func (s *Service) RecoverWithBackupCode(ctx context.Context, code, newPin string) (string, error) {
	if !pin.Valid(newPin) {
		return "", ErrPinFormat
	}
	cred, err := s.repo.Get(ctx)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", ErrNotConfigured
	}
	now := s.now()
	if cred.Locked(now) {
		return "", &LockedError{RetryAfter: retryAfter(*cred.LockedUntil, now)}
	}

	if err := s.hasher.Compare(cred.BackupCodeHash, []byte(pin.NormalizeBackupCode(code))); err != nil {
		return "", s.recordFailure(ctx, now)
	}

	newCode, err := pin.GenerateBackupCode()
	if err != nil {
		return "", err
	}
	pinHash, err := s.hasher.Hash([]byte(newPin))
	if err != nil {
		return "", err
	}
	codeHash, err := s.hasher.Hash([]byte(pin.NormalizeBackupCode(newCode)))
	if err != nil {
		return "", err
	}
	if err := s.repo.ReplaceCredential(ctx, pinHash, codeHash, now); err != nil {
		return "", err
	}
	log.Printf("pin: credential recovered via backup code")
	s.audit.Record(ctx, "", auditdomain.ActionPinRecovered, "", "", "")
	return newCode, nil
}

// ChangePin re-proves the current PIN through the full Verify gate, then
// swaps the hash. A stolen session alone cannot rotate the credential.
func (s *Service) ChangePin(ctx context.Context, currentPin, newPin string) error {
	if !pin.Valid(newPin) {
		return ErrPinFormat
	}
	if err := s.Verify(ctx, currentPin); err != nil {
		return err
	}
	hash, err := s.hasher.Hash([]byte(newPin))
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePinHash(ctx, hash, s.now()); err != nil {
		return err
	}
	s.audit.Record(ctx, "", auditdomain.ActionPinChanged, "", "", "")
	return nil
}

// RegenerateBackupCode re-proves the PIN, then replaces the backup code and
// returns the new one. The previous code stops working immediately.
func (s *Service) RegenerateBackupCode(ctx context.Context, pinValue string) (string, error) {
	if err := s.Verify(ctx, pinValue); err != nil {
		return "", err
	}
	code, err := pin.GenerateBackupCode()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash([]byte(pin.NormalizeBackupCode(code)))
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateBackupCodeHash(ctx, hash, s.now()); err != nil {
		return "", err
	}
	s.audit.Record(ctx, "", auditdomain.ActionPinBackupRegenerated, "", "", "")
	return code, nil
}

// recordFailure counts a mismatch and arms the lockout when the attempt
// budget is spent. The attempt that trips the threshold still reports the
// mismatch; only subsequent attempts see LockedError.
func (s *Service) recordFailure(ctx context.Context, now time.Time) error {
	attempts, lockouts, err := s.repo.IncrementFailure(ctx, now)
	if err != nil {
		return err
	}
	remaining := s.maxAttempts - attempts
	if remaining > 0 {
		return &InvalidPinError{AttemptsRemaining: remaining}
	}

	backoff := s.backoff(lockouts)
	applied, err := s.repo.ApplyLockout(ctx, now.Add(backoff), now)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("pin: lockout armed for %s after %d failed attempts", backoff, attempts)
		s.audit.Record(ctx, "", auditdomain.ActionPinLockout, fmt.Sprintf("locked for %s", backoff), "", "")
	}
	return &InvalidPinError{AttemptsRemaining: 0}
}

// backoff doubles per lockout, capped at an hour.
func (s *Service) backoff(lockouts int) time.Duration {
	if lockouts > 20 {
		return maxLockout
	}
	d := s.lockoutBase << uint(lockouts)
	if d <= 0 || d > maxLockout {
		return maxLockout
	}
	return d
}

func retryAfter(until, now time.Time) int64 {
	d := until.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
