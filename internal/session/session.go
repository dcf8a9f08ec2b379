package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/tickerlens/tickerlens/internal/auth/secret"
	"github.com/tickerlens/tickerlens/internal/model"
	"github.com/tickerlens/tickerlens/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoActiveSession    = errors.New("no active session")
)

const userKey = "user"

const minPasswordLen = 6

// Policy decides whether a freshly created session requires MFA.
type Policy func(email string) bool

// DefaultPolicy enrolls any address containing "mfa". A stand-in until a
// real directory drives enrollment; never an access-control decision.
var DefaultPolicy Policy = func(email string) bool {
	return strings.Contains(email, "mfa")
}

// Snapshot is a point-in-time view of the session. MFARequired and
// MFAVerified are derived from the user record, never stored on their own.
type Snapshot struct {
	User        *model.User
	MFARequired bool
	MFAVerified bool
}

func (s Snapshot) LoggedIn() bool {
	return s.User != nil
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Service owns the session record and its derived MFA flags. All mutations
// go through the service; the record is mirrored into the store on every
// change and removed on logout.
type Service struct {
	logger *slog.Logger
	store  Store
	policy Policy

	mu          sync.Mutex
	user        *model.User
	mfaRequired bool
	mfaVerified bool
	ready       bool
}

func NewService(logger *slog.Logger, store Store, policy Policy) *Service {
	if policy == nil {
		policy = DefaultPolicy
	}

	return &Service{
		logger: logger,
		store:  store,
		policy: policy,
	}
}

// Restore loads the persisted session record, if any. A record that fails to
// parse is discarded along with its stored key and the session comes up
// logged out. Readiness is signalled once Restore completes; a failed store
// read leaves the service not ready so the load can be retried.
func (s *Service) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	raw, err := s.store.Get(ctx, userKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.reset()
		s.ready = true
		return nil
	}
	if err != nil {
		return err
	}

	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		s.logger.Warn("discarding corrupt session record", slog.Any("error", err))
		s.reset()
		s.ready = true
		return s.store.Delete(ctx, userKey)
	}

	s.user = &u
	s.recompute()
	s.ready = true

	s.logger.Debug("session restored", slog.String("email", u.Email))

	return nil
}

// Ready reports whether Restore has completed.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ready
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

// Login starts a new session, replacing any existing one. The email must be
// non-empty and the password at least six characters; anything else fails
// with ErrInvalidCredentials and leaves the current session untouched.
// MFA enrollment is decided by the service's policy.
func (s *Service) Login(ctx context.Context, email, password string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("login", slog.String("email", email))

	if email == "" || len(password) < minPasswordLen {
		return Snapshot{}, ErrInvalidCredentials
	}

	hashedPassword, err := secret.Hash(password)
	if err != nil {
		return Snapshot{}, err
	}

	u := model.User{
		Email:        email,
		PasswordHash: hashedPassword,
		MFAEnabled:   s.policy(email),
		MFAVerified:  false,
	}

	if err := s.persist(ctx, u); err != nil {
		return Snapshot{}, err
	}

	s.user = &u
	s.recompute()

	return s.snapshot(), nil
}

// Logout clears the session and removes the persisted record. Safe to call
// when already logged out.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()

	return s.store.Delete(ctx, userKey)
}

// EnableMFA turns on MFA for the current session and resets verification.
// Idempotent while a session is active.
func (s *Service) EnableMFA(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ErrNoActiveSession
	}

	u := *s.user
	u.MFAEnabled = true
	u.MFAVerified = false

	if err := s.persist(ctx, u); err != nil {
		return err
	}

	s.user = &u
	s.recompute()

	return nil
}

// DisableMFA turns off MFA for the current session.
func (s *Service) DisableMFA(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ErrNoActiveSession
	}

	u := *s.user
	u.MFAEnabled = false
	u.MFAVerified = false

	if err := s.persist(ctx, u); err != nil {
		return err
	}

	s.user = &u
	s.recompute()

	return nil
}

// VerifyMFA checks the submitted code and, on success, marks the session
// verified. A code is accepted when it is exactly six ASCII digits; a
// rejected code leaves the session unchanged and returns false without an
// error. Replace the acceptance rule with real code validation before
// trusting it for anything.
func (s *Service) VerifyMFA(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return false, ErrNoActiveSession
	}

	if !validCode(code) {
		return false, nil
	}

	u := *s.user
	u.MFAVerified = true

	if err := s.persist(ctx, u); err != nil {
		return false, err
	}

	s.user = &u
	s.recompute()

	return true, nil
}

func (s *Service) persist(ctx context.Context, u model.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}

	return s.store.Set(ctx, userKey, raw)
}

func (s *Service) reset() {
	s.user = nil
	s.mfaRequired = false
	s.mfaVerified = false
}

// recompute derives the session flags from the user record:
// no user or MFA disabled means nothing to verify, enabled MFA stays
// required and carries the record's verification state.
func (s *Service) recompute() {
	if s.user == nil {
		s.mfaRequired = false
		s.mfaVerified = false
		return
	}

	if !s.user.MFAEnabled {
		s.mfaRequired = false
		s.mfaVerified = true
		return
	}

	s.mfaRequired = true
	s.mfaVerified = s.user.MFAVerified
}

func (s *Service) snapshot() Snapshot {
	snap := Snapshot{
		MFARequired: s.mfaRequired,
		MFAVerified: s.mfaVerified,
	}

	if s.user != nil {
		u := *s.user
		snap.User = &u
	}

	return snap
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}

	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
