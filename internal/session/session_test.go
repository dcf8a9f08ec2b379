package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tickerlens/tickerlens/internal/storage"
)

type fakeStore struct {
	data map[string][]byte

	getErr error
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc := NewService(slog.New(slog.NewTextHandler(testWriter{t}, nil)), store, nil)
	require.NoError(t, svc.Restore(context.Background()))
	return svc
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestLogin_MFAEnrollmentFollowsPolicy(t *testing.T) {
	tests := []struct {
		name        string
		email       string
		mfaRequired bool
		mfaVerified bool
	}{
		{"plain email", "plain@test.com", false, true},
		{"mfa email", "user@mfa.test", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, newFakeStore())
			ctx := context.Background()

			snap, err := svc.Login(ctx, tt.email, "password1")
			require.NoError(t, err)

			require.NotNil(t, snap.User)
			assert.Equal(t, tt.email, snap.User.Email)
			assert.Equal(t, tt.mfaRequired, snap.User.MFAEnabled)
			assert.Equal(t, tt.mfaRequired, snap.MFARequired)
			assert.Equal(t, tt.mfaVerified, snap.MFAVerified)
			assert.False(t, snap.User.MFAVerified)
		})
	}
}

func TestLogin_HashesPassword(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	snap, err := svc.Login(ctx, "a@test.com", "secret1")
	require.NoError(t, err)

	require.NotEqual(t, "secret1", snap.User.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(snap.User.PasswordHash), []byte("secret1")))
}

func TestLogin_InvalidCredentialsLeaveSessionUntouched(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	_, err := svc.Login(ctx, "first@test.com", "password1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "password1"},
		{"short password", "second@test.com", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, ErrInvalidCredentials)

			snap := svc.Snapshot()
			require.NotNil(t, snap.User)
			assert.Equal(t, "first@test.com", snap.User.Email)
		})
	}
}

func TestLogin_OverwritesPriorSession(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	_, err := svc.Login(ctx, "first@test.com", "password1")
	require.NoError(t, err)

	snap, err := svc.Login(ctx, "second@mfa.test", "password2")
	require.NoError(t, err)

	assert.Equal(t, "second@mfa.test", snap.User.Email)
	assert.True(t, snap.MFARequired)
}

func TestLogout_ClearsStateAndStore(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@test.com", "password1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx))

	snap := svc.Snapshot()
	assert.Nil(t, snap.User)
	assert.False(t, snap.MFARequired)
	assert.False(t, snap.MFAVerified)

	_, err = store.Get(ctx, userKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLogout_WithoutSession(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	require.NoError(t, svc.Logout(context.Background()))
}

func TestEnableMFA_Idempotent(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	_, err := svc.Login(ctx, "plain@test.com", "password1")
	require.NoError(t, err)

	require.NoError(t, svc.EnableMFA(ctx))
	once := svc.Snapshot()

	require.NoError(t, svc.EnableMFA(ctx))
	twice := svc.Snapshot()

	assert.Equal(t, once, twice)
	assert.True(t, twice.MFARequired)
	assert.False(t, twice.MFAVerified)
	assert.True(t, twice.User.MFAEnabled)
}

func TestDisableMFA(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	_, err := svc.Login(ctx, "user@mfa.test", "password1")
	require.NoError(t, err)

	require.NoError(t, svc.DisableMFA(ctx))

	snap := svc.Snapshot()
	assert.False(t, snap.User.MFAEnabled)
	assert.False(t, snap.MFARequired)
	assert.False(t, snap.User.MFAVerified)
}

func TestMFAOps_NoActiveSession(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	assert.ErrorIs(t, svc.EnableMFA(ctx), ErrNoActiveSession)
	assert.ErrorIs(t, svc.DisableMFA(ctx), ErrNoActiveSession)

	_, err := svc.VerifyMFA(ctx, "123456")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestVerifyMFA_CodeValidation(t *testing.T) {
	tests := []struct {
		name string
		code string
		ok   bool
	}{
		{"six digits", "000000", true},
		{"five digits", "12345", false},
		{"seven digits", "1234567", false},
		{"letters", "12a456", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, newFakeStore())
			ctx := context.Background()

			_, err := svc.Login(ctx, "user@mfa.test", "password1")
			require.NoError(t, err)

			ok, err := svc.VerifyMFA(ctx, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)

			snap := svc.Snapshot()
			assert.Equal(t, tt.ok, snap.MFAVerified)
			assert.True(t, snap.MFARequired)
		})
	}
}

func TestVerifyMFA_PersistFailureLeavesSessionUnverified(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Login(ctx, "user@mfa.test", "password1")
	require.NoError(t, err)

	store.setErr = errors.New("disk full")

	ok, err := svc.VerifyMFA(ctx, "000000")
	require.Error(t, err)
	assert.False(t, ok)

	snap := svc.Snapshot()
	assert.False(t, snap.MFAVerified)
	assert.False(t, snap.User.MFAVerified)
}

func TestEnableMFA_PersistFailureLeavesSessionUnchanged(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Login(ctx, "plain@test.com", "password1")
	require.NoError(t, err)
	before := svc.Snapshot()

	store.setErr = errors.New("disk full")

	require.Error(t, svc.EnableMFA(ctx))
	assert.Equal(t, before, svc.Snapshot())
}

func TestDisableMFA_PersistFailureLeavesSessionUnchanged(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Login(ctx, "user@mfa.test", "password1")
	require.NoError(t, err)
	before := svc.Snapshot()

	store.setErr = errors.New("disk full")

	require.Error(t, svc.DisableMFA(ctx))
	assert.Equal(t, before, svc.Snapshot())
}

func TestScenario_MFALoginThenVerify(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	snap, err := svc.Login(ctx, "user@mfa.test", "password1")
	require.NoError(t, err)
	assert.True(t, snap.MFARequired)
	assert.False(t, snap.MFAVerified)

	ok, err := svc.VerifyMFA(ctx, "000000")
	require.NoError(t, err)
	assert.True(t, ok)

	snap = svc.Snapshot()
	assert.True(t, snap.MFAVerified)
	assert.True(t, snap.User.MFAVerified)
}

func TestScenario_PlainLoginNeedsNoVerification(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	snap, err := svc.Login(context.Background(), "plain@test.com", "password1")
	require.NoError(t, err)
	assert.False(t, snap.MFARequired)
	assert.True(t, snap.MFAVerified)
}

func TestRestore_RoundTrip(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	first := newTestService(t, store)
	snap, err := first.Login(ctx, "a@mfa.com", "secret1")
	require.NoError(t, err)

	// simulated restart: a fresh service over the same store
	second := newTestService(t, store)

	restored := second.Snapshot()
	require.NotNil(t, restored.User)
	assert.Equal(t, *snap.User, *restored.User)
	assert.True(t, restored.MFARequired)
	assert.False(t, restored.MFAVerified)
}

func TestRestore_CorruptRecordResetsSession(t *testing.T) {
	store := newFakeStore()
	store.data[userKey] = []byte("{definitely not json")

	svc := newTestService(t, store)

	snap := svc.Snapshot()
	assert.Nil(t, snap.User)
	assert.False(t, snap.MFARequired)
	assert.False(t, snap.MFAVerified)

	_, err := store.Get(context.Background(), userKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRestore_StoreFailureLeavesNotReady(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("database locked")
	svc := NewService(slog.New(slog.NewTextHandler(testWriter{t}, nil)), store, nil)
	ctx := context.Background()

	require.Error(t, svc.Restore(ctx))
	assert.False(t, svc.Ready())

	// the read works on retry, so the record must still load
	store.getErr = nil
	store.data[userKey] = []byte(`{"email":"a@mfa.com","mfaEnabled":true}`)

	require.NoError(t, svc.Restore(ctx))
	assert.True(t, svc.Ready())
	require.NotNil(t, svc.Snapshot().User)
	assert.Equal(t, "a@mfa.com", svc.Snapshot().User.Email)
}

func TestRestore_SignalsReadinessOnce(t *testing.T) {
	store := newFakeStore()
	svc := NewService(slog.New(slog.NewTextHandler(testWriter{t}, nil)), store, nil)
	ctx := context.Background()

	assert.False(t, svc.Ready())

	require.NoError(t, svc.Restore(ctx))
	assert.True(t, svc.Ready())

	// a record appearing later must not be picked up by a repeat call
	_, err := svc.Login(ctx, "a@test.com", "password1")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))
	store.data[userKey] = []byte(`{"email":"sneaky@test.com"}`)

	require.NoError(t, svc.Restore(ctx))
	assert.Nil(t, svc.Snapshot().User)
}
