package auth_test

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auth "github.com/goliatone/go-arena-auth"
)

// MockCredentialStore implements auth.CredentialStore for testing
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FindByToken(ctx context.Context, token string) (*auth.TokenRecord, error) {
	args := m.Called(ctx, token)
	rec, _ := args.Get(0).(*auth.TokenRecord)
	return rec, args.Error(1)
}

func (m *MockCredentialStore) Insert(ctx context.Context, record *auth.TokenRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockCredentialStore) DeleteByToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockCredentialStore) DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOptions() auth.Options {
	return auth.Options{
		AccessTokenSecret:  "access-secret",
		SessionTokenSecret: "session-secret",
		ResetTokenSecret:   "reset-secret",
		Issuer:             "arena-test",
	}
}

type fixture struct {
	clock   *fakeClock
	store   *auth.MemoryCredentialStore
	players *auth.MemoryPlayerStore
	tokens  *auth.TokenService
	player  *auth.Player
}

func newFixture(opts ...auth.TokenServiceOption) *fixture {
	f := &fixture{
		clock:   newFakeClock(),
		store:   auth.NewMemoryCredentialStore(),
		players: auth.NewMemoryPlayerStore(),
	}

	player, err := f.players.Create(context.Background(), &auth.Player{
		Nickname:     "ada",
		Username:     "ada_lovelace",
		PasswordHash: "not-a-hash",
	})
	if err != nil {
		panic(err)
	}
	f.player = player

	base := []auth.TokenServiceOption{
		auth.WithClock(f.clock.Now),
		auth.WithTokenLogger(auth.NopLogger()),
	}
	f.tokens = auth.NewTokenService(testOptions(), f.store, f.players, append(base, opts...)...)
	return f
}

func (f *fixture) playerID() string {
	return f.player.ID.String()
}

func richMetadata(err error) map[string]any {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return nil
	}
	return richErr.Metadata
}
