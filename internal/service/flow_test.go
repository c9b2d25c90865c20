package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "github.com/dtroode/identity-server/internal/cache/redis"
	"github.com/dtroode/identity-server/internal/apierrors"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/password"
	"github.com/dtroode/identity-server/internal/repository/sqlite"
	nooplog "github.com/dtroode/identity-server/internal/testutil"
	"github.com/dtroode/identity-server/internal/token"
	"github.com/dtroode/identity-server/internal/validation"
)

type flowEnv struct {
	identity *Identity
	tokens   *TokenService
	redis    *miniredis.Miniredis
	clock    *time.Time
}

func (e *flowEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

// newFlowEnv wires the engine to a temp-file SQLite store, an in-memory Redis
// and real argon2/JWT implementations.
func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.NewConnection(ctx, filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hasher, err := password.NewArgon2(password.Params{Time: 1, Memory: 8192, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	clock := time.Now().UTC()
	now := func() time.Time { return clock }

	log := nooplog.MakeNoopLogger()
	tokens := NewTokenService(token.NewJWT("flow-secret"), sqlite.NewRefreshTokenRepository(conn), log, 0)
	tokens.now = now

	identity := NewIdentity(sqlite.NewUserRepository(conn), tokens, rediscache.NewCache(client), hasher, log, metrics.New(), 0)
	identity.now = now

	return &flowEnv{identity: identity, tokens: tokens, redis: mr, clock: &clock}
}

func TestFlow_AliceScenario(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	registered, err := env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, registered.AccessToken)
	assert.Len(t, registered.RefreshToken, 80)
	assert.True(t, env.redis.Exists(rediscache.UserKey(registered.UserID)))
	assert.True(t, env.redis.Exists(rediscache.EmailKey("alice@x.com")))

	loggedIn, err := env.identity.Login(ctx, validation.LoginInput{Email: "Alice@X.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, loggedIn.UserID)

	userID, err := env.tokens.GetUserID(ctx, loggedIn.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, userID)

	refreshed, err := env.identity.Refresh(ctx, loggedIn.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, refreshed.UserID)
	assert.NotEqual(t, loggedIn.RefreshToken, refreshed.RefreshToken)

	require.NoError(t, env.identity.Logout(ctx, refreshed.RefreshToken))
	assert.True(t, env.redis.Exists(rediscache.BlacklistKey(refreshed.RefreshToken)))

	_, err = env.identity.Refresh(ctx, refreshed.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindRevoked, apierrors.KindOf(err))

	// The registration session is independent of the login session.
	_, err = env.identity.Refresh(ctx, registered.RefreshToken)
	require.NoError(t, err)
}

func TestFlow_WrongPassword(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	_, err := env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.identity.Login(ctx, validation.LoginInput{Email: "alice@x.com", Password: "secret2"})
	assert.Equal(t, apierrors.KindAuthentication, apierrors.KindOf(err))

	_, err = env.identity.Login(ctx, validation.LoginInput{Email: "bob@x.com", Password: "secret1"})
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))
}

func TestFlow_DuplicateRegistration(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	_, err := env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "other@x.com", Password: "secret1"})
	assert.Equal(t, apierrors.KindConflict, apierrors.KindOf(err))

	_, err = env.identity.Register(ctx, validation.RegisterInput{Username: "alice2", Email: "ALICE@x.com", Password: "secret1"})
	assert.Equal(t, apierrors.KindConflict, apierrors.KindOf(err))
}

func TestFlow_LoginSurvivesCacheLoss(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	registered, err := env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	env.redis.FlushAll()

	loggedIn, err := env.identity.Login(ctx, validation.LoginInput{Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, loggedIn.UserID)
	assert.True(t, env.redis.Exists(rediscache.EmailKey("alice@x.com")))

	env.redis.Close()

	loggedIn, err = env.identity.Login(ctx, validation.LoginInput{Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, loggedIn.UserID)
}

func TestFlow_RefreshTwice(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	session, err := env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.identity.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)

	_, err = env.identity.Refresh(ctx, session.RefreshToken)
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))
}

func TestFlow_ExpiredRefreshDeletesRow(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	session, err := env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	env.advance(DefaultRefreshTTL + time.Minute)

	_, err = env.identity.Refresh(ctx, session.RefreshToken)
	assert.Equal(t, apierrors.KindExpired, apierrors.KindOf(err))

	_, err = env.identity.Refresh(ctx, session.RefreshToken)
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))
}

func TestFlow_LogoutTwice(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	session, err := env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, env.identity.Logout(ctx, session.RefreshToken))
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(env.identity.Logout(ctx, session.RefreshToken)))

	ttl := env.redis.TTL(rediscache.BlacklistKey(session.RefreshToken))
	assert.LessOrEqual(t, ttl, DefaultRefreshTTL)
	assert.Greater(t, ttl, DefaultRefreshTTL-time.Minute)
}

func TestFlow_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	first, err := env.identity.Register(ctx, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	env.advance(DefaultRefreshTTL / 2)
	second, err := env.identity.Login(ctx, validation.LoginInput{Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	env.advance(DefaultRefreshTTL/2 + time.Minute)
	n, err := env.tokens.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = env.identity.Refresh(ctx, first.RefreshToken)
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))

	_, err = env.identity.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}
