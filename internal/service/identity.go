package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dtroode/identity-server/internal/apierrors"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/validation"
)

const (
	// DefaultCacheTTL is the lifetime of user snapshots and email index entries.
	DefaultCacheTTL = 24 * time.Hour

	maxBlacklistTTL = 7 * 24 * time.Hour
	minBlacklistTTL = time.Second

	dummyPassword = "identity-timing-equalizer"
)

// Cache key families used as metric labels.
const (
	cacheKeyEmail     = "email"
	cacheKeyUser      = "user"
	cacheKeyBlacklist = "blacklist"
)

// Identity implements register, login, refresh and logout on top of the
// credential stores, the token service and the session cache. The cache is
// advisory: its failures are logged and never fail an operation, and password
// checks always read the hash from the store.
type Identity struct {
	users    model.UserStore
	tokens   *TokenService
	cache    model.SessionCache
	hasher   model.PasswordHasher
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cacheTTL time.Duration
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewIdentity(
	users model.UserStore,
	tokens *TokenService,
	cache model.SessionCache,
	hasher model.PasswordHasher,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	cacheTTL time.Duration,
) *Identity {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Identity{
		users:    users,
		tokens:   tokens,
		cache:    cache,
		hasher:   hasher,
		logger:   logger,
		metrics:  metrics,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Register creates an account and opens its first session.
func (a *Identity) Register(ctx context.Context, input validation.RegisterInput) (session model.Session, err error) {
	defer func() { a.observe("register", err) }()

	input = input.Normalize()
	if fields := validation.Validate(input); fields != nil {
		a.logger.Info("Identity service: registration rejected", "fields", fields)
		return model.Session{}, apierrors.NewErrValidation(fields)
	}

	a.logger.Debug("Identity service: starting user registration",
		"email", input.Email,
		"username", input.Username)

	_, err = a.users.GetByEmailOrUsername(ctx, input.Email, input.Username)
	switch {
	case err == nil:
		a.logger.Info("Identity service: user already exists",
			"email", input.Email,
			"username", input.Username)
		return model.Session{}, apierrors.NewErrUserExists()
	case !errors.Is(err, model.ErrNotFound):
		a.logger.Error("Identity service: failed to check existing user",
			"email", input.Email,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}

	passwordHash, err := a.hasher.Hash(input.Password)
	if err != nil {
		a.logger.Error("Identity service: failed to hash password", "error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}

	now := a.now()
	user, err := a.users.Create(ctx, model.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			a.logger.Info("Identity service: user created concurrently",
				"email", input.Email,
				"username", input.Username)
			return model.Session{}, apierrors.NewErrUserExists()
		}
		a.logger.Error("Identity service: failed to create user",
			"email", input.Email,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}

	pair, err := a.tokens.Issue(ctx, user.ID, user.Username)
	if err != nil {
		a.logger.Error("Identity service: failed to issue tokens",
			"user_id", user.ID,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}

	a.cacheUser(ctx, model.UserSnapshot{
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		RefreshToken: pair.RefreshToken,
	})

	a.logger.Info("Identity service: user registered", "user_id", user.ID)

	return model.Session{TokenPair: pair, UserID: user.ID}, nil
}

// Login verifies credentials and opens a new session. Earlier sessions of
// the same user stay valid.
func (a *Identity) Login(ctx context.Context, input validation.LoginInput) (session model.Session, err error) {
	defer func() { a.observe("login", err) }()

	input = input.Normalize()
	if fields := validation.Validate(input); fields != nil {
		a.logger.Info("Identity service: login rejected", "fields", fields)
		return model.Session{}, apierrors.NewErrValidation(fields)
	}

	user, fromCache, err := a.resolveByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.equalizeTiming(input.Password)
			a.logger.Info("Identity service: user not found", "email", input.Email)
			return model.Session{}, apierrors.NewErrUserNotFound()
		}
		a.logger.Error("Identity service: failed to get user by email",
			"email", input.Email,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}

	if !fromCache {
		a.cacheUser(ctx, model.UserSnapshot{UserID: user.ID, Username: user.Username, Email: user.Email})
	}

	ok, err := a.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		a.logger.Error("Identity service: failed to verify password",
			"user_id", user.ID,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}
	if !ok {
		a.logger.Info("Identity service: invalid password", "user_id", user.ID)
		return model.Session{}, apierrors.NewErrInvalidCredentials()
	}

	pair, err := a.tokens.Issue(ctx, user.ID, user.Username)
	if err != nil {
		a.logger.Error("Identity service: failed to issue tokens",
			"user_id", user.ID,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}

	a.logger.Info("Identity service: user logged in", "user_id", user.ID)

	return model.Session{TokenPair: pair, UserID: user.ID}, nil
}

// Refresh exchanges a refresh token for a new pair, rotating its row in place.
func (a *Identity) Refresh(ctx context.Context, refreshToken string) (session model.Session, err error) {
	defer func() { a.observe("refresh", err) }()

	if refreshToken == "" {
		return model.Session{}, apierrors.NewErrRefreshTokenRequired()
	}

	if a.isBlacklisted(ctx, refreshToken) {
		a.logger.Info("Identity service: blacklisted refresh token presented")
		return model.Session{}, apierrors.NewErrRefreshTokenRevoked()
	}

	rt, err := a.tokens.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Info("Identity service: refresh token not found")
			return model.Session{}, apierrors.NewErrRefreshTokenNotFound()
		}
		a.logger.Error("Identity service: failed to look up refresh token", "error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}

	if rt.IsExpired(a.now()) {
		if err := a.tokens.Delete(ctx, rt.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
			a.logger.Error("Identity service: failed to delete expired refresh token",
				"token_id", rt.ID,
				"error", err.Error())
			return model.Session{}, apierrors.NewErrInternalServerError(err)
		}
		a.logger.Info("Identity service: refresh token expired", "user_id", rt.UserID)
		return model.Session{}, apierrors.NewErrRefreshTokenExpired()
	}

	profile, err := a.Profile(ctx, rt.UserID)
	if err != nil {
		return model.Session{}, err
	}

	pair, err := a.tokens.Rotate(ctx, rt, profile.Username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Info("Identity service: refresh token rotated concurrently", "user_id", rt.UserID)
			return model.Session{}, apierrors.NewErrRefreshTokenNotFound()
		}
		a.logger.Error("Identity service: failed to rotate refresh token",
			"user_id", rt.UserID,
			"error", err.Error())
		return model.Session{}, apierrors.NewErrInternalServerError(err)
	}

	a.logger.Info("Identity service: tokens refreshed", "user_id", rt.UserID)

	return model.Session{TokenPair: pair, UserID: rt.UserID}, nil
}

// Logout deletes the session of a refresh token and blacklists the token for
// the rest of its validity.
func (a *Identity) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { a.observe("logout", err) }()

	if refreshToken == "" {
		return apierrors.NewErrRefreshTokenRequired()
	}

	rt, err := a.tokens.RevokeByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Info("Identity service: refresh token not found or already logged out")
			return apierrors.NewErrRefreshTokenNotFound()
		}
		a.logger.Error("Identity service: failed to delete refresh token", "error", err.Error())
		return apierrors.NewErrInternalServerError(err)
	}

	ttl := blacklistTTL(rt.Remaining(a.now()))
	if err := a.cache.Blacklist(ctx, refreshToken, ttl); err != nil {
		a.logger.Warn("Identity service: failed to blacklist refresh token",
			"user_id", rt.UserID,
			"error", err.Error())
	}

	a.logger.Info("Identity service: user logged out", "user_id", rt.UserID)

	return nil
}

// Profile returns the public projection of a user, reading through the cache.
func (a *Identity) Profile(ctx context.Context, userID uuid.UUID) (model.UserSnapshot, error) {
	snapshot, err := a.cache.GetUser(ctx, userID)
	a.observeCache(cacheKeyUser, err)
	if err == nil && snapshot.UserID == userID {
		snapshot.RefreshToken = ""
		return snapshot, nil
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Info("Identity service: user not found", "user_id", userID)
			return model.UserSnapshot{}, apierrors.NewErrUserNotFound()
		}
		a.logger.Error("Identity service: failed to get user by id",
			"user_id", userID,
			"error", err.Error())
		return model.UserSnapshot{}, apierrors.NewErrInternalServerError(err)
	}

	snapshot = model.UserSnapshot{UserID: user.ID, Username: user.Username, Email: user.Email}
	if err := a.cache.SetUser(ctx, snapshot, a.cacheTTL); err != nil {
		a.logger.Warn("Identity service: failed to cache user", "user_id", user.ID, "error", err.Error())
	}

	return snapshot, nil
}

// resolveByEmail finds the user of an email, trying the cache index first.
// Whatever the cache says, the returned user always comes from the store.
func (a *Identity) resolveByEmail(ctx context.Context, email string) (model.User, bool, error) {
	user, ok, err := a.resolveViaCache(ctx, email)
	if err != nil {
		return model.User{}, false, err
	}
	if ok {
		return user, true, nil
	}

	user, err = a.users.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, false, err
	}
	return user, false, nil
}

func (a *Identity) resolveViaCache(ctx context.Context, email string) (model.User, bool, error) {
	userID, err := a.cache.GetUserIDByEmail(ctx, email)
	a.observeCache(cacheKeyEmail, err)
	if err != nil {
		return model.User{}, false, nil
	}

	snapshot, err := a.cache.GetUser(ctx, userID)
	a.observeCache(cacheKeyUser, err)
	if err != nil {
		return model.User{}, false, nil
	}

	user, err := a.users.GetByID(ctx, snapshot.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Warn("Identity service: cached user missing from store", "user_id", snapshot.UserID)
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}

	if user.Email != email {
		a.logger.Warn("Identity service: stale email index entry", "email", email, "user_id", user.ID)
		return model.User{}, false, nil
	}

	return user, true, nil
}

// cacheUser writes the snapshot and the email index concurrently.
func (a *Identity) cacheUser(ctx context.Context, snapshot model.UserSnapshot) {
	var g errgroup.Group

	g.Go(func() error {
		return a.cache.SetUser(ctx, snapshot, a.cacheTTL)
	})
	g.Go(func() error {
		return a.cache.SetUserIDByEmail(ctx, snapshot.Email, snapshot.UserID, a.cacheTTL)
	})

	if err := g.Wait(); err != nil {
		a.logger.Warn("Identity service: failed to cache user",
			"user_id", snapshot.UserID,
			"error", err.Error())
	}
}

func (a *Identity) isBlacklisted(ctx context.Context, refreshToken string) bool {
	listed, err := a.cache.IsBlacklisted(ctx, refreshToken)
	switch {
	case err != nil:
		a.observeCache(cacheKeyBlacklist, err)
		return false
	case listed:
		a.observeCache(cacheKeyBlacklist, nil)
	default:
		a.observeCache(cacheKeyBlacklist, model.ErrCacheMiss)
	}
	return listed
}

// equalizeTiming runs one verification against a fixed hash so that an
// unknown email costs as much as a wrong password.
func (a *Identity) equalizeTiming(password string) {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.Hash(dummyPassword)
		if err != nil {
			a.logger.Warn("Identity service: failed to prepare dummy hash", "error", err.Error())
			return
		}
		a.dummyHash = hash
	})
	if a.dummyHash == "" {
		return
	}
	_, _ = a.hasher.Verify(password, a.dummyHash)
}

func (a *Identity) observe(operation string, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = string(apierrors.KindOf(err))
	}
	a.metrics.ObserveOperation(operation, outcome)
}

func (a *Identity) observeCache(key string, err error) {
	switch {
	case err == nil:
		a.metrics.ObserveCacheLookup(key, metrics.CacheHit)
	case errors.Is(err, model.ErrCacheMiss):
		a.metrics.ObserveCacheLookup(key, metrics.CacheMiss)
	default:
		a.metrics.ObserveCacheLookup(key, metrics.CacheError)
		a.logger.Warn("Identity service: cache read failed", "key", key, "error", err.Error())
	}
}

// blacklistTTL bounds the remaining validity of a revoked token.
func blacklistTTL(remaining time.Duration) time.Duration {
	if remaining > maxBlacklistTTL {
		return maxBlacklistTTL
	}
	if remaining < minBlacklistTTL {
		return minBlacklistTTL
	}
	return remaining
}
