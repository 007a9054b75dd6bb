package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/storage"
	"github.com/qianh/prompt-tower/internal/utils"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func newAuthService(t *testing.T, store storage.UserStore, denylist *TokenDenylist) *AuthService {
	t.Helper()
	return NewAuthService(store, utils.NewTokenManager(testSecret, 30*time.Minute), denylist, zap.NewNop())
}

func TestSignupAndLogin(t *testing.T) {
	eachBackend(t, func(t *testing.T, store storage.Store) {
		svc := newAuthService(t, store, nil)
		ctx := context.Background()

		user, err := svc.Signup(ctx, "alice", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.NotZero(t, user.ID)

		stored, err := store.FindUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.NotEqual(t, "secret123", stored.HashedPassword)

		_, err = svc.Signup(ctx, "alice", "another1")
		assert.True(t, errors.Is(err, apperr.ErrConflict))

		token, err := svc.Login(ctx, "alice", "secret123")
		require.NoError(t, err)

		resolved, err := svc.VerifyToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "alice", resolved.Username)
	})
}

func TestSignupValidation(t *testing.T) {
	svc := newAuthService(t, newFileStore(t), nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ab", "secret123")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = svc.Signup(ctx, "alice", "12345")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestLoginFailures(t *testing.T) {
	svc := newAuthService(t, newFileStore(t), nil)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "alice", "secret123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong-password")
	assert.True(t, errors.Is(err, apperr.ErrAuth))
	_, err = svc.Login(ctx, "nobody", "secret123")
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}

func TestVerifyTokenRequiresLiveUser(t *testing.T) {
	svc := newAuthService(t, newFileStore(t), nil)
	ctx := context.Background()

	token, err := utils.NewTokenManager(testSecret, time.Minute).GenerateToken("ghost")
	require.NoError(t, err)
	_, err = svc.VerifyToken(ctx, token)
	assert.True(t, errors.Is(err, apperr.ErrAuth))

	noSubject, err := utils.NewTokenManager(testSecret, time.Minute).GenerateToken("")
	require.NoError(t, err)
	_, err = svc.VerifyToken(ctx, noSubject)
	assert.True(t, errors.Is(err, apperr.ErrAuth))

	_, err = svc.VerifyToken(ctx, "garbage")
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := newAuthService(t, newFileStore(t), NewTokenDenylist(client))
	ctx := context.Background()
	_, err := svc.Signup(ctx, "alice", "secret123")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	assert.True(t, mr.Exists(denylistPrefix+token))
	ttl := mr.TTL(denylistPrefix + token)
	assert.True(t, ttl > 0 && ttl <= 30*time.Minute)

	_, err = svc.VerifyToken(ctx, token)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}

func TestLogoutWithoutRedisIsNoop(t *testing.T) {
	svc := newAuthService(t, newFileStore(t), NewTokenDenylist(nil))
	ctx := context.Background()
	_, err := svc.Signup(ctx, "alice", "secret123")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.VerifyToken(ctx, token)
	assert.NoError(t, err)
}

func TestTokenDenylistRedisError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.SetError("boom")

	svc := newAuthService(t, newFileStore(t), NewTokenDenylist(client))
	_, err := svc.VerifyToken(context.Background(), "any")
	assert.True(t, errors.Is(err, apperr.ErrInternal))
}
