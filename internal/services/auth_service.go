package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/storage"
	"github.com/qianh/prompt-tower/internal/utils"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	minPasswordLength = 6
)

type AuthService struct {
	users    storage.UserStore
	tokens   *utils.TokenManager
	denylist *TokenDenylist
	log      *zap.Logger
}

func NewAuthService(users storage.UserStore, tokens *utils.TokenManager, denylist *TokenDenylist, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{users: users, tokens: tokens, denylist: denylist, log: log}
}

func (s *AuthService) Signup(ctx context.Context, username, password string) (*models.PublicUser, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return nil, apperr.Validation("username must be %d-%d characters", minUsernameLength, maxUsernameLength)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}
	user, err := s.users.CreateUser(ctx, username, string(hashed))
	if err != nil {
		return nil, err
	}
	s.log.Info("User registered", zap.String("username", username))
	public := user.Public()
	return &public, nil
}

// Login checks the credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrNotFound) {
		return "", apperr.Auth("incorrect username or password")
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", apperr.Auth("incorrect username or password")
	}

	token, err := s.tokens.GenerateToken(user.Username)
	if err != nil {
		return "", apperr.Internal(err, "sign token")
	}
	return token, nil
}

// VerifyToken resolves a token to the live user it names.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	revoked, err := s.denylist.IsDenylisted(ctx, token)
	if err != nil {
		return nil, apperr.Internal(err, "check token denylist")
	}
	if revoked {
		return nil, apperr.Auth("token has been revoked")
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperr.Auth("invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, apperr.Auth("token has no subject")
	}

	user, err := s.users.FindUserByUsername(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Auth("user no longer exists")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout revokes token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return apperr.Auth("invalid or expired token")
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if err := s.denylist.Add(ctx, token, remaining); err != nil {
		return apperr.Internal(err, "revoke token")
	}
	return nil
}
