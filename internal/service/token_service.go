package service

import (
	"context"
	"errors"
	"time"

	"authserver/internal/apperror"
	"authserver/internal/model"
	"authserver/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const tokenTTL = 24 * time.Hour

// TokenService issues and verifies bearer tokens. Tokens are HS256 JWTs whose
// jti must match a live access_tokens row, so revocation is immediate: the row
// goes away, the token dies, no matter how long the JWT itself is valid.
type TokenService interface {
	Issue(ctx context.Context, user *model.User) (string, error)
	Verify(ctx context.Context, tokenString string) (*model.User, error)
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

type tokenService struct {
	tokenRepo repository.TokenRepository
	userRepo  repository.UserRepository
	secret    []byte
}

func NewTokenService(tokenRepo repository.TokenRepository, userRepo repository.UserRepository, secret []byte) TokenService {
	return &tokenService{tokenRepo: tokenRepo, userRepo: userRepo, secret: secret}
}

// Issue signs a new token and records its jti. When called inside a
// transaction the row is part of it, so a rolled-back registration never
// leaves a live token behind.
func (s *tokenService) Issue(ctx context.Context, user *model.User) (string, error) {
	jti := uuid.NewString()
	expiresAt := time.Now().Add(tokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(),
		"jti": jti,
		"exp": expiresAt.Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.New("failed to sign token")
	}

	record := &model.AccessToken{
		UserID:    user.ID,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return "", err
	}

	return signed, nil
}

// Verify checks the signature, confirms the jti row is still live and loads
// the token's user.
func (s *tokenService) Verify(ctx context.Context, tokenString string) (*model.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperror.ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperror.ErrUnauthenticated
	}

	jti, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)
	if jti == "" || sub == "" {
		return nil, apperror.ErrUnauthenticated
	}

	record, err := s.tokenRepo.FindByJTI(ctx, jti)
	if err != nil {
		// Revoked or never issued
		return nil, apperror.ErrUnauthenticated
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, apperror.ErrUnauthenticated
	}

	userID, err := uuid.Parse(sub)
	if err != nil || userID != record.UserID {
		return nil, apperror.ErrUnauthenticated
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUnauthenticated
		}
		return nil, err
	}

	return user, nil
}

func (s *tokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.tokenRepo.DeleteByUser(ctx, userID)
}
