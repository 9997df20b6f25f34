package repository

import (
	"context"
	"time"

	"authserver/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenRepository stores the rows that keep issued bearer tokens alive.
type TokenRepository interface {
	Create(ctx context.Context, token *model.AccessToken) error
	FindByJTI(ctx context.Context, jti string) (*model.AccessToken, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context) error
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.AccessToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *tokenRepository) FindByJTI(ctx context.Context, jti string) (*model.AccessToken, error) {
	var token model.AccessToken
	if err := GetDB(ctx, r.db).Where("jti = ?", jti).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteByUser revokes every outstanding token for the user at once.
func (r *tokenRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("user_id = ?", userID).Delete(&model.AccessToken{}).Error
}

func (r *tokenRepository) DeleteExpired(ctx context.Context) error {
	return GetDB(ctx, r.db).Where("expires_at < ?", time.Now()).Delete(&model.AccessToken{}).Error
}
