package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByName(ctx context.Context, db *gorm.DB, name string) (*ApiKey, error)
	FindActive(ctx context.Context, db *gorm.DB) (*ApiKey, error)
	List(ctx context.Context, db *gorm.DB) ([]ApiKey, error)
	Create(ctx context.Context, db *gorm.DB, key *ApiKey) error
	UpdateCiphertext(ctx context.Context, db *gorm.DB, id int64, ciphertext string) error
	TouchLastUsed(ctx context.Context, db *gorm.DB, id int64) error
}
