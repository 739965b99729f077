package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bolibana/boutique/internal/vault/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*domain.ApiKey, error) {
	var key domain.ApiKey
	err := db.WithContext(ctx).First(&key, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB) (*domain.ApiKey, error) {
	var key domain.ApiKey
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("updated_at DESC").
		First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.ApiKey, error) {
	var keys []domain.ApiKey
	err := db.WithContext(ctx).Order("created_at ASC").Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, key *domain.ApiKey) error {
	return db.WithContext(ctx).Create(key).Error
}

func (r *repo) UpdateCiphertext(ctx context.Context, db *gorm.DB, id int64, ciphertext string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET ciphertext = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		ciphertext,
		true,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id int64) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		now,
		id,
	).Error
}
