package service

import (
	"context"
	"crypto/cipher"
	"strings"
	"sync"
	"time"

	"github.com/bolibana/boutique/internal/config"
	"github.com/bolibana/boutique/internal/vault/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	fallback string
	aead     cipher.AEAD

	mu       sync.RWMutex
	cached   string
	cachedID int64
}

func New(p Params) domain.Service {
	s := &Service{
		db:       p.DB,
		log:      p.Log.Named("vault"),
		repo:     p.Repo,
		genID:    p.GenID,
		fallback: p.Cfg.B2BAPIKey,
	}

	if strings.TrimSpace(p.Cfg.EncryptionKey) != "" {
		key, err := NormalizeMasterKey(p.Cfg.EncryptionKey)
		if err != nil {
			s.log.Warn("master key rejected, vault is read-only",
				zap.String("key", domain.MaskKey(p.Cfg.EncryptionKey)),
				zap.Error(err),
			)
		} else if aead, err := newAEAD(key); err != nil {
			s.log.Warn("master key unusable", zap.Error(err))
		} else {
			s.aead = aead
		}
	}

	return s
}

func (s *Service) SetKey(ctx context.Context, name, plaintext string) error {
	if strings.TrimSpace(plaintext) == "" {
		return domain.ErrEmptyPlaintext
	}
	if s.aead == nil {
		return domain.ErrNoMasterKey
	}

	ciphertext, err := encrypt(s.aead, plaintext)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := s.repo.UpdateCiphertext(ctx, s.db, existing.ID, ciphertext); err != nil {
			return err
		}
	} else {
		now := time.Now().UTC()
		key := &domain.ApiKey{
			ID:         s.genID.Generate().Int64(),
			Name:       name,
			Ciphertext: ciphertext,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.Create(ctx, s.db, key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cached = ""
	s.cachedID = 0
	s.mu.Unlock()

	s.log.Info("upstream key stored", zap.String("name", name), zap.String("key", domain.MaskKey(plaintext)))
	return nil
}

// GetActiveKey never fails loudly: decryption problems degrade to the static
// fallback key and a warning.
func (s *Service) GetActiveKey(ctx context.Context) string {
	s.mu.RLock()
	if s.cached != "" {
		cached := s.cached
		s.mu.RUnlock()
		return cached
	}
	s.mu.RUnlock()

	record, err := s.repo.FindActive(ctx, s.db)
	if err != nil {
		s.log.Warn("vault lookup failed, using fallback key", zap.Error(err))
		return s.fallback
	}
	if record == nil {
		return s.fallback
	}
	if s.aead == nil {
		s.log.Warn("no master key configured, using fallback key")
		return s.fallback
	}

	plaintext, err := decrypt(s.aead, record.Ciphertext)
	if err != nil {
		s.log.Warn("stored key could not be decrypted, using fallback key",
			zap.String("name", record.Name),
			zap.Error(err),
		)
		return s.fallback
	}

	if err := s.repo.TouchLastUsed(ctx, s.db, record.ID); err != nil {
		s.log.Warn("failed to timestamp key usage", zap.Error(err))
	}

	s.mu.Lock()
	s.cached = plaintext
	s.cachedID = record.ID
	s.mu.Unlock()

	return plaintext
}

func (s *Service) RecordUsage(ctx context.Context) error {
	s.mu.RLock()
	id := s.cachedID
	s.mu.RUnlock()
	if id == 0 {
		record, err := s.repo.FindActive(ctx, s.db)
		if err != nil || record == nil {
			return err
		}
		id = record.ID
	}
	return s.repo.TouchLastUsed(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	keys, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(keys))
	for _, key := range keys {
		masked := "(undecryptable)"
		if s.aead != nil {
			if plaintext, err := decrypt(s.aead, key.Ciphertext); err == nil {
				masked = domain.MaskKey(plaintext)
			}
		}
		resp = append(resp, domain.Response{
			Name:       key.Name,
			MaskedKey:  masked,
			IsActive:   key.IsActive,
			CreatedAt:  key.CreatedAt,
			LastUsedAt: key.LastUsedAt,
		})
	}
	return resp, nil
}
