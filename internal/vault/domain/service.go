package domain

import (
	"context"
	"errors"
	"time"
)

// Service is the credential vault consumed by the upstream client.
type Service interface {
	// SetKey encrypts plaintext and stores it under name, overwriting the
	// ciphertext of an existing record rather than appending a second.
	SetKey(ctx context.Context, name, plaintext string) error
	// GetActiveKey returns the plaintext of the single active record. On
	// decryption failure it degrades to the configured static key; it returns
	// an empty string when neither is available.
	GetActiveKey(ctx context.Context) string
	// RecordUsage timestamps the active record.
	RecordUsage(ctx context.Context) error
	List(ctx context.Context) ([]Response, error)
}

type Response struct {
	Name       string     `json:"name"`
	MaskedKey  string     `json:"masked_key"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

var (
	ErrEmptyPlaintext = errors.New("empty_plaintext")
	ErrNoMasterKey    = errors.New("no_master_key")
	ErrBadMasterKey   = errors.New("bad_master_key")
	ErrDecryption     = errors.New("decryption_failed")
)
