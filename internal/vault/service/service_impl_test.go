package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"testing"

	"github.com/bolibana/boutique/internal/config"
	"github.com/bolibana/boutique/internal/vault/domain"
	"github.com/bolibana/boutique/internal/vault/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testMasterKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, raw)
	assert.NoError(t, err)
	return base64.URLEncoding.EncodeToString(raw)
}

func newTestService(t *testing.T, masterKey, fallback string) domain.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.ApiKey{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{EncryptionKey: masterKey, B2BAPIKey: fallback},
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestNormalizeMasterKey(t *testing.T) {
	raw := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, raw)
	assert.NoError(t, err)
	encoded := base64.URLEncoding.EncodeToString(raw)

	got, err := NormalizeMasterKey(encoded)
	assert.NoError(t, err)
	assert.Equal(t, raw, got)

	// Wrapped and quoted forms are tolerated.
	got, err = NormalizeMasterKey("b'" + encoded + "'")
	assert.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = NormalizeMasterKey(`"` + encoded + `"`)
	assert.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = NormalizeMasterKey("  " + encoded + "  ")
	assert.NoError(t, err)
	assert.Equal(t, raw, got)

	// Standard encoding works too.
	got, err = NormalizeMasterKey(base64.StdEncoding.EncodeToString(raw))
	assert.NoError(t, err)
	assert.Equal(t, raw, got)

	// Double-encoded keys survive one re-decode.
	doubled := base64.StdEncoding.EncodeToString([]byte(encoded))
	got, err = NormalizeMasterKey(doubled)
	assert.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = NormalizeMasterKey("")
	assert.ErrorIs(t, err, domain.ErrNoMasterKey)
	_, err = NormalizeMasterKey("too-short")
	assert.ErrorIs(t, err, domain.ErrBadMasterKey)
	_, err = NormalizeMasterKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, domain.ErrBadMasterKey)
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key, err := NormalizeMasterKey(testMasterKey(t))
	assert.NoError(t, err)
	aead, err := newAEAD(key)
	assert.NoError(t, err)

	ciphertext, err := encrypt(aead, "api-key-plaintext")
	assert.NoError(t, err)
	assert.NotContains(t, ciphertext, "api-key-plaintext")

	plaintext, err := decrypt(aead, ciphertext)
	assert.NoError(t, err)
	assert.Equal(t, "api-key-plaintext", plaintext)

	// Two encryptions of the same plaintext differ (random nonce).
	other, err := encrypt(aead, "api-key-plaintext")
	assert.NoError(t, err)
	assert.NotEqual(t, ciphertext, other)

	_, err = decrypt(aead, "not-base64!!!")
	assert.ErrorIs(t, err, domain.ErrDecryption)
	_, err = decrypt(aead, base64.StdEncoding.EncodeToString([]byte("tiny")))
	assert.ErrorIs(t, err, domain.ErrDecryption)
}

func TestService_SetAndGetKey(t *testing.T) {
	svc := newTestService(t, testMasterKey(t), "fallback-key")
	ctx := context.Background()

	assert.Equal(t, "fallback-key", svc.GetActiveKey(ctx))

	assert.NoError(t, svc.SetKey(ctx, "default", "sk_live_abcdef123456"))
	assert.Equal(t, "sk_live_abcdef123456", svc.GetActiveKey(ctx))

	// Overwrite replaces the ciphertext, it does not append a second record.
	assert.NoError(t, svc.SetKey(ctx, "default", "sk_live_rotated999999"))
	assert.Equal(t, "sk_live_rotated999999", svc.GetActiveKey(ctx))

	keys, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Equal(t, "default", keys[0].Name)
	assert.NotContains(t, keys[0].MaskedKey, "rotated999999")
	assert.Contains(t, keys[0].MaskedKey, "sk_liv")
}

func TestService_RejectsEmptyPlaintext(t *testing.T) {
	svc := newTestService(t, testMasterKey(t), "")
	err := svc.SetKey(context.Background(), "default", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyPlaintext)
}

func TestService_NoMasterKeyIsReadOnly(t *testing.T) {
	svc := newTestService(t, "", "fallback-key")
	ctx := context.Background()

	err := svc.SetKey(ctx, "default", "sk_live_abcdef123456")
	assert.ErrorIs(t, err, domain.ErrNoMasterKey)
	assert.Equal(t, "fallback-key", svc.GetActiveKey(ctx))
}

func TestService_UndecryptableFallsBack(t *testing.T) {
	// Store under one master key, read under another.
	first := newTestService(t, testMasterKey(t), "fallback-key")
	ctx := context.Background()
	assert.NoError(t, first.SetKey(ctx, "default", "sk_live_abcdef123456"))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	second := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{EncryptionKey: testMasterKey(t), B2BAPIKey: "fallback-key"},
		GenID: node,
		Repo:  repository.Provide(),
	})
	assert.Equal(t, "fallback-key", second.GetActiveKey(ctx))

	keys, err := second.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Equal(t, "(undecryptable)", keys[0].MaskedKey)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(empty)", domain.MaskKey(""))
	assert.Equal(t, "*** (len=5)", domain.MaskKey("short"))
	masked := domain.MaskKey("sk_live_0123456789abcdef")
	assert.Contains(t, masked, "sk_liv")
	assert.Contains(t, masked, "cdef")
	assert.NotContains(t, masked, "0123456789")
}
