package b2b

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bolibana/boutique/internal/config"
	vaultdomain "github.com/bolibana/boutique/internal/vault/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type staticVault struct{ key string }

func (v *staticVault) SetKey(context.Context, string, string) error { return nil }
func (v *staticVault) GetActiveKey(context.Context) string          { return v.key }
func (v *staticVault) RecordUsage(context.Context) error            { return nil }
func (v *staticVault) List(context.Context) ([]vaultdomain.Response, error) {
	return nil, nil
}

func newTestClient(t *testing.T, handler http.Handler, key string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Config{
		B2BAPIURL:  srv.URL,
		APITimeout: 2 * time.Second,
	}, &staticVault{key: key}, zap.NewNop())
}

func TestClient_SendsAPIKeyHeader(t *testing.T) {
	var gotKey, gotAccept string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}), "secret-key-123")

	_, err := client.ListCategories(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "secret-key-123", gotKey)
	assert.Equal(t, "application/json", gotAccept)
}

func TestClient_NoCredential(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent without a credential")
	}), "")

	_, err := client.ListCategories(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestClient_ForbiddenMasksKey(t *testing.T) {
	key := "sk_live_0123456789abcdef"
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail": "invalid key"}`))
	}), key)

	_, err := client.ListCategories(context.Background())
	var forbidden *ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
	assert.True(t, forbidden.HadAuthHeader)
	assert.NotContains(t, forbidden.Error(), key)
	assert.Contains(t, forbidden.MaskedKey, "sk_liv")
	assert.Contains(t, forbidden.MaskedKey, "cdef")
}

func TestClient_HTTPErrorCarriesTruncatedBody(t *testing.T) {
	longBody := strings.Repeat("x", 500)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(longBody))
	}), "key")

	_, err := client.ListCategories(context.Background())
	var httpErr *HTTPError
	assert.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.LessOrEqual(t, len(httpErr.Body), 203)
}

func TestClient_HTMLBodyElided(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>gateway error</body></html>"))
	}), "key")

	_, err := client.ListCategories(context.Background())
	var httpErr *HTTPError
	assert.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "(HTML body elided)", httpErr.Body)
}

func TestClient_TimeoutTranslated(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}), "key")
	client.timeout = 50 * time.Millisecond

	_, err := client.ListCategories(context.Background())
	var timeout *TimeoutError
	assert.ErrorAs(t, err, &timeout)
	assert.True(t, IsTransient(err))
}

func TestClient_ConnectionErrorTranslated(t *testing.T) {
	client := New(config.Config{
		B2BAPIURL:  "http://127.0.0.1:1",
		APITimeout: time.Second,
	}, &staticVault{key: "key"}, zap.NewNop())

	_, err := client.ListCategories(context.Background())
	var conn *ConnectionError
	assert.ErrorAs(t, err, &conn)
	assert.True(t, IsTransient(err))
}

func TestClient_GetProductUnwrapsPage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 1, "results": [{"id": 42, "name": "Sucre"}]}`))
	}), "key")

	rec, err := client.GetProduct(context.Background(), 42)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, "Sucre", rec.Name)
}

func TestClient_ListCategoriesUnwrapsPage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 1, "results": [{"id": 7, "name": "Epicerie"}]}`))
	}), "key")

	cats, err := client.ListCategories(context.Background())
	assert.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Equal(t, int64(7), cats[0].ID)
}

func TestWithRetry_RetriesTransientOnly(t *testing.T) {
	attempts := 0
	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, &HTTPError{StatusCode: 500, URL: "u", Body: "b"}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	got, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, &ConnectionError{URL: "u", Err: errors.New("refused")}
		}
		return 7, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 2, attempts)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, &TimeoutError{URL: "u", Err: context.DeadlineExceeded}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}
