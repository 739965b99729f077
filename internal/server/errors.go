package server

import (
	"errors"
	"net/http"

	"github.com/bolibana/boutique/internal/b2b"
	saledomain "github.com/bolibana/boutique/internal/sale/domain"
	vaultdomain "github.com/bolibana/boutique/internal/vault/domain"
	"github.com/gin-gonic/gin"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// AbortWithError maps domain errors to HTTP statuses without leaking
// internals. Upstream failures surface as 502 so callers can tell a broken
// upstream from a broken service.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := http.StatusInternalServerError
	kind := "internal_error"
	message := "internal error"

	var httpErr *b2b.HTTPError
	var forbiddenErr *b2b.ForbiddenError
	switch {
	case errors.Is(err, b2b.ErrNoCredential):
		status = http.StatusConflict
		kind = "no_credential"
		message = "no upstream api key configured"
	case errors.As(err, &forbiddenErr):
		status = http.StatusBadGateway
		kind = "upstream_forbidden"
		message = "upstream rejected our credentials"
	case errors.As(err, &httpErr):
		status = http.StatusBadGateway
		kind = "upstream_error"
		message = "upstream request failed"
	case b2b.IsTransient(err):
		status = http.StatusBadGateway
		kind = "upstream_unreachable"
		message = "upstream unreachable"
	case errors.Is(err, saledomain.ErrNotFound):
		status = http.StatusNotFound
		kind = "not_found"
		message = "not found"
	case errors.Is(err, vaultdomain.ErrEmptyPlaintext):
		status = http.StatusBadRequest
		kind = "validation_error"
		message = "key must not be empty"
	case errors.Is(err, vaultdomain.ErrNoMasterKey):
		status = http.StatusConflict
		kind = "vault_readonly"
		message = "no usable master key, vault is read-only"
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: errorPayload{
		Type:    kind,
		Message: message,
	}})
}

func invalidRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
		Type:    "validation_error",
		Message: "invalid request",
	}})
}
