package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("slr", 7), http.StatusNotFound},
		{"invalid input", InvalidInput("missing %s", "title"), http.StatusBadRequest},
		{"already exists", AlreadyExists("protocol exists"), http.StatusConflict},
		{"remote unavailable", RemoteUnavailable(nil, "down"), http.StatusServiceUnavailable},
		{"remote failed", RemoteFailed(http.StatusBadRequest, "rejected"), http.StatusBadGateway},
		{"cannot delete wrapping remote outage", CannotDelete("slr", 1, RemoteUnavailable(nil, "down")), http.StatusServiceUnavailable},
		{"cannot delete wrapping db error", CannotDelete("slr", 1, Internal(errors.New("boom"), "db")), http.StatusConflict},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestHasKindWalksWrappedChain(t *testing.T) {
	inner := RemoteUnavailable(errors.New("connection refused"), "search service unreachable")
	err := CannotDelete("slr", 3, fmt.Errorf("protocol cascade: %w", inner))

	assert.Equal(t, KindCannotDelete, KindOf(err))
	assert.True(t, HasKind(err, KindRemoteServiceUnavailable))
	assert.False(t, HasKind(err, KindNotFound))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRemoteFailedMessage(t *testing.T) {
	err := RemoteFailed(http.StatusForbidden, "form instance delete for form %d", 4)
	assert.Equal(t, "form instance delete for form 4 (status 403)", err.Error())
}
