package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"arcadeswap-api/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAPIError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: empty asset id", service.ErrInvalidProposal), http.StatusBadRequest, "BAD_REQUEST"},
		{fmt.Errorf("%w: a1", service.ErrNotOwner), http.StatusUnprocessableEntity, "NOT_OWNER"},
		{fmt.Errorf("%w: a1", service.ErrAssetNotTradeable), http.StatusUnprocessableEntity, "ASSET_NOT_TRADEABLE"},
		{service.ErrNotAuthorized, http.StatusForbidden, "FORBIDDEN"},
		{service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{service.ErrDuplicatePending, http.StatusConflict, "DUPLICATE_PENDING"},
		{fmt.Errorf("%w: a1", service.ErrAssetMissing), http.StatusConflict, "TRADE_NO_LONGER_VALID"},
		{service.ErrAlreadySettled, http.StatusConflict, "TRADE_NO_LONGER_VALID"},
		{service.ErrConcurrentUpdate, http.StatusConflict, "CONCURRENT_UPDATE"},
		{service.ErrBusy, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			apiErr := toAPIError(tc.err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.code, apiErr.Code)
		})
	}

	assert.Nil(t, toAPIError(errors.New("disk on fire")))
}

func TestWriteServiceError_HidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil)

	writeServiceError(rec, req, "TradeHandler", errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestWriteServiceError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", nil)

	writeServiceError(rec, req, "TradeHandler", service.ErrBusy)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
