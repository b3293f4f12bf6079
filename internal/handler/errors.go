package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"arcadeswap-api/internal/middleware"
	"arcadeswap-api/internal/service"
	"arcadeswap-api/pkg/apierror"
	"arcadeswap-api/pkg/response"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apierror.BadRequest("failed to read request body")
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		return apierror.BadRequest("invalid JSON")
	}
	return nil
}

// toAPIError maps service errors onto HTTP errors. Unknown errors come back
// as nil so the caller logs them before answering 500.
func toAPIError(err error) *apierror.Error {
	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, service.ErrInvalidProposal),
		errors.Is(err, service.ErrInvalidDecision),
		errors.Is(err, service.ErrInvalidInput):
		return apierror.BadRequest(err.Error())
	case errors.Is(err, service.ErrNotOwner):
		return apierror.Unprocessable(err.Error()).WithCode("NOT_OWNER")
	case errors.Is(err, service.ErrAssetNotTradeable):
		return apierror.Unprocessable(err.Error()).WithCode("ASSET_NOT_TRADEABLE")
	case errors.Is(err, service.ErrNotAuthorized):
		return apierror.Forbidden(err.Error())
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrAssetNotFound),
		errors.Is(err, service.ErrGameNotFound):
		return apierror.NotFound(err.Error())
	case errors.Is(err, service.ErrDuplicatePending):
		return apierror.Conflict(err.Error()).WithCode("DUPLICATE_PENDING")
	case service.IsStale(err):
		return apierror.Conflict(err.Error()).WithCode("TRADE_NO_LONGER_VALID")
	case errors.Is(err, service.ErrConcurrentUpdate):
		return apierror.Conflict(err.Error()).WithCode("CONCURRENT_UPDATE")
	case errors.Is(err, service.ErrBusy),
		errors.Is(err, context.DeadlineExceeded):
		return apierror.ServiceUnavailable("please retry shortly")
	}
	return nil
}

// writeServiceError answers with the mapped error, logging failures that
// are not the caller's fault.
func writeServiceError(w http.ResponseWriter, r *http.Request, component string, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	log.Printf("[%s] rid=%s %s %s failed: %v", component, middleware.GetRequestID(r.Context()), r.Method, r.URL.Path, err)
	response.Error(w, apierror.InternalError(""))
}

// requireUser returns the authenticated user id or answers 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Error(w, apierror.Unauthorized(""))
		return "", false
	}
	return userID, true
}
