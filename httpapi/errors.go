package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/echarter/fleetauth/core"
)

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	err error
	api apiError
}{
	{core.ErrAccountNotFound, apiError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}},
	{core.ErrNoRequestFound, apiError{http.StatusBadRequest, "NO_REQUEST_FOUND", "No reset request found"}},
	{core.ErrCodeExpired, apiError{http.StatusBadRequest, "CODE_EXPIRED", "Reset code expired"}},
	{core.ErrCodeMismatch, apiError{http.StatusBadRequest, "CODE_MISMATCH", "Incorrect reset code"}},
	{core.ErrTooManyAttempts, apiError{http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many attempts, request a new code"}},
	{core.ErrRateLimitExceeded, apiError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later"}},
	{core.ErrInvalidOrExpiredToken, apiError{http.StatusUnauthorized, "INVALID_OR_EXPIRED_TOKEN", "Invalid or expired token"}},
	{core.ErrIncorrectOldPassword, apiError{http.StatusUnauthorized, "INCORRECT_OLD_PASSWORD", "Incorrect old password"}},
	{core.ErrPersistenceFailure, apiError{http.StatusInternalServerError, "PERSISTENCE_FAILURE", "Password update failed"}},
	{core.ErrInvalidInput, apiError{http.StatusBadRequest, "INVALID_INPUT", "Invalid input"}},
}

var internalError = apiError{http.StatusInternalServerError, "INTERNAL", "Internal server error"}

func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.api
		}
	}
	return internalError
}

// writeError answers with a stable code. Only invalid-input details reach the client.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	api := classify(err)
	msg := api.message
	if api.code == "INVALID_INPUT" {
		msg = err.Error()
	}
	if api.status >= http.StatusInternalServerError {
		h.logger.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
	}
	writeJSON(w, api.status, errorResponse{ErrorCode: api.code, Message: msg})
}
