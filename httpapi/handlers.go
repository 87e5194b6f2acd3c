package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/echarter/fleetauth/core"
)

const maxBodyBytes = 1 << 16

type messageResponse struct {
	Message string `json:"message"`
}

type requestResetRequest struct {
	Email string `json:"email"`
}

func (h *handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.svc.RequestReset(r.Context(), req.Email)
	if errors.Is(err, core.ErrAccountNotFound) && h.mask {
		err = nil
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Reset code sent"})
}

type verifyResetRequest struct {
	Email     string `json:"email"`
	ResetCode string `json:"resetCode"`
}

type verifyResetResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handler) verifyReset(w http.ResponseWriter, r *http.Request) {
	var req verifyResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	tok, err := h.svc.VerifyReset(r.Context(), req.Email, req.ResetCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResetResponse{
		Message:   "Code verified",
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
	})
}

type applyNewPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (h *handler) applyNewPassword(w http.ResponseWriter, r *http.Request) {
	raw, ok := bearerToken(r)
	if !ok {
		h.writeError(w, r, core.ErrInvalidOrExpiredToken)
		return
	}
	var req applyNewPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ApplyNewPassword(r.Context(), raw, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successful"})
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), req.Email, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: malformed JSON body", core.ErrInvalidInput))
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(auth[7:])
	return raw, raw != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
