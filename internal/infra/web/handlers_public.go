package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/logging"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/metrics"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type redeemRequest struct {
	FamilyID string `json:"family_id"`
	Code     string `json:"code"`
	// Honeypot: real clients leave this empty.
	Email string `json:"email,omitempty"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email != "" {
		writeError(w, http.StatusForbidden, "bot detected")
		return
	}
	if req.FamilyID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "family_id and code are required")
		return
	}

	ctx = logging.WithFamilyID(ctx, req.FamilyID)
	grant, err := s.redeemUC.Redeem(ctx, req.FamilyID, req.Code, clientAddr(r))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			metrics.IncRedemption("rate_limited")
			writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		case errors.Is(err, domain.ErrUnknownFamily):
			metrics.IncRedemption("unknown_family")
			writeError(w, http.StatusBadRequest, "unknown code group")
		case errors.Is(err, domain.ErrCodeNotInFamily):
			metrics.IncRedemption("not_in_family")
			writeError(w, http.StatusBadRequest, "code does not belong to this group")
		case errors.Is(err, domain.ErrCodeAlreadyUsed):
			metrics.IncRedemption("already_used")
			writeError(w, http.StatusBadRequest, "this code has already been used")
		default:
			metrics.IncRedemption("error")
			logging.With(ctx, s.log).Error().Err(err).Msg("redeem failed")
			writeError(w, http.StatusInternalServerError, "could not redeem code")
		}
		return
	}

	metrics.IncRedemption("success")
	setAccessCookie(w, grant.Token, grant.ExpiresAt, s.secureCookie)
	writeJSON(w, http.StatusOK, struct {
		ExpiresAt time.Time `json:"expires_at"`
	}{ExpiresAt: grant.ExpiresAt})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(accessCookieName)
	if err != nil || cookie.Value == "" {
		metrics.IncSessionCheck(false)
		writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
		return
	}

	status, err := s.sessionUC.Validate(ctx, cookie.Value, clientAddr(r))
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("session validation failed")
		writeError(w, http.StatusInternalServerError, "could not validate session")
		return
	}
	metrics.IncSessionCheck(status.Valid)
	if !status.Valid {
		writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Valid        bool      `json:"valid"`
		ExpiresAt    time.Time `json:"expires_at"`
		IframeURL    string    `json:"iframe_url,omitempty"`
		MerchantLink string    `json:"link,omitempty"`
	}{
		Valid:        true,
		ExpiresAt:    status.ExpiresAt,
		IframeURL:    status.IframeURL,
		MerchantLink: status.MerchantLink,
	})
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	clearAccessCookie(w, s.secureCookie)
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}
