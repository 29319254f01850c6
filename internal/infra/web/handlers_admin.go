package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/metrics"
	"github.com/onlymatt43/ONLY-ACCESS/internal/usecase"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !CheckCredentials(s.adminUser, s.adminHash, req.Username, req.Password) {
		s.log.Warn().Str("ip", clientAddr(r)).Msg("failed admin login")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		s.log.Error().Err(err).Msg("mint admin session")
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type issueCodesRequest struct {
	FamilyID string `json:"family_id,omitempty"`
	Site     string `json:"site"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
	Duration int    `json:"duration_minutes"`
}

func (s *Server) handleIssueCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueCodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batch, err := s.issueUC.IssueBatch(ctx, usecase.IssueRequest{
		FamilyID: req.FamilyID,
		Site:     req.Site,
		Label:    req.Label,
		Count:    req.Count,
		Duration: req.Duration,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusBadRequest, "unknown site or family")
		default:
			s.log.Error().Err(err).Msg("issue batch")
			writeError(w, http.StatusInternalServerError, "could not issue codes")
		}
		return
	}

	metrics.IncCodesIssued(len(batch.Codes))
	// The plaintexts leave the server here and are never recoverable.
	writeJSON(w, http.StatusCreated, struct {
		FamilyID string   `json:"family_id"`
		Codes    []string `json:"codes"`
	}{FamilyID: batch.FamilyID, Codes: batch.Codes})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.statsUC.Totals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not compute stats")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Families int `json:"families"`
		Issued   int `json:"codes_issued"`
		Redeemed int `json:"codes_redeemed"`
		Active   int `json:"codes_active"`
	}{totals.Families, totals.Issued, totals.Redeemed, totals.Active})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.statsUC.Logs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.statsUC.Export(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not export")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type siteCreateRequest struct {
	Title        string `json:"title"`
	IframeURL    string `json:"iframe_url"`
	MerchantLink string `json:"link"`
}

func (s *Server) handleSiteCreate(w http.ResponseWriter, r *http.Request) {
	var req siteCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	site, err := s.siteUC.Create(r.Context(), req.Title, req.IframeURL, req.MerchantLink)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("create site")
		writeError(w, http.StatusInternalServerError, "could not create site")
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleSiteList(w http.ResponseWriter, r *http.Request) {
	sites, err := s.siteUC.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list sites")
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) handleSiteDelete(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	if err := s.siteUC.Delete(r.Context(), title); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown site")
			return
		}
		s.log.Error().Err(err).Msg("delete site")
		writeError(w, http.StatusInternalServerError, "could not delete site")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleFamilyQR renders a QR code pointing at the unlock page for a
// family, for printing next to the issued codes.
func (s *Server) handleFamilyQR(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, "id")

	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	unlockURL := fmt.Sprintf("%s://%s/unlock?family=%s", scheme, r.Host, familyID)

	png, err := qrcode.Encode(unlockURL, qrcode.Medium, 256)
	if err != nil {
		s.log.Error().Err(err).Msg("encode qr")
		writeError(w, http.StatusInternalServerError, "could not render qr")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
