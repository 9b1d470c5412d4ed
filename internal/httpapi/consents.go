package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/nordicledger/accounting-gateway/internal/consent"
	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/httpresponse"
	"github.com/nordicledger/accounting-gateway/internal/middleware"
)

func (h *handler) registerConsentRoutes(api *mux.Router) {
	api.HandleFunc("/consents", h.createConsent).Methods(http.MethodPost)
	api.HandleFunc("/consents", h.listConsents).Methods(http.MethodGet)
	api.HandleFunc("/consents/auth/token", h.exchangeToken).Methods(http.MethodPost)
	api.HandleFunc("/consents/{id}", h.getConsent).Methods(http.MethodGet)
	api.HandleFunc("/consents/{id}", h.patchConsent).Methods(http.MethodPatch)
	api.HandleFunc("/consents/{id}", h.deleteConsent).Methods(http.MethodDelete)
	api.HandleFunc("/consents/{id}/otc", h.createOTC).Methods(http.MethodPost)
	api.HandleFunc("/consents/{id}/sie-upload", h.uploadSIE).Methods(http.MethodPost)
	api.HandleFunc("/consents/{id}/sie", h.listSIE).Methods(http.MethodGet)
	api.HandleFunc("/consents/{id}/sie/{uploadId}", h.getSIE).Methods(http.MethodGet)
}

type createConsentRequest struct {
	Name     string          `json:"name"`
	Provider domain.Provider `json:"provider"`
}

func (h *handler) createConsent(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	var req createConsentRequest
	if err := httpresponse.DecodeJSON(r, &req); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	if req.Name == "" || req.Provider == "" {
		httpresponse.WriteError(w, r, gwerrors.Validation("name and provider are required", nil))
		return
	}
	c, err := h.deps.Consents.Create(r.Context(), tenantID, req.Name, req.Provider)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	w.Header().Set("ETag", c.ETag)
	httpresponse.WriteJSON(w, http.StatusCreated, c)
}

func (h *handler) listConsents(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	var filter database.ConsentFilter
	if p := httpresponse.QueryString(r, "provider"); p != "" {
		provider := domain.Provider(p)
		filter.Provider = &provider
	}
	if s := httpresponse.QueryString(r, "status"); s != "" {
		if status, ok := parseConsentStatus(s); ok {
			filter.Status = &status
		}
	}
	list, err := h.deps.Consents.List(r.Context(), tenantID, filter)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": list})
}

func parseConsentStatus(s string) (domain.ConsentStatus, bool) {
	switch s {
	case "created":
		return domain.ConsentCreated, true
	case "accepted":
		return domain.ConsentAccepted, true
	case "revoked":
		return domain.ConsentRevoked, true
	case "inactive":
		return domain.ConsentInactive, true
	}
	return 0, false
}

func (h *handler) getConsent(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	c, err := h.deps.Consents.Get(r.Context(), tenantID, id)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	w.Header().Set("ETag", c.ETag)
	httpresponse.WriteJSON(w, http.StatusOK, c)
}

type patchConsentRequest struct {
	Name      *string    `json:"name"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (h *handler) patchConsent(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	var req patchConsentRequest
	if err := httpresponse.DecodeJSON(r, &req); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	c, err := h.deps.Consents.Patch(r.Context(), tenantID, id, r.Header.Get("If-Match"), req.Name, req.ExpiresAt)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	w.Header().Set("ETag", c.ETag)
	httpresponse.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) deleteConsent(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	if err := h.deps.Consents.Delete(r.Context(), tenantID, id); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type createOTCRequest struct {
	ValiditySeconds int `json:"validitySeconds"`
}

func (h *handler) createOTC(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	var req createOTCRequest
	_ = httpresponse.DecodeJSON(r, &req) // body is optional for this route

	validity := time.Duration(req.ValiditySeconds) * time.Second
	otc, err := h.deps.Consents.CreateOTC(r.Context(), tenantID, id, validity)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	httpresponse.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"code": otc.Code, "consentId": otc.ConsentID, "expiresAt": otc.ExpiresAt,
	})
}

type exchangeTokenRequest struct {
	Code            string          `json:"code"`
	ConsentID       string          `json:"consentId"`
	Provider        domain.Provider `json:"provider"`
	AccessToken     string          `json:"accessToken"`
	RefreshToken    *string         `json:"refreshToken"`
	ExpiresIn       *int            `json:"expiresIn"`
	Scopes          []string        `json:"scopes"`
	VendorCompanyID *string         `json:"vendorCompanyId"`
}

// exchangeToken implements POST /api/v1/consents/auth/token: validates the
// OTC, stores the vendor tokens, and transitions the consent to Accepted.
// Unlike every other consent route this one isn't tenant-scoped — the OTC
// itself is the proof of authority (spec.md §4.7).
func (h *handler) exchangeToken(w http.ResponseWriter, r *http.Request) {
	var req exchangeTokenRequest
	if err := httpresponse.DecodeJSON(r, &req); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	if req.Code == "" || req.ConsentID == "" || req.AccessToken == "" {
		httpresponse.WriteError(w, r, gwerrors.Validation("code, consentId and accessToken are required", nil))
		return
	}
	c, err := h.deps.Consents.ExchangeToken(r.Context(), consent.ExchangeInput{
		Code: req.Code, ConsentID: req.ConsentID, Provider: req.Provider,
		AccessToken: req.AccessToken, RefreshToken: req.RefreshToken,
		ExpiresIn: req.ExpiresIn, Scopes: req.Scopes, VendorCompanyID: req.VendorCompanyID,
	})
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	w.Header().Set("ETag", c.ETag)
	httpresponse.WriteJSON(w, http.StatusOK, c)
}

// uploadSIE implements POST /api/v1/consents/:id/sie-upload (multipart),
// reserved for consents on the synthetic sie-upload provider.
func (h *handler) uploadSIE(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if err := r.ParseMultipartForm(h.deps.MaxBodyBytes); err != nil {
		httpresponse.WriteError(w, r, gwerrors.Validation("invalid multipart body: "+err.Error(), nil))
		return
	}
	fiscalYear, err := strconv.Atoi(r.FormValue("fiscalYear"))
	if err != nil {
		httpresponse.WriteError(w, r, gwerrors.Validation("fiscalYear is required and must be an integer", nil))
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		httpresponse.WriteError(w, r, gwerrors.Validation("file is required", nil))
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		httpresponse.WriteError(w, r, gwerrors.Internal("read uploaded file", err))
		return
	}

	data, err := h.deps.Consents.UploadSIE(r.Context(), tenantID, id, fiscalYear, fileHeader.Filename, raw)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	httpresponse.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"uploads": []domain.SIEUpload{{
			ConnectionID: data.ConnectionID, FiscalYear: data.FiscalYear,
			SIEType: data.SIEType, Filename: fileHeader.Filename, UploadedAt: data.StoredAt,
		}},
	})
}

func (h *handler) listSIE(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	if _, err := h.deps.Consents.Get(r.Context(), tenantID, id); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	uploads, err := h.deps.DB.GetSIEUploads(r.Context(), id)
	if err != nil {
		httpresponse.WriteError(w, r, gwerrors.Internal("list sie uploads", err))
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": uploads})
}

// getSIE implements GET /api/v1/consents/:id/sie/:uploadId. SIEUpload has no
// opaque id of its own — a file is keyed by (connectionId, fiscalYear,
// sieType) — so :uploadId is the fiscal year, the only part of that key a
// caller can be expected to already know; SIE type 4 is assumed since that's
// the only generation every mapped vendor fetch produces (spec.md §4.11).
func (h *handler) getSIE(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	vars := mux.Vars(r)
	id := vars["id"]
	if _, err := h.deps.Consents.Get(r.Context(), tenantID, id); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	fiscalYear, err := strconv.Atoi(vars["uploadId"])
	if err != nil {
		httpresponse.WriteError(w, r, gwerrors.Validation("uploadId must be a fiscal year", nil))
		return
	}
	data, err := h.deps.DB.GetSIEData(r.Context(), id, fiscalYear, 4)
	if err != nil {
		if err == database.ErrNotFound {
			httpresponse.WriteError(w, r, gwerrors.NotFound("sie data", fmt.Sprintf("%s/%d", id, fiscalYear)))
			return
		}
		httpresponse.WriteError(w, r, gwerrors.Internal("load sie data", err))
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, data)
}
