package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/gateway"
	"github.com/nordicledger/accounting-gateway/internal/httpresponse"
	"github.com/nordicledger/accounting-gateway/internal/middleware"
)

// registerDataPlaneRoutes wires spec.md §6's consent-scoped data-plane
// surface under /consents/{id}/..., behind ConsentMiddleware. It is mounted
// after the consent REST routes so literal segments like "otc" and
// "sie-upload" are matched by the more specific routes first.
func (h *handler) registerDataPlaneRoutes(api *mux.Router) {
	consentMW := middleware.NewConsentMiddleware(h.deps.Consents, h.deps.Vault, h.deps.Refreshers, h.deps.Mode, "id")

	dp := api.PathPrefix("/consents/{id}").Subrouter()
	dp.Use(consentMW.Handler)

	dp.HandleFunc("/{resourceType}", h.listResource).Methods(http.MethodGet)
	dp.HandleFunc("/{resourceType}", h.createResource).Methods(http.MethodPost)
	dp.HandleFunc("/{resourceType}/{resourceId}", h.getResource).Methods(http.MethodGet)
	dp.HandleFunc("/{parentType}/{pid}/{subType}", h.listSubResource).Methods(http.MethodGet)
	dp.HandleFunc("/{parentType}/{pid}/{subType}", h.createSubResource).Methods(http.MethodPost)
}

func (h *handler) listOptionsFromRequest(r *http.Request) domain.ListOptions {
	opts := domain.ListOptions{
		Page:     httpresponse.QueryInt(r, "page", 1),
		PageSize: httpresponse.QueryInt(r, "pageSize", 50),
	}
	if since := httpresponse.QueryString(r, "modifiedSince"); since != "" {
		opts.ModifiedSince = &since
	}
	if fy := httpresponse.QueryInt(r, "fiscalYear", 0); fy != 0 {
		opts.FiscalYear = &fy
	}
	return opts
}

func (h *handler) listResource(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.ConsentFromContext(r.Context())
	creds, _ := middleware.CredentialsFromContext(r.Context())
	rt := domain.ResourceType(mux.Vars(r)["resourceType"])

	resp, err := h.deps.Gateway.List(r.Context(), c.Provider, creds, rt, h.listOptionsFromRequest(r))
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	gateway.StripAll(resp.Data)
	httpresponse.WriteJSON(w, http.StatusOK, resp)
}

func (h *handler) getResource(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.ConsentFromContext(r.Context())
	creds, _ := middleware.CredentialsFromContext(r.Context())
	vars := mux.Vars(r)
	rt := domain.ResourceType(vars["resourceType"])

	dto, err := h.deps.Gateway.Get(r.Context(), c.Provider, creds, rt, vars["resourceId"])
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	if dto == nil {
		httpresponse.WriteError(w, r, gwerrors.NotFound(string(rt), vars["resourceId"]))
		return
	}
	dto.StripRaw()
	httpresponse.WriteJSON(w, http.StatusOK, dto)
}

func (h *handler) createResource(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.ConsentFromContext(r.Context())
	creds, _ := middleware.CredentialsFromContext(r.Context())
	rt := domain.ResourceType(mux.Vars(r)["resourceType"])

	var payload map[string]interface{}
	if err := httpresponse.DecodeJSON(r, &payload); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	dto, err := h.deps.Gateway.Create(r.Context(), c.Provider, creds, rt, payload)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	dto.StripRaw()
	httpresponse.WriteJSON(w, http.StatusCreated, dto)
}

// listSubResource implements GET /consents/:id/:parentType/:pid/:subType. The
// resource mapper registry (spec.md §4.5) is a flat per-vendor table with no
// parent/child nesting, so the vendor dispatch is identical to the top-level
// route on subType; when subType is "payments" the page is additionally
// filtered to the rows matching the parent invoice, since Payment is the only
// canonical DTO that carries a natural parent reference (InvoiceNumber).
func (h *handler) listSubResource(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.ConsentFromContext(r.Context())
	creds, _ := middleware.CredentialsFromContext(r.Context())
	vars := mux.Vars(r)
	subType := domain.ResourceType(vars["subType"])

	resp, err := h.deps.Gateway.List(r.Context(), c.Provider, creds, subType, h.listOptionsFromRequest(r))
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	if subType == domain.ResourcePayments {
		resp.Data = filterPaymentsByInvoice(resp.Data, vars["pid"])
		resp.TotalCount = len(resp.Data)
	}
	gateway.StripAll(resp.Data)
	httpresponse.WriteJSON(w, http.StatusOK, resp)
}

func filterPaymentsByInvoice(items []domain.DTO, invoiceNumber string) []domain.DTO {
	out := make([]domain.DTO, 0, len(items))
	for _, item := range items {
		if p, ok := item.(*domain.Payment); ok && p.InvoiceNumber == invoiceNumber {
			out = append(out, item)
		}
	}
	return out
}

func (h *handler) createSubResource(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.ConsentFromContext(r.Context())
	creds, _ := middleware.CredentialsFromContext(r.Context())
	vars := mux.Vars(r)
	subType := domain.ResourceType(vars["subType"])

	var payload map[string]interface{}
	if err := httpresponse.DecodeJSON(r, &payload); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	payload["invoiceNumber"] = vars["pid"]

	dto, err := h.deps.Gateway.Create(r.Context(), c.Provider, creds, subType, payload)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	dto.StripRaw()
	httpresponse.WriteJSON(w, http.StatusCreated, dto)
}
