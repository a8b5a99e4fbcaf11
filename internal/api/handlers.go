package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListProviders handles GET /api/providers.
//
//	@Summary		List providers with entry counts
//	@Tags			providers
//	@Produce		json
//	@Success		200	{object}	ProviderListResponse
//	@Security		BearerAuth
//	@Router			/providers [get]
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.svc.ListProviders()
	if err != nil {
		slog.Error("list providers failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": providers,
		"total":     len(providers),
	})
}

// GetProvider handles GET /api/providers/{provider}.
//
//	@Summary		List every API version under a provider
//	@Tags			providers
//	@Produce		json
//	@Param			provider	path		string	true	"Provider name"
//	@Success		200			{object}	ProviderDetailResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/providers/{provider} [get]
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	rows, err := h.svc.GetProvider(name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get provider failed", slog.String("provider", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": name,
		"apis":     rows,
	})
}

// GetEntry handles GET /api/providers/{provider}/{service}/{version}.
// Provider-level APIs without a service use "-" as the service segment.
//
//	@Summary		Get one API version entry
//	@Tags			providers
//	@Produce		json
//	@Param			provider	path		string	true	"Provider name"
//	@Param			service		path		string	true	"Service name, or - when absent"
//	@Param			version		path		string	true	"Version key"
//	@Success		200			{object}	EntryResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/providers/{provider}/{service}/{version} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	provider, service, version := entryParams(r)
	row, err := h.svc.GetEntry(provider, service, version)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get entry failed", slog.String("provider", provider), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// GetDocument handles GET /api/providers/{provider}/{service}/{version}/document
// and streams the raw description document.
//
//	@Summary		Download the raw API description document
//	@Tags			providers
//	@Produce		application/yaml
//	@Param			provider	path	string	true	"Provider name"
//	@Param			service		path	string	true	"Service name, or - when absent"
//	@Param			version		path	string	true	"Version key"
//	@Success		200			{string}	string
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/providers/{provider}/{service}/{version}/document [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	provider, service, version := entryParams(r)
	data, mediaType, err := h.svc.GetDocument(provider, service, version)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get document failed", slog.String("provider", provider), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("Content-Type", mediaType+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across indexed APIs
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Status handles GET /api/status.
//
//	@Summary		Aggregate registry counts
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status()
	if err != nil {
		slog.Error("status failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// entryParams pulls the entry coordinates out of the route. The "-" service
// placeholder maps back to the empty service key.
func entryParams(r *http.Request) (provider, service, version string) {
	provider = chi.URLParam(r, "provider")
	service = chi.URLParam(r, "service")
	version = chi.URLParam(r, "version")
	if service == "-" {
		service = ""
	}
	return provider, service, version
}
