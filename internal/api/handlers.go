package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/syncer"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
	"github.com/soffiafdz/palimpsest-sub000/internal/wikiservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *wikiservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *wikiservice.Service) *Handler {
	return &Handler{svc: svc}
}

// pagePath extracts the page path from the wildcard. Encoded slashes
// (manuscript%2Fscenes%2Fplatform.md) are accepted.
func pagePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Sync handles POST /api/sync.
//
//	@Summary		Validate, ingest and regenerate the wiki
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SyncRequest	false	"Run options"
//	@Success		200		{object}	syncer.Result
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	syncer.Result
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	mode, err := syncer.ParseMode(req.Mode)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	scope, err := wiki.ParseScope(req.Scope)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := h.svc.Sync(r.Context(), syncer.Options{Mode: mode, Scope: scope, Force: req.Force})
	if err != nil {
		writeRunError(w, "sync", err)
		return
	}
	if res.Failed() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Generate handles POST /api/generate.
//
//	@Summary		Regenerate the wiki from the store
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GenerateRequest	false	"Scope"
//	@Success		200		{object}	GenerateResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	scope, err := wiki.ParseScope(req.Scope)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	stats, err := h.svc.Generate(r.Context(), scope)
	if err != nil {
		writeRunError(w, "generate", err)
		return
	}
	writeJSON(w, http.StatusOK, NewGenerateResponse(stats))
}

func writeRunError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, apperr.ErrPendingEdits) {
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// Lint handles GET /api/lint and GET /api/lint/*.
//
//	@Summary		Validate editable pages
//	@Tags			lint
//	@Produce		json
//	@Param			path	path		string	false	"Page path; every editable page when omitted"
//	@Success		200		{object}	lint.Result
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lint/{path} [get]
func (h *Handler) Lint(w http.ResponseWriter, r *http.Request) {
	var paths []string
	if p := pagePath(r); p != "" {
		paths = append(paths, p)
	}
	res, err := h.svc.Lint(r.Context(), paths...)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("lint failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"diagnostics":   res.Diagnostics,
		"files_total":   res.FilesTotal,
		"error_count":   res.ErrorCount(),
		"warning_count": res.WarningCount(),
	})
}

// Pending handles GET /api/pending.
//
//	@Summary		Report edits not yet ingested
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	PendingResponse
//	@Security		BearerAuth
//	@Router			/pending [get]
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Pending(r.Context())
	if err != nil {
		slog.Error("read marker failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, PendingResponse{Pending: m != nil, Marker: m})
}

// GetPage handles GET /api/pages/*.
//
//	@Summary		Get a wiki page by path
//	@Tags			pages
//	@Produce		json
//	@Param			path	path		string	true	"Page path, with or without .md"
//	@Success		200		{object}	PageDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{path} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	page, err := h.svc.ReadPage(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("read page failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, page)
}
