package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dreamvault/internal/entryservice"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/scrape"
)

// Handler holds API route handlers.
type Handler struct {
	svc *entryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *entryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// documentPath extracts the document path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. Journals%2F2025.md).
func documentPath(r *http.Request) string {
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

func entryQuery(r *http.Request) entryservice.EntryQuery {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return entryservice.EntryQuery{
		From:     q.Get("from"),
		To:       q.Get("to"),
		Document: q.Get("document"),
		Limit:    limit,
		Offset:   offset,
	}
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List dream entries ordered by date
//	@Tags			entries
//	@Produce		json
//	@Param			from		query		string	false	"Earliest date (YYYY-MM-DD)"
//	@Param			to			query		string	false	"Latest date (YYYY-MM-DD)"
//	@Param			document	query		string	false	"Only entries of this document"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	EntryListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, total, err := h.svc.ListEntries(r.Context(), entryQuery(r))
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: entries, Total: total})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across entry titles and content
//	@Tags			entries
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
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Metrics handles GET /api/metrics.
//
//	@Summary		Summary statistics per metric
//	@Tags			metrics
//	@Produce		json
//	@Param			from	query		string	false	"Earliest date (YYYY-MM-DD)"
//	@Param			to		query		string	false	"Latest date (YYYY-MM-DD)"
//	@Success		200		{object}	MetricSummaryResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/metrics [get]
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.MetricSummary(r.Context(), entryQuery(r))
	if err != nil {
		writeError(w, "metric summary", err)
		return
	}
	writeJSON(w, http.StatusOK, MetricSummaryResponse{Metrics: summary})
}

// Conflicts handles GET /api/conflicts.
//
//	@Summary		List front-matter / callout metric conflicts
//	@Tags			metrics
//	@Produce		json
//	@Param			document	query		string	false	"Only conflicts of this document"
//	@Param			severity	query		string	false	"Severity"	Enums(low, medium, high)
//	@Success		200			{object}	ConflictListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/conflicts [get]
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	conflicts, err := h.svc.Conflicts(r.Context(), q.Get("document"), models.Severity(q.Get("severity")))
	if err != nil {
		writeError(w, "conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, ConflictListResponse{Conflicts: conflicts})
}

// Stats handles GET /api/stats.
//
//	@Summary		Index counts
//	@Tags			metrics
//	@Produce		json
//	@Success		200	{object}	index.Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Scrape handles POST /api/scrape.
//
//	@Summary		Scrape the vault and update the index
//	@Tags			scrape
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ScrapeRequest	false	"Selection overriding the configured one"
//	@Success		200		{object}	entryservice.ScrapeReport
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scrape [post]
func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	var sel *scrape.Selection
	if len(strings.TrimSpace(string(body))) > 0 {
		var req ScrapeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
		s := req.Selection()
		sel = &s
	}

	report, err := h.svc.Scrape(r.Context(), sel)
	if err != nil {
		writeError(w, "scrape", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// WriteBack handles POST /api/frontmatter/*.
//
//	@Summary		Write reconciled metrics into a document's front matter
//	@Tags			metrics
//	@Produce		json
//	@Param			path		path		string	true	"Document path"
//	@Param			If-Match	header		string	false	"SHA-256 checksum for optimistic concurrency"
//	@Success		200			{object}	entryservice.WriteBackResult
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/frontmatter/{path} [post]
func (h *Handler) WriteBack(w http.ResponseWriter, r *http.Request) {
	path := documentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	res, err := h.svc.WriteBack(r.Context(), path, ifMatch)
	if err != nil {
		writeError(w, "write-back", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
