package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-reveal/core"
)

const maxPerPage = 100

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	payload, err := h.initializer.InitializeRevealFromBody(r.Context(), h.readBody(w, r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

// readBody returns nil for unreadable or oversize bodies, which the gateway
// treats as an empty identifier set.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("init request body discarded",
			"error", err.Error(),
			"request_id", core.RequestIDFromContext(r.Context()),
		)
		return nil
	}
	return body
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAttemptFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.attempts.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if page.Items == nil {
		page.Items = []core.Attempt{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getAttempt(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, core.NewBadInputError("attempt id is required"))
		return
	}
	attempt, err := h.attempts.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func parseAttemptFilter(r *http.Request) (core.AttemptFilter, error) {
	query := r.URL.Query()
	filter := core.AttemptFilter{Page: 1, PerPage: 20}

	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, core.NewBadInputError("page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := strings.TrimSpace(query.Get("per_page")); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			return filter, core.NewBadInputError("per_page must be a positive integer")
		}
		if perPage > maxPerPage {
			perPage = maxPerPage
		}
		filter.PerPage = perPage
	}
	if raw := strings.TrimSpace(query.Get("outcome")); raw != "" {
		outcome := core.AttemptOutcome(raw)
		if !outcome.Valid() {
			return filter, core.NewBadInputError("unknown outcome " + strconv.Quote(raw))
		}
		filter.Outcome = outcome
	}
	for name, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, core.NewBadInputError(name + " must be an RFC3339 timestamp")
		}
		parsed = parsed.UTC()
		*target = &parsed
	}
	return filter, nil
}
