package api

import (
	"net/http"
	"strconv"
	"strings"

	"fieldserve/internal/auth"
	"fieldserve/internal/authz"
	"fieldserve/internal/stats"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) getReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	doc, err := d.Reports.Compose(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}

	// format=text serves the printable rendering directly.
	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(doc.Render()))
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (d Dependencies) getStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	window := stats.ParseWindow(r.URL.Query().Get("window"))
	summary, err := d.Requests.Aggregate(r.Context(), actor, window)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

func (d Dependencies) listEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}
	if !authz.Can(actor, authz.OpExport, nil) && !authz.Can(actor, authz.OpAggregate, nil) {
		WriteError(w, http.StatusForbidden, "forbidden", "Permission denied", d.Log)
		return
	}

	// Visibility check on the record itself.
	id := chi.URLParam(r, "id")
	if _, err := d.Requests.GetRequest(r.Context(), actor, id); err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	entries, err := d.Journal.List(r.Context(), id, limit)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, "upstream_unavailable", err.Error(), d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": entries})
}
