package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"fieldserve/internal/auth"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) listTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := d.Tasks.ListTasks(r.Context(), actor, r.URL.Query().Get("technicianId"), limit, offset)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (d Dependencies) getTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	task, err := d.Tasks.GetTask(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, task)
}

func (d Dependencies) authorDeliverables(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	var body struct {
		Deliverables string `json:"deliverables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	task, err := d.Tasks.AuthorDeliverables(r.Context(), actor, chi.URLParam(r, "id"), body.Deliverables)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, task)
}

func (d Dependencies) createTechnician(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	tech, err := d.Tasks.CreateTechnician(r.Context(), actor, body.Name)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusCreated, tech)
}

func (d Dependencies) activateTechnician(w http.ResponseWriter, r *http.Request) {
	d.setTechnicianActive(w, r, true)
}

func (d Dependencies) deactivateTechnician(w http.ResponseWriter, r *http.Request) {
	d.setTechnicianActive(w, r, false)
}

func (d Dependencies) setTechnicianActive(w http.ResponseWriter, r *http.Request, active bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	tech, err := d.Tasks.SetTechnicianActive(r.Context(), actor, chi.URLParam(r, "id"), active)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, tech)
}
