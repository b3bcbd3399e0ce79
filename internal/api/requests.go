package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"fieldserve/internal/auth"
	"fieldserve/internal/model"
	"fieldserve/internal/schema"
	"fieldserve/internal/service"
	"fieldserve/internal/validate"

	"github.com/go-chi/chi/v5"
)

type CreateRequestBody struct {
	validate.Payload
	Images []service.ImageInput `json:"images,omitempty"`
}

func (d Dependencies) createRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	// Shape pre-check: reject structurally malformed bodies before the
	// field rules run.
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if d.Shapes != nil {
		if err := d.Shapes.Validate(r.Context(), schema.RequestBody, raw); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), d.Log)
			return
		}
	}

	var body CreateRequestBody
	buf, _ := json.Marshal(raw)
	if err := json.Unmarshal(buf, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	result, err := d.Requests.CreateRequest(r.Context(), actor, service.CreateRequestInput{
		Payload: body.Payload,
		Images:  body.Images,
	})
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}

	WriteJSON(w, http.StatusCreated, result)
}

func (d Dependencies) getRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	req, err := d.Requests.GetRequest(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

func (d Dependencies) listRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := d.Requests.ListRequests(r.Context(), actor, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (d Dependencies) updateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	var input service.UpdateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	req, err := d.Requests.UpdateRequest(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

type TransitionBody struct {
	Target string `json:"target"`
	Force  bool   `json:"force,omitempty"`
}

func (d Dependencies) transitionRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	var body TransitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	req, err := d.Requests.Transition(r.Context(), actor, chi.URLParam(r, "id"), model.Status(body.Target), body.Force)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

func (d Dependencies) assignRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	var input service.AssignInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	task, err := d.Requests.Assign(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusCreated, task)
}

func (d Dependencies) attachImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	var input service.ImageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	req, err := d.Requests.AttachImage(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	WriteJSON(w, http.StatusCreated, req)
}

func (d Dependencies) removeImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	err := d.Requests.RemoveImage(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "imageId"))
	if err != nil {
		WriteServiceError(w, err, d.Log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
