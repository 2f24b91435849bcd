package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/gallery"
	"github.com/kozaktomas/facegate/internal/registry"
)

// EmployeesHandler handles employee directory endpoints.
type EmployeesHandler struct {
	registry *registry.Registry
	gallery  *gallery.Gallery
}

// NewEmployeesHandler creates a new employees handler.
func NewEmployeesHandler(reg *registry.Registry, gal *gallery.Gallery) *EmployeesHandler {
	return &EmployeesHandler{registry: reg, gallery: gal}
}

// List returns all registered employees.
func (h *EmployeesHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.List())
}

// Get returns a single employee by ID.
func (h *EmployeesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, ok := h.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "employee not found")
		return
	}
	respondJSON(w, http.StatusOK, emp)
}

// EmployeeCreateRequest represents the request body for registering an employee.
type EmployeeCreateRequest struct {
	ID         string `json:"emp_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

// Create registers a new employee.
func (h *EmployeesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req EmployeeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ID == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "emp_id and name are required")
		return
	}

	emp, err := h.registry.Add(req.ID, req.Name, req.Department, req.Position)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrExists):
			respondError(w, http.StatusConflict, "employee ID already registered")
		case errors.Is(err, registry.ErrNameTaken):
			respondError(w, http.StatusConflict, "employee name already in use")
		default:
			respondError(w, http.StatusInternalServerError, "failed to register employee")
		}
		return
	}
	respondJSON(w, http.StatusCreated, emp)
}

// Delete removes an employee and the face registered under their name.
func (h *EmployeesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, err := h.registry.Remove(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respondError(w, http.StatusNotFound, "employee not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to remove employee")
		return
	}

	// Removing a face that was never enrolled is a no-op.
	if err := h.gallery.Remove(r.Context(), emp.Name); err != nil {
		log.Printf("failed to remove face for %s: %v", sanitizeForLog(emp.Name), err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"removed": emp.ID})
}
