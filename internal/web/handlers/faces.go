package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/kozaktomas/facegate/internal/gallery"
	"github.com/kozaktomas/facegate/internal/registry"
)

// FacesHandler handles face enrollment and gallery endpoints.
type FacesHandler struct {
	gallery  *gallery.Gallery
	registry *registry.Registry
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(gal *gallery.Gallery, reg *registry.Registry) *FacesHandler {
	return &FacesHandler{gallery: gal, registry: reg}
}

// Register enrolls a face image for a registered employee. The multipart
// form must carry the image in "file" and the employee name in "name".
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, ok := h.registry.GetByName(name); !ok {
		respondError(w, http.StatusNotFound, "no employee registered under this name")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	if err := h.gallery.Register(r.Context(), imageData, name); err != nil {
		switch {
		case errors.Is(err, gallery.ErrNoFace):
			respondError(w, http.StatusUnprocessableEntity, "no face found in image")
		case errors.Is(err, gallery.ErrMultipleFaces):
			respondError(w, http.StatusUnprocessableEntity, "image must contain exactly one face")
		default:
			respondError(w, http.StatusInternalServerError, "failed to register face")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"registered": name})
}

// List returns the known identities currently in the gallery.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"count": h.gallery.Count(),
		"names": h.gallery.Names(),
	})
}

// Reload rescans the known-faces directory and rebuilds the gallery.
func (h *FacesHandler) Reload(w http.ResponseWriter, r *http.Request) {
	count, err := h.gallery.Load(r.Context(), nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reload gallery")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"loaded": count})
}
