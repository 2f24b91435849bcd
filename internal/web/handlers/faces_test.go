package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFacesRegister(t *testing.T) {
	service := fakeFaceService(t, singleFaceBody([]float32{0.1, 0.2}))
	defer service.Close()
	env := newTestEnv(t, service.URL)
	h := NewFacesHandler(env.gallery, env.registry)

	env.registry.Add("E001", "Alice", "Engineering", "Developer")

	body, contentType := multipartImage(t, testJPEG(t), map[string]string{"name": "Alice"})
	req := httptest.NewRequest("POST", "/api/v1/faces/register", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()

	h.Register(recorder, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	if env.gallery.Count() != 1 {
		t.Errorf("expected 1 gallery entry, got %d", env.gallery.Count())
	}
}

func TestFacesRegisterUnknownEmployee(t *testing.T) {
	service := fakeFaceService(t, singleFaceBody([]float32{0.1}))
	defer service.Close()
	env := newTestEnv(t, service.URL)
	h := NewFacesHandler(env.gallery, env.registry)

	body, contentType := multipartImage(t, testJPEG(t), map[string]string{"name": "Nobody"})
	req := httptest.NewRequest("POST", "/api/v1/faces/register", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()

	h.Register(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestFacesRegisterRejectsMultipleFaces(t *testing.T) {
	service := fakeFaceService(t, `{"faces_count":2,"faces":[{"embedding":[0.1]},{"embedding":[0.2]}],"model":"test"}`)
	defer service.Close()
	env := newTestEnv(t, service.URL)
	h := NewFacesHandler(env.gallery, env.registry)

	env.registry.Add("E001", "Alice", "Engineering", "Developer")

	body, contentType := multipartImage(t, testJPEG(t), map[string]string{"name": "Alice"})
	req := httptest.NewRequest("POST", "/api/v1/faces/register", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()

	h.Register(recorder, req)
	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)

	if env.gallery.Count() != 0 {
		t.Errorf("expected gallery unchanged, got %d entries", env.gallery.Count())
	}
}

func TestGalleryListAndReload(t *testing.T) {
	service := fakeFaceService(t, singleFaceBody([]float32{0.1}))
	defer service.Close()
	env := newTestEnv(t, service.URL)
	h := NewFacesHandler(env.gallery, env.registry)

	env.registry.Add("E001", "Alice", "Engineering", "Developer")

	body, contentType := multipartImage(t, testJPEG(t), map[string]string{"name": "Alice"})
	req := httptest.NewRequest("POST", "/api/v1/faces/register", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	h.Register(recorder, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	req = httptest.NewRequest("GET", "/api/v1/gallery", nil)
	recorder = httptest.NewRecorder()
	h.List(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	var listing struct {
		Count int      `json:"count"`
		Names []string `json:"names"`
	}
	parseJSONResponse(t, recorder, &listing)
	if listing.Count != 1 || listing.Names[0] != "Alice" {
		t.Errorf("unexpected listing: %+v", listing)
	}

	// Reload rescans the directory where Register persisted the image.
	req = httptest.NewRequest("POST", "/api/v1/gallery/reload", nil)
	recorder = httptest.NewRecorder()
	h.Reload(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	var reload map[string]int
	parseJSONResponse(t, recorder, &reload)
	if reload["loaded"] != 1 {
		t.Errorf("expected 1 loaded, got %d", reload["loaded"])
	}
}
