package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/registry"
)

func employeesRouter(env *testEnv) *chi.Mux {
	h := NewEmployeesHandler(env.registry, env.gallery)
	r := chi.NewRouter()
	r.Get("/employees", h.List)
	r.Post("/employees", h.Create)
	r.Get("/employees/{id}", h.Get)
	r.Delete("/employees/{id}", h.Delete)
	return r
}

func TestEmployeesCreateAndGet(t *testing.T) {
	service := fakeFaceService(t, singleFaceBody([]float32{0.1}))
	defer service.Close()
	router := employeesRouter(newTestEnv(t, service.URL))

	body := bytes.NewBufferString(`{"emp_id":"E001","name":"Alice","department":"Engineering","position":"Developer"}`)
	req := httptest.NewRequest("POST", "/employees", body)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	var emp registry.Employee
	parseJSONResponse(t, recorder, &emp)
	if emp.ID != "E001" || emp.RegistrationDate == "" {
		t.Errorf("unexpected employee: %+v", emp)
	}

	req = httptest.NewRequest("GET", "/employees/E001", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	parseJSONResponse(t, recorder, &emp)
	if emp.Name != "Alice" {
		t.Errorf("expected Alice, got %+v", emp)
	}
}

func TestEmployeesCreateValidation(t *testing.T) {
	service := fakeFaceService(t, singleFaceBody([]float32{0.1}))
	defer service.Close()
	router := employeesRouter(newTestEnv(t, service.URL))

	// Missing required fields.
	req := httptest.NewRequest("POST", "/employees", bytes.NewBufferString(`{"name":"Alice"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)

	// Duplicate ID.
	create := `{"emp_id":"E001","name":"Alice","department":"Engineering","position":"Developer"}`
	req = httptest.NewRequest("POST", "/employees", bytes.NewBufferString(create))
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	req = httptest.NewRequest("POST", "/employees", bytes.NewBufferString(create))
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestEmployeesDelete(t *testing.T) {
	service := fakeFaceService(t, singleFaceBody([]float32{0.1}))
	defer service.Close()
	env := newTestEnv(t, service.URL)
	router := employeesRouter(env)

	if _, err := env.registry.Add("E001", "Alice", "Engineering", "Developer"); err != nil {
		t.Fatalf("seed employee: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/employees/E001", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	if _, ok := env.registry.Get("E001"); ok {
		t.Error("expected employee removed")
	}

	req = httptest.NewRequest("DELETE", "/employees/E001", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestEmployeesList(t *testing.T) {
	service := fakeFaceService(t, singleFaceBody([]float32{0.1}))
	defer service.Close()
	env := newTestEnv(t, service.URL)
	router := employeesRouter(env)

	env.registry.Add("E002", "Bob", "Sales", "Rep")
	env.registry.Add("E001", "Alice", "Engineering", "Developer")

	req := httptest.NewRequest("GET", "/employees", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	var list []registry.Employee
	parseJSONResponse(t, recorder, &list)
	if len(list) != 2 || list[0].ID != "E001" {
		t.Errorf("expected sorted list of 2, got %+v", list)
	}
}
