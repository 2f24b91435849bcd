package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	employeesHandler := handlers.NewEmployeesHandler(s.deps.Registry, s.deps.Gallery)
	facesHandler := handlers.NewFacesHandler(s.deps.Gallery, s.deps.Registry)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Manager)
	framesHandler := handlers.NewFramesHandler(s.deps.Pipeline, s.deps.Liveness, s.deps.Manager)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Frames and liveness
		r.Post("/frames/process", framesHandler.Process)
		r.Post("/frames/annotated", framesHandler.Annotated)
		r.Post("/liveness/check", framesHandler.CheckLiveness)
		r.Post("/liveness/reset", framesHandler.ResetLiveness)

		// Attendance
		r.Post("/attendance/process", attendanceHandler.Process)
		r.Post("/attendance/manual", attendanceHandler.Manual)
		r.Get("/attendance/status/{empID}", attendanceHandler.Status)
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/attendance/active", attendanceHandler.Active)
		r.Get("/attendance/report", attendanceHandler.Report)
		r.Get("/attendance/ledger/today", attendanceHandler.TodayLedger)
		r.Get("/attendance/ledger/{date}", attendanceHandler.Ledger)
		r.Delete("/attendance/ledger/today", attendanceHandler.DeleteTodayLedger)
		r.Delete("/attendance/ledger/{date}", attendanceHandler.DeleteLedger)

		// Face gallery
		r.Post("/faces/register", facesHandler.Register)
		r.Get("/gallery", facesHandler.List)
		r.Post("/gallery/reload", facesHandler.Reload)

		// Employee directory
		r.Get("/employees", employeesHandler.List)
		r.Post("/employees", employeesHandler.Create)
		r.Get("/employees/{id}", employeesHandler.Get)
		r.Delete("/employees/{id}", employeesHandler.Delete)
	})

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Facegate</title></head>
<body>
    <h1>Facegate</h1>
    <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
</body>
</html>`))
	})
}
