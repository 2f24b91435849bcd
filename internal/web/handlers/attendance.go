package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/attendance"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// AttendanceHandler handles attendance state machine endpoints.
type AttendanceHandler struct {
	manager *attendance.Manager
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(manager *attendance.Manager) *AttendanceHandler {
	return &AttendanceHandler{manager: manager}
}

// ProcessRequest represents a batch of recognized names to process.
type ProcessRequest struct {
	Names []string `json:"names"`
	Mode  string   `json:"mode"`
}

// Process applies a transition attempt for every recognized name.
func (h *AttendanceHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	mode, err := attendance.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.manager.ProcessAttendance(req.Names, mode))
}

// ManualRequest represents a manual transition for one employee.
type ManualRequest struct {
	EmployeeID string `json:"emp_id"`
	Action     string `json:"action"`
}

// Manual applies a transition for an explicit employee ID.
func (h *AttendanceHandler) Manual(w http.ResponseWriter, r *http.Request) {
	var req ManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	mode, err := attendance.ParseMode(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.manager.ManualAttendance(req.EmployeeID, mode))
}

// Status returns the derived session state for one employee.
func (h *AttendanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	empID := chi.URLParam(r, "empID")

	status, err := h.manager.CurrentStatus(empID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read attendance state")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Today lists everyone with an attendance record today.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	present, err := h.manager.TodayPresent()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read attendance state")
		return
	}
	respondJSON(w, http.StatusOK, present)
}

// Active lists currently open sessions.
func (h *AttendanceHandler) Active(w http.ResponseWriter, r *http.Request) {
	active, err := h.manager.ActiveSessions()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read attendance state")
		return
	}
	respondJSON(w, http.StatusOK, active)
}

// Report filters records by employee or department with an optional
// inclusive date range. Exactly one of emp_id and department must be set.
func (h *AttendanceHandler) Report(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	empID := query.Get("emp_id")
	department := query.Get("department")
	from := query.Get("from")
	to := query.Get("to")

	if (empID == "") == (department == "") {
		respondError(w, http.StatusBadRequest, "exactly one of emp_id and department is required")
		return
	}

	var records []attendance.Record
	var err error
	if empID != "" {
		records, err = h.manager.EmployeeReport(empID, from, to)
	} else {
		records, err = h.manager.DepartmentReport(department, from, to)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read attendance records")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

// Ledger returns one day's records.
func (h *AttendanceHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !datePattern.MatchString(date) {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.manager.LedgerByDate(date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

// TodayLedger returns today's records.
func (h *AttendanceHandler) TodayLedger(w http.ResponseWriter, r *http.Request) {
	records, err := h.manager.TodayLedger()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

// DeleteLedger removes one day's ledger file.
func (h *AttendanceHandler) DeleteLedger(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !datePattern.MatchString(date) {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	if err := h.manager.DeleteLedger(date); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete ledger")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": date})
}

// DeleteTodayLedger removes today's ledger file.
func (h *AttendanceHandler) DeleteTodayLedger(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteTodayLedger(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete ledger")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": "today"})
}
