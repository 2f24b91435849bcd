// Package attendance implements the check-in/check-out state machine over
// per-day CSV ledgers. All decisions and their writes happen under one lock,
// so concurrent recognition hits cannot interleave between reading an
// employee's state and recording the transition.
package attendance

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/gallery"
	"github.com/kozaktomas/facegate/internal/registry"
)

// Result statuses. INFO marks a harmless duplicate, ERROR a rejected
// transition or a persistence failure.
const (
	StatusSuccess = "SUCCESS"
	StatusInfo    = "INFO"
	StatusError   = "ERROR"
)

// Result is the outcome of one attempted transition.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Mode selects the transition direction.
type Mode string

const (
	CheckIn  Mode = "CHECK_IN"
	CheckOut Mode = "CHECK_OUT"
)

// ParseMode normalizes user input like "check in" or "CHECK OUT".
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")) {
	case string(CheckIn):
		return CheckIn, nil
	case string(CheckOut):
		return CheckOut, nil
	}
	return "", fmt.Errorf("invalid mode: %s, must be CHECK_IN or CHECK_OUT", s)
}

// SessionStatus is the derived per-employee state for today. It is computed
// from the ledger on every query and never cached.
type SessionStatus struct {
	IsCheckedIn           bool    `json:"is_checked_in"`
	CheckInTime           string  `json:"check_in_time"`
	ElapsedMinutes        float64 `json:"elapsed_minutes"`
	HasIncompleteRecord   bool    `json:"has_incomplete_record"`
	AlreadyCheckedInToday bool    `json:"already_checked_in_today"`
	LastCheckOut          string  `json:"last_check_out"`
}

// PresentEmployee is one row of the today-present overview.
type PresentEmployee struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Duration   string `json:"duration"`
	Status     string `json:"status"`
}

// ActiveSession is an employee who is checked in and not yet checked out.
type ActiveSession struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	CheckIn    string `json:"check_in"`
	Duration   string `json:"duration"`
}

// EmployeeDirectory resolves recognized names and IDs to employee records.
type EmployeeDirectory interface {
	Get(id string) (registry.Employee, bool)
	GetByName(name string) (registry.Employee, bool)
}

const timeFormat = "15:04:05"

// Manager applies attendance transitions. The cooldown map throttles
// duplicate recognition hits from consecutive frames of the same event.
type Manager struct {
	ledger    *Ledger
	employees EmployeeDirectory

	cooldown    time.Duration
	minCheckout time.Duration

	mu            sync.Mutex
	lastProcessed map[string]time.Time
	now           func() time.Time
}

// NewManager creates an attendance manager.
func NewManager(ledger *Ledger, employees EmployeeDirectory, cooldown, minCheckout time.Duration) *Manager {
	return &Manager{
		ledger:        ledger,
		employees:     employees,
		cooldown:      cooldown,
		minCheckout:   minCheckout,
		lastProcessed: make(map[string]time.Time),
		now:           time.Now,
	}
}

// ProcessAttendance applies one transition attempt per recognized name.
// Unknown faces and names without a registered employee are skipped without
// producing a result.
func (m *Manager) ProcessAttendance(names []string, mode Mode) []Result {
	results := make([]Result, 0, len(names))
	for _, name := range names {
		if name == gallery.Unknown {
			continue
		}
		emp, ok := m.employees.GetByName(name)
		if !ok {
			continue
		}
		results = append(results, m.transition(emp, mode))
	}
	return results
}

// ManualAttendance applies a transition for an explicit employee ID. The
// same guards apply as for recognized faces, including the cooldown.
func (m *Manager) ManualAttendance(empID string, mode Mode) Result {
	emp, ok := m.employees.Get(empID)
	if !ok {
		return Result{Status: StatusError, Message: "Employee not found"}
	}
	return m.transition(emp, mode)
}

// transition runs the full decide-and-mutate cycle for one employee under
// the lock. Reading the day's state and writing the outcome must not be
// separable, otherwise two frames of the same person could both pass the
// guards.
func (m *Manager) transition(emp registry.Employee, mode Mode) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if last, ok := m.lastProcessed[emp.ID]; ok {
		elapsed := now.Sub(last)
		if elapsed < m.cooldown {
			remaining := int((m.cooldown - elapsed).Seconds())
			return Result{
				Status:  StatusError,
				Message: fmt.Sprintf("Please wait %d seconds before trying again", remaining),
			}
		}
	}

	date := now.Format(dateFormat)
	records, err := m.ledger.Read(date)
	if err != nil {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Failed to record attendance: %v", err),
		}
	}
	status := sessionStatus(records, emp.ID, now)

	var result Result
	switch mode {
	case CheckIn:
		result = m.checkIn(emp, records, status, now)
	case CheckOut:
		result = m.checkOut(emp, records, status, now)
	default:
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Invalid mode: %s, must be CHECK_IN or CHECK_OUT", mode),
		}
	}

	if result.Status == StatusSuccess {
		m.lastProcessed[emp.ID] = now
	}
	return result
}

// checkIn appends a new open record. Callers hold the lock.
func (m *Manager) checkIn(emp registry.Employee, records []Record, status SessionStatus, now time.Time) Result {
	if status.AlreadyCheckedInToday {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("%s has already completed attendance for today (Last check-out: %s)", emp.Name, status.LastCheckOut),
		}
	}
	if status.IsCheckedIn {
		return Result{
			Status:  StatusInfo,
			Message: fmt.Sprintf("%s already checked in at %s", emp.Name, status.CheckInTime),
		}
	}
	if status.HasIncompleteRecord {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("%s must check out from previous session first", emp.Name),
		}
	}

	date := now.Format(dateFormat)
	records = append(records, Record{
		EmployeeID: emp.ID,
		Name:       emp.Name,
		Department: emp.Department,
		Position:   emp.Position,
		Date:       date,
		CheckIn:    now.Format(timeFormat),
		Status:     "Present",
	})

	if err := m.ledger.Write(date, records); err != nil {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Failed to record attendance: %v", err),
		}
	}
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Successfully checked in %s", emp.Name),
	}
}

// checkOut closes the open record. Callers hold the lock.
func (m *Manager) checkOut(emp registry.Employee, records []Record, status SessionStatus, now time.Time) Result {
	if status.AlreadyCheckedInToday {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("%s has already completed attendance for today", emp.Name),
		}
	}
	if !status.IsCheckedIn {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("%s has not checked in today", emp.Name),
		}
	}

	minMinutes := int(m.minCheckout.Minutes())
	if status.ElapsedMinutes < m.minCheckout.Minutes() {
		remaining := minMinutes - int(status.ElapsedMinutes)
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Must wait %d more minutes before check-out (minimum %d minutes required)", remaining, minMinutes),
		}
	}

	date := now.Format(dateFormat)
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].EmployeeID != emp.ID || !records[i].Open() {
			continue
		}
		checkOut := now.Format(timeFormat)
		totalHours := round2(status.ElapsedMinutes / 60)
		records[i].CheckOut = &checkOut
		records[i].TotalHours = &totalHours
		break
	}

	if err := m.ledger.Write(date, records); err != nil {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Failed to record attendance: %v", err),
		}
	}
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Successfully checked out %s after %d minutes", emp.Name, int(status.ElapsedMinutes)),
	}
}

// CurrentStatus derives an employee's session state from today's ledger.
// The day's file is created eagerly so later exports always find it.
func (m *Manager) CurrentStatus(empID string) (SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	date := now.Format(dateFormat)
	if err := m.ledger.Ensure(date); err != nil {
		return SessionStatus{}, err
	}

	records, err := m.ledger.Read(date)
	if err != nil {
		return SessionStatus{}, err
	}
	return sessionStatus(records, empID, now), nil
}

// TodayPresent lists everyone with a record today, open or closed.
func (m *Manager) TodayPresent() ([]PresentEmployee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	records, err := m.ledger.Read(now.Format(dateFormat))
	if err != nil {
		return nil, err
	}

	present := make([]PresentEmployee, 0, len(records))
	for i := range records {
		r := &records[i]
		row := PresentEmployee{
			EmployeeID: r.EmployeeID,
			Name:       r.Name,
			Department: r.Department,
			CheckIn:    r.CheckIn,
			Status:     "Checked In",
		}
		if r.Open() {
			row.Duration = fmt.Sprintf("%d minutes", int(elapsedMinutes(r.Date, r.CheckIn, now)))
		} else {
			row.CheckOut = *r.CheckOut
			row.Status = "Checked Out"
			row.Duration = fmt.Sprintf("%.1f hours", *r.TotalHours)
		}
		present = append(present, row)
	}
	return present, nil
}

// ActiveSessions lists employees who are checked in right now.
func (m *Manager) ActiveSessions() ([]ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	records, err := m.ledger.Read(now.Format(dateFormat))
	if err != nil {
		return nil, err
	}

	var active []ActiveSession
	for i := range records {
		r := &records[i]
		if !r.Open() {
			continue
		}
		active = append(active, ActiveSession{
			EmployeeID: r.EmployeeID,
			Name:       r.Name,
			Department: r.Department,
			CheckIn:    r.CheckIn,
			Duration:   fmt.Sprintf("%d minutes", int(elapsedMinutes(r.Date, r.CheckIn, now))),
		})
	}
	return active, nil
}

// LedgerByDate returns one day's records.
func (m *Manager) LedgerByDate(date string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Read(date)
}

// TodayLedger returns today's records.
func (m *Manager) TodayLedger() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Read(m.now().Format(dateFormat))
}

// EmployeeReport returns an employee's records, optionally restricted to an
// inclusive date range. The range applies only when both bounds are set.
func (m *Manager) EmployeeReport(empID, from, to string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.ledger.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, r := range all {
		if r.EmployeeID != empID {
			continue
		}
		if !inRange(r.Date, from, to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// DepartmentReport returns a department's records, optionally restricted to
// an inclusive date range.
func (m *Manager) DepartmentReport(department, from, to string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.ledger.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, r := range all {
		if r.Department != department {
			continue
		}
		if !inRange(r.Date, from, to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteLedger removes one day's ledger file. Stale cooldown entries for
// that day are left alone; they expire on their own.
func (m *Manager) DeleteLedger(date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Delete(date)
}

// DeleteTodayLedger removes today's ledger file.
func (m *Manager) DeleteTodayLedger() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Delete(m.now().Format(dateFormat))
}

// sessionStatus derives the state machine position from a day's records.
// A closed record wins over everything: the day is complete and further
// transitions are blocked.
func sessionStatus(records []Record, empID string, now time.Time) SessionStatus {
	var lastClosed *Record
	var lastOpen *Record
	for i := range records {
		if records[i].EmployeeID != empID {
			continue
		}
		if records[i].Open() {
			lastOpen = &records[i]
		} else {
			lastClosed = &records[i]
		}
	}

	if lastClosed != nil {
		return SessionStatus{
			AlreadyCheckedInToday: true,
			LastCheckOut:          *lastClosed.CheckOut,
		}
	}

	if lastOpen != nil {
		return SessionStatus{
			IsCheckedIn:         true,
			CheckInTime:         lastOpen.CheckIn,
			ElapsedMinutes:      elapsedMinutes(lastOpen.Date, lastOpen.CheckIn, now),
			HasIncompleteRecord: true,
		}
	}

	return SessionStatus{}
}

// elapsedMinutes measures wall-clock minutes since a recorded timestamp.
func elapsedMinutes(date, checkIn string, now time.Time) float64 {
	t, err := time.ParseInLocation(dateFormat+" "+timeFormat, date+" "+checkIn, time.Local)
	if err != nil {
		return 0
	}
	return now.Sub(t).Minutes()
}

func inRange(date, from, to string) bool {
	if from == "" || to == "" {
		return true
	}
	return date >= from && date <= to
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
