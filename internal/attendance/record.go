package attendance

import (
	"fmt"
	"strconv"
)

// Record is one attendance ledger row. CheckOut and TotalHours are nil while
// the session is open; the CSV cell stays empty until check-out.
type Record struct {
	EmployeeID string   `json:"employee_id"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Position   string   `json:"position"`
	Date       string   `json:"date"`
	CheckIn    string   `json:"check_in"`
	CheckOut   *string  `json:"check_out"`
	TotalHours *float64 `json:"total_hours"`
	Status     string   `json:"status"`
}

// Open reports whether the record has no check-out yet.
func (r *Record) Open() bool {
	return r.CheckOut == nil
}

// csvHeader is the fixed ledger column layout.
var csvHeader = []string{
	"Employee_ID", "Name", "Department", "Position",
	"Date", "Check_In", "Check_Out", "Total_Hours", "Status",
}

func (r *Record) toRow() []string {
	checkOut := ""
	if r.CheckOut != nil {
		checkOut = *r.CheckOut
	}
	totalHours := ""
	if r.TotalHours != nil {
		totalHours = strconv.FormatFloat(*r.TotalHours, 'f', 2, 64)
	}
	return []string{
		r.EmployeeID, r.Name, r.Department, r.Position,
		r.Date, r.CheckIn, checkOut, totalHours, r.Status,
	}
}

func recordFromRow(row []string) (Record, error) {
	if len(row) != len(csvHeader) {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}

	r := Record{
		EmployeeID: row[0],
		Name:       row[1],
		Department: row[2],
		Position:   row[3],
		Date:       row[4],
		CheckIn:    row[5],
		Status:     row[8],
	}

	if row[6] != "" {
		checkOut := row[6]
		r.CheckOut = &checkOut
	}
	if row[7] != "" {
		hours, err := strconv.ParseFloat(row[7], 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid total hours %q: %w", row[7], err)
		}
		r.TotalHours = &hours
	}

	return r, nil
}
