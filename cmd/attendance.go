package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/facegate/internal/attendance"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Record and inspect attendance",
}

var attendanceCheckinCmd = &cobra.Command{
	Use:   "checkin <employee-id>",
	Short: "Record a manual check-in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManualAttendance(args[0], attendance.CheckIn)
	},
}

var attendanceCheckoutCmd = &cobra.Command{
	Use:   "checkout <employee-id>",
	Short: "Record a manual check-out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManualAttendance(args[0], attendance.CheckOut)
	},
}

var attendanceStatusCmd = &cobra.Command{
	Use:   "status <employee-id>",
	Short: "Show an employee's session status for today",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceStatus,
}

var attendanceTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List everyone present today",
	RunE:  runAttendanceToday,
}

var attendanceActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "List currently open sessions",
	RunE:  runAttendanceActive,
}

var attendanceReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report attendance for an employee or a department",
	Long: `Report attendance records for one employee or one department.

Examples:
  facegate attendance report --emp E042
  facegate attendance report --department Engineering --from 2026-08-01 --to 2026-08-31`,
	RunE: runAttendanceReport,
}

var attendancePurgeCmd = &cobra.Command{
	Use:   "purge [date]",
	Short: "Delete a day's attendance ledger (defaults to today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAttendancePurge,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceCheckinCmd)
	attendanceCmd.AddCommand(attendanceCheckoutCmd)
	attendanceCmd.AddCommand(attendanceStatusCmd)
	attendanceCmd.AddCommand(attendanceTodayCmd)
	attendanceCmd.AddCommand(attendanceActiveCmd)
	attendanceCmd.AddCommand(attendanceReportCmd)
	attendanceCmd.AddCommand(attendancePurgeCmd)

	attendanceReportCmd.Flags().String("emp", "", "Employee ID")
	attendanceReportCmd.Flags().String("department", "", "Department name")
	attendanceReportCmd.Flags().String("from", "", "Start date (YYYY-MM-DD, inclusive)")
	attendanceReportCmd.Flags().String("to", "", "End date (YYYY-MM-DD, inclusive)")
}

func runManualAttendance(empID string, mode attendance.Mode) error {
	d, err := initDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.close()

	result := d.manager.ManualAttendance(empID, mode)
	if result.Status == attendance.StatusError {
		return errors.New(result.Message)
	}
	fmt.Printf("[%s] %s\n", result.Status, result.Message)
	return nil
}

func runAttendanceStatus(cmd *cobra.Command, args []string) error {
	d, err := initDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.close()

	status, err := d.manager.CurrentStatus(args[0])
	if err != nil {
		return err
	}

	switch {
	case status.AlreadyCheckedInToday:
		fmt.Printf("Completed for today (last check-out: %s)\n", status.LastCheckOut)
	case status.IsCheckedIn:
		fmt.Printf("Checked in at %s (%.0f minutes ago)\n", status.CheckInTime, status.ElapsedMinutes)
	default:
		fmt.Println("Not checked in today")
	}
	return nil
}

func runAttendanceToday(cmd *cobra.Command, args []string) error {
	d, err := initDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.close()

	present, err := d.manager.TodayPresent()
	if err != nil {
		return err
	}
	if len(present) == 0 {
		fmt.Println("No attendance recorded today.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tCHECK-IN\tCHECK-OUT\tDURATION\tSTATUS")
	fmt.Fprintln(w, "--\t----\t----------\t--------\t---------\t--------\t------")
	for _, p := range present {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.EmployeeID, p.Name, p.Department, p.CheckIn, p.CheckOut, p.Duration, p.Status)
	}
	w.Flush()
	return nil
}

func runAttendanceActive(cmd *cobra.Command, args []string) error {
	d, err := initDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.close()

	sessions, err := d.manager.ActiveSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No open sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tCHECK-IN\tDURATION")
	fmt.Fprintln(w, "--\t----\t----------\t--------\t--------")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.EmployeeID, s.Name, s.Department, s.CheckIn, s.Duration)
	}
	w.Flush()
	return nil
}

func runAttendanceReport(cmd *cobra.Command, args []string) error {
	empID := mustGetString(cmd, "emp")
	department := mustGetString(cmd, "department")
	from := mustGetString(cmd, "from")
	to := mustGetString(cmd, "to")

	if (empID == "") == (department == "") {
		return errors.New("provide exactly one of --emp or --department")
	}

	d, err := initDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.close()

	var records []attendance.Record
	if empID != "" {
		records, err = d.manager.EmployeeReport(empID, from, to)
	} else {
		records, err = d.manager.DepartmentReport(department, from, to)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	printRecords(records)
	return nil
}

func printRecords(records []attendance.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tID\tNAME\tCHECK-IN\tCHECK-OUT\tHOURS\tSTATUS")
	fmt.Fprintln(w, "----\t--\t----\t--------\t---------\t-----\t------")
	for _, r := range records {
		checkOut, hours := "", ""
		if r.CheckOut != nil {
			checkOut = *r.CheckOut
		}
		if r.TotalHours != nil {
			hours = fmt.Sprintf("%.2f", *r.TotalHours)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Date, r.EmployeeID, r.Name, r.CheckIn, checkOut, hours, r.Status)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d record(s)\n", len(records))
}

func runAttendancePurge(cmd *cobra.Command, args []string) error {
	d, err := initDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.close()

	if len(args) == 1 {
		if err := d.manager.DeleteLedger(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted ledger for %s\n", args[0])
		return nil
	}

	if err := d.manager.DeleteTodayLedger(); err != nil {
		return err
	}
	fmt.Println("Deleted today's ledger")
	return nil
}
