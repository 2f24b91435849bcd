package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/facegate/internal/registry"
	"github.com/spf13/cobra"
)

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Manage the employee registry",
}

var employeeAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a new employee",
	Long: `Register a new employee in the registry.

Example:
  facegate employee add E042 --name "Jana Novakova" --department Engineering --position Developer`,
	Args: cobra.ExactArgs(1),
	RunE: runEmployeeAdd,
}

var employeeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered employees",
	RunE:  runEmployeeList,
}

var employeeRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an employee and their enrolled face",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmployeeRemove,
}

func init() {
	rootCmd.AddCommand(employeeCmd)
	employeeCmd.AddCommand(employeeAddCmd)
	employeeCmd.AddCommand(employeeListCmd)
	employeeCmd.AddCommand(employeeRemoveCmd)

	employeeAddCmd.Flags().String("name", "", "Full name (required)")
	employeeAddCmd.Flags().String("department", "", "Department (required)")
	employeeAddCmd.Flags().String("position", "", "Position (required)")
	_ = employeeAddCmd.MarkFlagRequired("name")
	_ = employeeAddCmd.MarkFlagRequired("department")
	_ = employeeAddCmd.MarkFlagRequired("position")
}

func runEmployeeAdd(cmd *cobra.Command, args []string) error {
	d, err := initDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.close()

	emp, err := d.registry.Add(
		args[0],
		mustGetString(cmd, "name"),
		mustGetString(cmd, "department"),
		mustGetString(cmd, "position"),
	)
	if err != nil {
		if errors.Is(err, registry.ErrExists) || errors.Is(err, registry.ErrNameTaken) {
			return fmt.Errorf("cannot register employee: %w", err)
		}
		return err
	}

	fmt.Printf("Registered %s (%s, %s / %s)\n", emp.Name, emp.ID, emp.Department, emp.Position)
	fmt.Printf("Enroll their face with: facegate gallery register %q <image.jpg>\n", emp.Name)
	return nil
}

func runEmployeeList(cmd *cobra.Command, args []string) error {
	d, err := initDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.close()

	employees := d.registry.List()
	if len(employees) == 0 {
		fmt.Println("No employees registered.")
		return nil
	}

	enrolled := make(map[string]bool)
	if _, err := d.gallery.Load(context.Background(), nil); err == nil {
		for _, name := range d.gallery.Names() {
			enrolled[name] = true
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tPOSITION\tREGISTERED\tFACE")
	fmt.Fprintln(w, "--\t----\t----------\t--------\t----------\t----")
	for _, emp := range employees {
		face := "no"
		if enrolled[emp.Name] {
			face = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			emp.ID, emp.Name, emp.Department, emp.Position, emp.RegistrationDate, face)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d employee(s)\n", len(employees))
	return nil
}

func runEmployeeRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	emp, err := d.registry.Remove(args[0])
	if err != nil {
		return err
	}

	if err := d.gallery.Remove(ctx, emp.Name); err != nil {
		fmt.Printf("Warning: failed to remove enrolled face for %s: %v\n", emp.Name, err)
	}

	fmt.Printf("Removed %s (%s)\n", emp.Name, emp.ID)
	return nil
}
