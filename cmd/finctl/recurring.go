package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"finanzas/internal/core"
	"finanzas/internal/services"
)

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Materialize recurring transactions",
}

type dueTemplate struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Dates       []core.Date `json:"dates"`
	Through     core.Date   `json:"through"`
}

var recurringDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Show what a recurring run would create, without writing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ref, err := today()
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		due := []dueTemplate{}
		for _, t := range snap.Transactions {
			if !t.IsActiveTemplate() {
				continue
			}
			dates, through, err := services.DueDates(t, ref)
			if err != nil {
				return fmt.Errorf("template %s: %w", t.ID, err)
			}
			if len(dates) == 0 {
				continue
			}
			due = append(due, dueTemplate{ID: t.ID, Description: t.Description, Dates: dates, Through: through})
		}
		return render(cmd.OutOrStdout(), due, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "TEMPLATE\tDESCRIPTION\tOCCURRENCES\tFIRST\tLAST")
			for _, d := range due {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.ID, d.Description, len(d.Dates), d.Dates[0], d.Dates[len(d.Dates)-1])
			}
		})
	},
}

var recurringRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Create every due occurrence up to today",
	Long:  "Create every due occurrence up to today. New rows stay pending until a sync worker exports them.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ref, err := today()
		if err != nil {
			return err
		}
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		logger := newLogger()
		ledger := services.NewLedgerService(repo, nil, nil, nil, logger)
		res, err := services.NewRecurringProcessor(ledger, logger).ProcessDue(cmd.Context(), ref)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "TEMPLATES\tCREATED\tFAILED")
			fmt.Fprintf(tw, "%d\t%d\t%d\n", res.Templates, res.Created, res.Failed)
		})
	},
}

func init() {
	recurringCmd.AddCommand(recurringDueCmd, recurringRunCmd)
	rootCmd.AddCommand(recurringCmd)
}
