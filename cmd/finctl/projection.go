package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"finanzas/internal/core"
	"finanzas/internal/projection"
)

var (
	flagAnchor    string
	flagFrequency string
	flagRadius    int
	flagDays      int
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Print the next occurrence of a recurring schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		anchor, err := core.ParseDate(flagAnchor)
		if err != nil {
			return fmt.Errorf("invalid --anchor: %w", err)
		}
		ref, err := today()
		if err != nil {
			return err
		}
		next, err := projection.NextOccurrence(anchor, core.Frequency(flagFrequency), ref)
		if err != nil {
			return err
		}
		out := struct {
			Anchor    core.Date      `json:"anchor"`
			Frequency core.Frequency `json:"frequency"`
			Today     core.Date      `json:"today"`
			Next      core.Date      `json:"next"`
			DaysUntil int            `json:"days_until"`
		}{anchor, core.Frequency(flagFrequency), ref, next, ref.DaysUntil(next)}
		return render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "NEXT\tDAYS")
			fmt.Fprintf(tw, "%s\t%d\n", out.Next, out.DaysUntil)
		})
	},
}

var windowCmd = &cobra.Command{
	Use:   "window <card-id>",
	Short: "Print the cumulative spend chart around today for a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := today()
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		card, err := findCard(snap, args[0])
		if err != nil {
			return err
		}
		points, err := projection.BuildWindow(card, snap.Transactions, ref, flagRadius)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), points, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "OFFSET\tDATE\tCYCLE START\tCUMULATIVE\t")
			for _, p := range points {
				marker := ""
				switch {
				case p.IsToday:
					marker = "today"
				case p.IsNewMonth:
					marker = "new month"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.Offset, p.Date, p.CycleStart, nullAmount(p.Cumulative), marker)
			}
		})
	},
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles <card-id>",
	Short: "Print the previous, current and next billing cycles of a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := today()
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		card, err := findCard(snap, args[0])
		if err != nil {
			return err
		}
		cycles, err := projection.Cycles(card, ref)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), cycles, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "START\tEND\tPAYMENT DUE\tCURRENT")
			for _, c := range cycles {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", c.Start, c.End, c.PaymentDueDate, c.IsCurrent)
			}
		})
	},
}

var spendCmd = &cobra.Command{
	Use:   "spend <card-id>",
	Short: "Print the spend of a card's current billing cycle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := today()
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		card, err := findCard(snap, args[0])
		if err != nil {
			return err
		}
		sum, err := projection.CycleSpend(card, snap.Transactions, ref)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), sum, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "CYCLE\tSPENT\tCLOSES IN\tPAYMENT IN\tUTILIZATION")
			util := "-"
			if sum.Utilization.Valid {
				util = sum.Utilization.Decimal.StringFixed(1) + "%"
			}
			fmt.Fprintf(tw, "%s..%s\t%s\t%d\t%d\t%s\n",
				sum.CycleStart, sum.CycleEnd, core.FormatAmount(sum.Spent), sum.DaysToClose, sum.DaysToPayment, util)
		})
	},
}

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List recurring payments due within the next days",
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
		payments, err := projection.Upcoming(snap.Transactions, ref, flagDays)
		if err != nil {
			return err
		}
		if payments == nil {
			payments = []projection.UpcomingPayment{}
		}
		return render(cmd.OutOrStdout(), payments, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "DUE\tDAYS\tAMOUNT\tDESCRIPTION\tFREQUENCY")
			for _, p := range payments {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", p.DueDate, p.DaysUntil,
					core.FormatAmount(p.Transaction.Amount), p.Transaction.Description, p.Transaction.RecurringFrequency)
			}
		})
	},
}

func init() {
	nextCmd.Flags().StringVar(&flagAnchor, "anchor", "", "Anchor date YYYY-MM-DD")
	nextCmd.Flags().StringVar(&flagFrequency, "frequency", string(core.Monthly), "weekly, biweekly, monthly or yearly")
	_ = nextCmd.MarkFlagRequired("anchor")

	windowCmd.Flags().IntVar(&flagRadius, "radius", projection.DefaultRadius, "Days shown on each side of today")
	upcomingCmd.Flags().IntVar(&flagDays, "days", 7, "Horizon in days")

	rootCmd.AddCommand(nextCmd, windowCmd, cyclesCmd, spendCmd, upcomingCmd)
}

func nullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return core.FormatAmount(d.Decimal)
}
