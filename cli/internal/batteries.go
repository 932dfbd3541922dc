package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/frankenergie/models"
)

func newBatteriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batteries",
		Short: "List your smart batteries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			batteries, err := ctx.Client.SmartBatteries(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch smart batteries: %w", err)
			}
			return printResult(cmd, batteries, batteriesView{batteries})
		},
	}

	cmd.AddCommand(newBatterySessionsCommand())
	return cmd
}

type batteriesView struct{ b models.SmartBatteries }

func (v batteriesView) rows() [][]string {
	rows := make([][]string, 0, len(v.b))
	for _, b := range v.b {
		rows = append(rows, []string{
			b.ID,
			b.Brand,
			b.Provider,
			fmt.Sprintf("%.1f kWh", b.Capacity),
			fmt.Sprintf("%.1f / %.1f kW", b.MaxChargePower, b.MaxDischargePower),
		})
	}
	return rows
}

func (v batteriesView) table(w io.Writer) {
	fmt.Fprintln(w, "ID\tBRAND\tPROVIDER\tCAPACITY\tCHARGE/DISCHARGE")
	for _, row := range v.rows() {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}

func (v batteriesView) markdown() string {
	return "## Smart batteries\n\n" + mdTable([]string{"ID", "Brand", "Provider", "Capacity", "Charge / discharge"}, v.rows())
}

func newBatterySessionsCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "sessions DEVICE_ID",
		Short: "Show daily trading results of a smart battery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			end, err := resolveDate(ctx, to)
			if err != nil {
				return err
			}
			start := end.AddDate(0, 0, -7)
			if from != "" {
				if start, err = resolveDate(ctx, from); err != nil {
					return err
				}
			}
			if end.Before(start) {
				return fmt.Errorf("--from must not be after --to")
			}

			sessions, err := ctx.Client.SmartBatterySessions(cmd.Context(), args[0], start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch battery sessions: %w", err)
			}
			return printResult(cmd, sessions, sessionsView{sessions})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD (default: a week before --to)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD (default: today)")
	return cmd
}

type sessionsView struct{ s *models.SmartBatterySessions }

func (v sessionsView) rows() [][]string {
	rows := make([][]string, 0, len(v.s.Sessions))
	for _, s := range v.s.Sessions {
		rows = append(rows, []string{s.Date, euro(s.TradingResult), euro(s.CumulativeTradingResult)})
	}
	return rows
}

func (v sessionsView) table(w io.Writer) {
	fmt.Fprintln(w, "DATE\tRESULT\tCUMULATIVE")
	for _, row := range v.rows() {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	fmt.Fprintf(w, "period\t%s\t\n", euro(v.s.PeriodTradingResult))
	fmt.Fprintf(w, "total\t%s\t\n", euro(v.s.TotalTradingResult))
}

func (v sessionsView) markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Battery %s, %s to %s\n\n", v.s.DeviceID, v.s.PeriodStartDate, v.s.PeriodEndDate)
	b.WriteString(mdTable([]string{"Date", "Result", "Cumulative"}, v.rows()))
	fmt.Fprintf(&b, "\nPeriod result: **%s**, total: **%s**\n", euro(v.s.PeriodTradingResult), euro(v.s.TotalTradingResult))
	return b.String()
}
