package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/frankenergie/models"
)

func newSummaryCommand() *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show this month's costs so far",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			ref, err := resolveSite(cmd, site)
			if err != nil {
				return err
			}

			summary, err := ctx.Client.MonthSummary(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("failed to fetch month summary: %w", err)
			}
			return printResult(cmd, summary, summaryView{summary})
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "Delivery site reference (default: your first site)")
	return cmd
}

type summaryView struct{ s *models.MonthSummary }

func (v summaryView) table(w io.Writer) {
	fmt.Fprintf(w, "Last meter reading:\t%s\n", v.s.LastMeterReadingDate)
	fmt.Fprintf(w, "Actual costs:\t%s\n", euro(v.s.ActualCostsUntilLastMeterReadingDate))
	fmt.Fprintf(w, "Expected costs:\t%s\n", euro(v.s.ExpectedCostsUntilLastMeterReadingDate))
	fmt.Fprintf(w, "Expected this month:\t%s\n", euro(v.s.ExpectedCosts))
}

func (v summaryView) markdown() string {
	return "## Month summary\n\n" + mdTable([]string{"", ""}, [][]string{
		{"Last meter reading", v.s.LastMeterReadingDate},
		{"Actual costs", euro(v.s.ActualCostsUntilLastMeterReadingDate)},
		{"Expected costs", euro(v.s.ExpectedCostsUntilLastMeterReadingDate)},
		{"Expected this month", euro(v.s.ExpectedCosts)},
	})
}

func newInvoicesCommand() *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Show previous, current and upcoming invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			ref, err := resolveSite(cmd, site)
			if err != nil {
				return err
			}

			invoices, err := ctx.Client.Invoices(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("failed to fetch invoices: %w", err)
			}
			return printResult(cmd, invoices, invoicesView{invoices})
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "Delivery site reference (default: your first site)")
	return cmd
}

type invoicesView struct{ inv *models.Invoices }

func (v invoicesView) rows() [][]string {
	var rows [][]string
	for _, e := range []struct {
		label   string
		invoice *models.Invoice
	}{
		{"previous", v.inv.Previous},
		{"current", v.inv.Current},
		{"upcoming", v.inv.Upcoming},
	} {
		if e.invoice == nil {
			rows = append(rows, []string{e.label, "-", "-", "-"})
			continue
		}
		rows = append(rows, []string{e.label, e.invoice.StartDate, e.invoice.PeriodDescription, euro(e.invoice.TotalAmount)})
	}
	return rows
}

func (v invoicesView) table(w io.Writer) {
	fmt.Fprintln(w, "PERIOD\tSTART\tDESCRIPTION\tAMOUNT")
	for _, row := range v.rows() {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}

func (v invoicesView) markdown() string {
	return "## Invoices\n\n" + mdTable([]string{"Period", "Start", "Description", "Amount"}, v.rows())
}

func newMeCommand() *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show account details and delivery sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			me, err := ctx.Client.Me(cmd.Context(), site)
			if err != nil {
				return fmt.Errorf("failed to fetch account: %w", err)
			}
			return printResult(cmd, me, meView{me})
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "Delivery site reference used for the advance payment amount")
	return cmd
}

type meView struct{ u *models.User }

func (v meView) advance() string {
	if v.u.AdvancedPaymentAmount == nil {
		return "-"
	}
	return euro(*v.u.AdvancedPaymentAmount)
}

func (v meView) table(w io.Writer) {
	fmt.Fprintf(w, "Email:\t%s\n", v.u.Email)
	fmt.Fprintf(w, "Country:\t%s\n", v.u.CountryCode)
	fmt.Fprintf(w, "Advance payment:\t%s\n", v.advance())
	fmt.Fprintf(w, "CO2 compensation:\t%t\n", v.u.HasCO2Compensation)
	fmt.Fprintf(w, "Trees:\t%d\n", v.u.TreesCount)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SITE\tSTATUS\tSEGMENTS\tADDRESS")
	for _, s := range v.u.DeliverySites {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Reference, s.Status, strings.Join(s.Segments, ","), s.Address)
	}
}

func (v meView) markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", v.u.Email)
	fmt.Fprintf(&b, "- Country: %s\n- Advance payment: %s\n- CO2 compensation: %t\n\n",
		v.u.CountryCode, v.advance(), v.u.HasCO2Compensation)

	rows := make([][]string, 0, len(v.u.DeliverySites))
	for _, s := range v.u.DeliverySites {
		rows = append(rows, []string{s.Reference, s.Status, strings.Join(s.Segments, ", "), s.Address.String()})
	}
	b.WriteString(mdTable([]string{"Site", "Status", "Segments", "Address"}, rows))
	return b.String()
}
