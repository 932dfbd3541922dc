package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/frankenergie/internal/pkg/timeutil"
	"github.com/devilmonastery/frankenergie/models"
)

func newPricesCommand() *cobra.Command {
	var (
		date string
		days int
	)

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Show hourly market prices",
		Long: `Show the public electricity and gas market prices. No login is needed.

Examples:
  # Today's prices
  frank prices

  # Tomorrow's prices as JSON
  frank prices --date 2025-03-02 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			start, err := resolveDate(ctx, date)
			if err != nil {
				return err
			}

			prices, err := ctx.Client.Prices(cmd.Context(), start, start.AddDate(0, 0, days))
			if err != nil {
				return fmt.Errorf("failed to fetch prices: %w", err)
			}
			ctx.Logger.Debug("fetched prices",
				slog.Int("electricity", len(prices.Electricity)),
				slog.Int("gas", len(prices.Gas)))

			return printResult(cmd, prices, newPricesView(prices, ctx))
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "First day to show, YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&days, "days", 1, "Number of days to show")

	return cmd
}

func newUserPricesCommand() *cobra.Command {
	var (
		date string
		site string
	)

	cmd := &cobra.Command{
		Use:   "user-prices",
		Short: "Show your contract prices for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getCliContext(cmd)

			day, err := resolveDate(ctx, date)
			if err != nil {
				return err
			}
			site, err = resolveSite(cmd, site)
			if err != nil {
				return err
			}

			prices, err := ctx.Client.UserPrices(cmd.Context(), day, site)
			if err != nil {
				return fmt.Errorf("failed to fetch prices: %w", err)
			}

			return printResult(cmd, prices, newPricesView(prices, ctx))
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day to show, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&site, "site", "", "Delivery site reference (default: your first site)")

	return cmd
}

// resolveDate parses date in the configured timezone, defaulting to today
func resolveDate(ctx *CliContext, date string) (time.Time, error) {
	if date == "" {
		return timeutil.Today(time.Now(), ctx.Config.Timezone), nil
	}
	day, err := timeutil.ParseDate(date, ctx.Config.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
	}
	return day, nil
}

// resolveSite returns site, or the first delivery site of the logged-in user
func resolveSite(cmd *cobra.Command, site string) (string, error) {
	if site != "" {
		return site, nil
	}

	ctx := getCliContext(cmd)
	me, err := ctx.Client.Me(cmd.Context(), "")
	if err != nil {
		return "", fmt.Errorf("failed to look up delivery sites: %w", err)
	}
	if len(me.DeliverySites) == 0 {
		return "", fmt.Errorf("account has no delivery sites; pass --site")
	}

	ref := me.DeliverySites[0].Reference
	ctx.Logger.Debug("using first delivery site", slog.String("site", ref))
	return ref, nil
}

type pricesView struct {
	prices *models.MarketPrices
	now    time.Time
	loc    *time.Location
}

func newPricesView(prices *models.MarketPrices, ctx *CliContext) pricesView {
	loc := timeutil.Location(ctx.Config.Timezone)
	return pricesView{prices: prices, now: time.Now().In(loc), loc: loc}
}

func (v pricesView) table(w io.Writer) {
	v.series(w, "ELECTRICITY €/kWh", v.prices.Electricity)
	fmt.Fprintln(w)
	v.series(w, "GAS €/m³", v.prices.Gas)
}

func (v pricesView) series(w io.Writer, title string, data models.PriceData) {
	fmt.Fprintf(w, "%s\t\t\t\t\n", title)
	if len(data) == 0 {
		fmt.Fprintln(w, "no prices published\t\t\t\t")
		return
	}

	fmt.Fprintln(w, "\tFROM\tTILL\tMARKET+VAT\tTOTAL")
	for _, p := range data {
		marker := " "
		if p.ForNow(v.now) {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\n",
			marker,
			p.From.In(v.loc).Format("2006-01-02 15:04"),
			p.Till.In(v.loc).Format("15:04"),
			p.MarketPriceWithTax(),
			p.Total(),
		)
	}

	if lo, ok := data.TodayMin(v.now); ok {
		hi, _ := data.TodayMax(v.now)
		fmt.Fprintf(w, "\ttoday\tmin %.4f at %s\tmax %.4f at %s\tavg %.5f\n",
			lo.Total(), lo.From.In(v.loc).Format("15:04"),
			hi.Total(), hi.From.In(v.loc).Format("15:04"),
			data.TodayAvg(v.now))
	}
}

func (v pricesView) markdown() string {
	var b strings.Builder
	for _, s := range []struct {
		title string
		data  models.PriceData
	}{
		{"Electricity (€/kWh)", v.prices.Electricity},
		{"Gas (€/m³)", v.prices.Gas},
	} {
		b.WriteString("## " + s.title + "\n\n")
		if len(s.data) == 0 {
			b.WriteString("_No prices published._\n\n")
			continue
		}

		rows := make([][]string, 0, len(s.data))
		for _, p := range s.data {
			from := p.From.In(v.loc).Format("2006-01-02 15:04")
			if p.ForNow(v.now) {
				from = "**" + from + "**"
			}
			rows = append(rows, []string{
				from,
				fmt.Sprintf("%.4f", p.MarketPriceWithTax()),
				fmt.Sprintf("%.4f", p.Total()),
			})
		}
		b.WriteString(mdTable([]string{"From", "Market + VAT", "Total"}, rows))
		b.WriteString("\n")
	}
	return b.String()
}
