package cli

import (
	"strings"

	"github.com/spf13/cobra"

	errs "stockdeck/internal/errors"
	"stockdeck/internal/models"
)

// sparkRunes render a price series as a one-line sparkline.
var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func newQuoteCmd(app *App) *cobra.Command {
	var chartRange string

	cmd := &cobra.Command{
		Use:   "quote <symbol>",
		Short: "Show detail and price history for one instrument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(args[0])

			detail, err := app.Client.GetInstrumentDetail(cmd.Context(), symbol, chartRange)
			if err != nil {
				if errs.Is(err, errs.ErrSessionExpired) {
					output.Error("Session expired. Set STOCKDECK_AUTH_TOKEN and retry.")
				}
				if errs.Is(err, errs.ErrDataNotFound) {
					output.Error("Unknown symbol: %s", symbol)
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(detail)
			}

			printDetail(output, detail, chartRange)
			return nil
		},
	}

	cmd.Flags().StringVarP(&chartRange, "range", "r", "1M", "chart range (1W, 1M, 3M, 1Y)")

	return cmd
}

func printDetail(output *Output, detail *models.InstrumentDetail, chartRange string) {
	inst := detail.Instrument

	output.Bold("%s · %s", inst.Symbol, inst.CompanyName)
	output.Printf("  Sector:  %s\n", inst.Sector)
	output.Printf("  Price:   %s  %s\n", FormatPrice(inst.Price), output.FormatChange(inst.ChangePercent))
	output.Printf("  Volume:  %s\n", FormatVolume(inst.Volume))

	if len(detail.Chart) > 0 {
		output.Println()
		output.Printf("  %s  %s\n", chartRange, sparkline(detail.Chart))
		first := detail.Chart[0]
		last := detail.Chart[len(detail.Chart)-1]
		output.Dim("  %s %s → %s %s", first.Date, FormatPrice(first.Price), last.Date, FormatPrice(last.Price))
	}
}

func sparkline(points []models.ChartPoint) string {
	lo, hi := points[0].Price, points[0].Price
	for _, p := range points {
		if p.Price < lo {
			lo = p.Price
		}
		if p.Price > hi {
			hi = p.Price
		}
	}

	var b strings.Builder
	for _, p := range points {
		idx := 0
		if hi > lo {
			idx = int((p.Price - lo) / (hi - lo) * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
