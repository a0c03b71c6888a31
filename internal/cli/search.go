package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"stockdeck/internal/api"
	errs "stockdeck/internal/errors"
	"stockdeck/internal/models"
	"stockdeck/internal/query"
)

func newSearchCmd(app *App) *cobra.Command {
	var sector string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot query",
		Long: `Search resolves a query once and prints the result.

Sector and "show all" phrasings resolve against a fresh snapshot without
a search call; everything else hits the backend search endpoint, falling
back to a local match over the snapshot when the backend is unavailable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			view := models.ViewState{
				QueryText:    strings.Join(args, " "),
				SectorFilter: sector,
				Limit:        limit,
			}
			if view.Limit <= 0 {
				view.Limit = app.Config.Engine.DefaultLimit
			}

			// The snapshot serves local routes directly and backs the
			// fallback path for remote searches.
			snapshot, err := app.Client.GetInstruments(ctx, api.InstrumentsRequest{})
			if err != nil {
				if errs.Is(err, errs.ErrSessionExpired) {
					output.Error("Session expired. Set STOCKDECK_AUTH_TOKEN and retry.")
					return err
				}
				app.Logger.Warn().Err(err).Msg("Snapshot unavailable, local fallback will be empty")
			}

			resolver := query.NewResolver(app.Client, app.Logger, nil)
			result, err := resolver.Resolve(ctx, view, snapshot)
			if err != nil {
				if errs.Is(err, errs.ErrSessionExpired) {
					output.Error("Session expired. Set STOCKDECK_AUTH_TOKEN and retry.")
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"results": result.Records,
					"stats":   result.Stats,
					"route":   result.Route,
				})
			}

			printInstruments(output, result.Records)
			output.Println()
			output.Dim(FormatStats(result.Stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&sector, "sector", "s", "", "restrict results to a sector")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results")

	return cmd
}

func printInstruments(output *Output, records []models.Instrument) {
	if len(records) == 0 {
		output.Println("No results")
		return
	}

	table := NewTable(output, "", "SYMBOL", "COMPANY", "SECTOR", "PRICE", "CHANGE", "VOLUME")
	for _, rec := range records {
		arrow := DirectionArrow(rec.Direction)
		if rec.Direction != models.DirectionNone {
			arrow = output.ColoredString(output.DirectionColor(rec.Direction), arrow)
		}
		table.AddRow(
			arrow,
			rec.Symbol,
			truncate(rec.CompanyName, 32),
			rec.Sector,
			FormatPrice(rec.Price),
			output.FormatChange(rec.ChangePercent),
			FormatVolume(rec.Volume),
		)
	}
	table.Render()
}
