package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"stockdeck/internal/api"
	errs "stockdeck/internal/errors"
	"stockdeck/internal/query"
)

func newSectorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sectors [sector]",
		Short: "List sectors or browse one",
		Long: `Without arguments, sectors lists the sectors the query classifier
recognizes and the keywords that map to them. With a sector argument it
prints the instruments in that sector.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if len(args) == 0 {
				return listSectors(output)
			}
			return browseSector(cmd, app, output, args[0])
		},
	}
	return cmd
}

func listSectors(output *Output) error {
	sectors := query.Sectors()

	if output.IsJSON() {
		return output.JSON(sectors)
	}

	table := NewTable(output, "SECTOR", "KEYWORDS")
	for _, s := range sectors {
		table.AddRow(s.Name, strings.Join(s.Keywords, ", "))
	}
	table.Render()
	return nil
}

func browseSector(cmd *cobra.Command, app *App, output *Output, sector string) error {
	ctx := cmd.Context()

	records, err := app.Client.GetInstruments(ctx, api.InstrumentsRequest{
		Sector: sector,
		Limit:  app.Config.Engine.DefaultLimit,
	})
	if err != nil {
		if errs.Is(err, errs.ErrSessionExpired) {
			output.Error("Session expired. Set STOCKDECK_AUTH_TOKEN and retry.")
		}
		return err
	}

	if output.IsJSON() {
		return output.JSON(records)
	}

	output.Bold("%s", sector)
	printInstruments(output, records)
	return nil
}
