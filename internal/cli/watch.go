package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stockdeck/internal/engine"
	errs "stockdeck/internal/errors"
	"stockdeck/internal/models"
	"stockdeck/internal/query"
	"stockdeck/internal/stream"
)

func newWatchCmd(app *App) *cobra.Command {
	var sector string
	var limit int

	cmd := &cobra.Command{
		Use:   "watch [query]",
		Short: "Watch a live dashboard view",
		Long: `Watch keeps a live instrument list on screen.

The list refreshes from backend snapshots on a fixed cadence, receives
incremental updates over the push channel, and animates displayed prices
between real updates. Queries like "all tech stocks" or "gainers" resolve
locally; anything else searches the backend.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queryText := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			view := models.ViewState{
				QueryText:    queryText,
				SectorFilter: sector,
				Limit:        limit,
			}

			renderer := newDashboardRenderer(view, app.Config.UI.TimeFormat, os.Stdout)

			fetcher := engine.NewFetcher(app.Client, app.Cache, app.Logger)
			resolver := query.NewResolver(app.Client, app.Logger, nil)
			channel := stream.NewChannel(stream.Config{
				URL:      app.Config.Backend.StreamURL,
				Interval: app.Config.Engine.PushInterval,
			}, app.Logger)

			eng := engine.New(engine.Options{
				Config:   app.Config.Engine,
				Fetcher:  fetcher,
				Resolver: resolver,
				Channel:  channel,
				Logger:   app.Logger,
				OnRender: renderer.Render,
				OnTape:   renderer.Tape,
				OnLogout: func() {
					renderer.Notice("Session expired. Set STOCKDECK_AUTH_TOKEN and restart.")
					stop()
				},
			})

			eng.Start(ctx)
			defer eng.Stop()

			// Resuming after a terminal stop forces a fresh snapshot so the
			// display never animates from long-stale prices.
			resumed := make(chan os.Signal, 1)
			signal.Notify(resumed, syscall.SIGCONT)
			go func() {
				defer signal.Stop(resumed)
				for {
					select {
					case <-ctx.Done():
						return
					case <-resumed:
						eng.RefreshNow()
					}
				}
			}()

			if err := eng.SetView(ctx, view); err != nil {
				if errs.Is(err, errs.ErrSessionExpired) {
					return err
				}
				app.Logger.Warn().Err(err).Msg("Initial view load failed, waiting for next fetch")
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVarP(&sector, "sector", "s", "", "restrict the view to a sector")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows to display")

	return cmd
}

// dashboardRenderer repaints the full terminal frame on every display
// change. Frames are serialized; a tape update between frames is carried
// into the next one.
type dashboardRenderer struct {
	mu         sync.Mutex
	out        io.Writer
	view       models.ViewState
	timeFormat string
	tape       []models.Instrument
	notice     string
}

func newDashboardRenderer(view models.ViewState, timeFormat string, out io.Writer) *dashboardRenderer {
	if timeFormat == "" {
		timeFormat = "15:04:05"
	}
	return &dashboardRenderer{view: view, timeFormat: timeFormat, out: out}
}

// Tape stores the latest movers line for the next frame.
func (r *dashboardRenderer) Tape(movers []models.Instrument) {
	r.mu.Lock()
	r.tape = movers
	r.mu.Unlock()
}

// Notice pins a message under the header.
func (r *dashboardRenderer) Notice(msg string) {
	r.mu.Lock()
	r.notice = msg
	r.mu.Unlock()
}

// Render paints the frame.
func (r *dashboardRenderer) Render(records []models.Instrument, stats models.SearchStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Home the cursor and clear the previous frame.
	fmt.Fprint(r.out, "\033[H\033[2J")

	title := "Stockdeck"
	if r.view.QueryText != "" {
		title = fmt.Sprintf("Stockdeck · %q", r.view.QueryText)
	} else if r.view.SectorFilter != "" {
		title = fmt.Sprintf("Stockdeck · %s", r.view.SectorFilter)
	}
	color.New(color.FgCyan).Fprintf(r.out, "📈 %s\n", title)
	fmt.Fprintf(r.out, "%s · %s\n", FormatStats(stats), time.Now().Format(r.timeFormat))
	fmt.Fprintln(r.out, strings.Repeat("─", 72))

	if r.notice != "" {
		color.New(color.FgYellow).Fprintf(r.out, "⚠ %s\n", r.notice)
	}

	if len(records) == 0 {
		fmt.Fprintln(r.out, "No instruments to display.")
	} else {
		fmt.Fprintf(r.out, "%-2s %-8s %-28s %-12s %10s %9s\n", "", "SYMBOL", "COMPANY", "PRICE", "CHANGE", "VOLUME")
		for _, rec := range records {
			// The row already carries a literal % from the change column,
			// so it must never pass through a printf-style color call.
			line := renderRow(rec)
			switch rec.Direction {
			case models.DirectionUp:
				color.New(color.FgGreen).Fprintln(r.out, line)
			case models.DirectionDown:
				color.New(color.FgRed).Fprintln(r.out, line)
			default:
				fmt.Fprintln(r.out, line)
			}
		}
	}

	if len(r.tape) > 0 {
		fmt.Fprintln(r.out, strings.Repeat("─", 72))
		parts := make([]string, 0, len(r.tape))
		for _, m := range r.tape {
			parts = append(parts, fmt.Sprintf("%s %+.2f%%", m.Symbol, m.ChangePercent))
		}
		fmt.Fprintf(r.out, "Movers: %s\n", strings.Join(parts, "   "))
	}
}

func renderRow(rec models.Instrument) string {
	return fmt.Sprintf("%-2s %-8s %-28s %-12s %9.2f%% %9s",
		DirectionArrow(rec.Direction),
		rec.Symbol,
		truncate(rec.CompanyName, 28),
		FormatPrice(rec.DisplayPrice),
		rec.ChangePercent,
		FormatVolume(rec.Volume),
	)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
