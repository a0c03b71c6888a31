package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stockdeck/internal/config"
	errs "stockdeck/internal/errors"
	"stockdeck/internal/logging"
	"stockdeck/internal/models"
	"stockdeck/internal/query"
	"stockdeck/internal/stream"
)

// RenderFunc receives the displayed list plus its stats line whenever the
// display changes.
type RenderFunc func(records []models.Instrument, stats models.SearchStats)

// TapeFunc receives the top movers for the scrolling tape.
type TapeFunc func(movers []models.Instrument)

// Options wires the engine's collaborators.
type Options struct {
	Config   config.EngineConfig
	Fetcher  *Fetcher
	Resolver *query.Resolver
	Channel  *stream.Channel
	Logger   zerolog.Logger

	// OnRender is called with the current display whenever it changes.
	OnRender RenderFunc
	// OnTape is called on the tape cadence with the strongest movers.
	OnTape TapeFunc
	// OnLogout is called at most once, when the backend reports the
	// session expired.
	OnLogout func()
}

// Engine drives the synchronization loops: the snapshot fetch cadence, the
// cosmetic price simulation cadence, the ticker tape cadence, and the push
// channel. It owns the active view and keeps the push subscription aligned
// with the displayed symbol set.
type Engine struct {
	cfg      config.EngineConfig
	fetcher  *Fetcher
	resolver *query.Resolver
	channel  *stream.Channel
	recon    *Reconciler
	sim      *Simulator
	logger   zerolog.Logger

	onRender RenderFunc
	onTape   TapeFunc
	onLogout func()

	mu         sync.Mutex
	view       models.ViewState
	route      query.Route
	stats      models.SearchStats
	subscribed []string
	loggedOut  bool

	fetchNow chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates an engine. The push channel is optional; without one the
// snapshot fetch cadence is the only authoritative source.
func New(opts Options) *Engine {
	e := &Engine{
		cfg:      opts.Config,
		fetcher:  opts.Fetcher,
		resolver: opts.Resolver,
		channel:  opts.Channel,
		recon:    NewReconciler(),
		sim:      NewSimulator(DefaultSimulatorConfig()),
		logger:   opts.Logger,
		onRender: opts.OnRender,
		onTape:   opts.OnTape,
		onLogout: opts.OnLogout,
		route:    query.RouteShowAll,
		fetchNow: make(chan struct{}, 1),
	}

	if e.channel != nil {
		e.channel.OnUpdates(e.handlePush)
		e.channel.OnDisconnect(func() {
			e.logger.Warn().Msg("Push channel disconnected, snapshot cadence remains authoritative")
		})
		e.channel.OnError(func(err error) {
			e.logger.Error().Err(err).Msg("Push channel gave up reconnecting")
		})
	}

	return e
}

// Start launches the fetch, simulate, and tape loops and connects the push
// channel. It returns once the loops are running.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	if e.channel != nil {
		if err := e.channel.Connect(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("Push channel unavailable, continuing on snapshots only")
		}
	}

	e.wg.Add(3)
	go e.fetchLoop(ctx)
	go e.simulateLoop(ctx)
	go e.tapeLoop(ctx)
}

// Stop cancels the loops and closes the push channel. Displayed state stays
// intact so the final frame can still be read.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.channel != nil {
		e.channel.Close()
	}
	e.wg.Wait()
}

// Status reports fetch health and the push channel state.
type Status struct {
	Fetch    FetchStatus
	Stream   stream.State
	LoggedIn bool
}

// Status returns a snapshot of the engine's connectivity.
func (e *Engine) Status() Status {
	e.mu.Lock()
	loggedOut := e.loggedOut
	e.mu.Unlock()

	st := Status{
		Fetch:    e.fetcher.Status(),
		Stream:   stream.StateClosed,
		LoggedIn: !loggedOut,
	}
	if e.channel != nil {
		st.Stream = e.channel.State()
	}
	return st
}

// View returns the active view.
func (e *Engine) View() models.ViewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// Display returns the current display list and its stats line.
func (e *Engine) Display() ([]models.Instrument, models.SearchStats) {
	e.mu.Lock()
	stats := e.stats
	e.mu.Unlock()
	return e.recon.Snapshot(), stats
}

// SetView switches the active view. Cached records for the view paint
// immediately while the live resolution runs; the live result then replaces
// the cached paint. The push subscription follows the new symbol set.
func (e *Engine) SetView(ctx context.Context, view models.ViewState) error {
	if view.Limit <= 0 {
		view.Limit = e.cfg.DefaultLimit
	}

	e.mu.Lock()
	e.view = view
	e.mu.Unlock()

	if cached, ok := e.fetcher.Rehydrate(ctx, view); ok && len(cached) > 0 {
		e.recon.ApplySnapshot(cached, true, time.Now())
		e.setStats(models.SearchStats{Total: len(cached), Label: "Cached"})
		e.render()
	}

	return e.refresh(ctx, view)
}

// RefreshNow schedules an immediate snapshot fetch outside the regular
// cadence, used when the dashboard regains visibility. Non-blocking; if a
// refresh is already pending the signal coalesces.
func (e *Engine) RefreshNow() {
	select {
	case e.fetchNow <- struct{}{}:
	default:
	}
}

// refresh runs the full resolution pipeline for a view and replaces the
// displayed list with the outcome.
func (e *Engine) refresh(ctx context.Context, view models.ViewState) error {
	if e.isLoggedOut() {
		return errs.ErrSessionExpired
	}

	res := query.Classify(view)

	var baseline []models.Instrument
	if res.Route == query.RouteRemoteSearch {
		// Remote searches fall back to whatever is on screen.
		baseline = e.recon.Snapshot()
	} else {
		records, ok, err := e.fetcher.Fetch(ctx, fetchView(view, res))
		if err != nil {
			if errs.Is(err, errs.ErrSessionExpired) {
				e.handleSessionExpired()
				return err
			}
			// Stale data over an empty screen; the failure shows up in
			// Status, not as a blanked display.
			return err
		}
		if !ok {
			return nil
		}
		baseline = records
	}

	result, err := e.resolver.Resolve(ctx, view, baseline)
	if err != nil {
		if errs.Is(err, errs.ErrSessionExpired) {
			e.handleSessionExpired()
		}
		return err
	}

	e.recon.ApplySnapshot(result.Records, true, time.Now())
	e.setRoute(result.Route, result.Stats)
	logging.LogSearch(e.logger, view.QueryText, string(result.Route), result.Stats.Total, result.Stats.ElapsedSeconds)

	e.resubscribe()
	e.render()
	return nil
}

// fetchView narrows the backend snapshot request to the classified sector
// so local sector views are served pre-filtered.
func fetchView(view models.ViewState, res query.Resolution) models.ViewState {
	out := view
	if res.Route == query.RouteSectorFilter {
		out.SectorFilter = res.Sector
	} else {
		out.SectorFilter = ""
	}
	return out
}

func (e *Engine) fetchLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.FetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.fetchNow:
		}

		if e.isLoggedOut() {
			continue
		}

		e.mu.Lock()
		view := e.view
		route := e.route
		e.mu.Unlock()

		if route == query.RouteRemoteSearch {
			e.refreshSearchMembers(ctx, view)
			continue
		}

		if err := e.refresh(ctx, view); err != nil {
			e.logger.Debug().Err(err).Msg("Scheduled fetch failed, keeping last good display")
		}
	}
}

// refreshSearchMembers keeps a search result view live without re-running
// the search: the full snapshot is fetched and merged into the displayed
// symbols only, leaving membership and ordering alone.
func (e *Engine) refreshSearchMembers(ctx context.Context, view models.ViewState) {
	records, ok, err := e.fetcher.Fetch(ctx, models.ViewState{Limit: 0})
	if err != nil {
		if errs.Is(err, errs.ErrSessionExpired) {
			e.handleSessionExpired()
			return
		}
		e.logger.Debug().Err(err).Msg("Snapshot refresh for search view failed")
		return
	}
	if !ok {
		return
	}

	e.recon.ApplySnapshot(records, false, time.Now())
	e.render()
}

func (e *Engine) simulateLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SimulateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.recon.Len() == 0 {
				continue
			}
			e.recon.SimulateTick(e.sim.Step)
			e.render()
		}
	}
}

func (e *Engine) tapeLoop(ctx context.Context) {
	defer e.wg.Done()

	if e.onTape == nil || e.cfg.TapeInterval <= 0 {
		return
	}

	ticker := time.NewTicker(e.cfg.TapeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			movers := TopMovers(e.recon.Snapshot(), 5)
			if len(movers) > 0 {
				e.onTape(movers)
			}
		}
	}
}

// handlePush merges a push batch into the display. Push updates only ever
// touch symbols already on screen.
func (e *Engine) handlePush(updates []models.Update) {
	e.recon.ApplyUpdates(updates)
	e.render()
}

// resubscribe aligns the push subscription with the displayed symbols. The
// subscription is only rebuilt when membership actually changed.
func (e *Engine) resubscribe() {
	if e.channel == nil {
		return
	}

	symbols := e.recon.Symbols()

	e.mu.Lock()
	if SameSymbols(e.subscribed, symbols) {
		e.mu.Unlock()
		return
	}
	e.subscribed = symbols
	e.mu.Unlock()

	if err := e.channel.SetSymbols(symbols); err != nil {
		e.logger.Warn().Err(err).Msg("Push resubscription failed")
		return
	}
	logging.LogStream(e.logger, string(e.channel.State()), len(symbols))
}

// handleSessionExpired runs the logout hook exactly once. Expired sessions
// are terminal; no loop retries after this point.
func (e *Engine) handleSessionExpired() {
	e.mu.Lock()
	already := e.loggedOut
	e.loggedOut = true
	e.mu.Unlock()

	if already {
		return
	}

	e.logger.Warn().Msg("Session expired, logging out")
	if e.onLogout != nil {
		e.onLogout()
	}
}

func (e *Engine) isLoggedOut() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loggedOut
}

func (e *Engine) setRoute(route query.Route, stats models.SearchStats) {
	e.mu.Lock()
	e.route = route
	e.stats = stats
	e.mu.Unlock()
}

func (e *Engine) setStats(stats models.SearchStats) {
	e.mu.Lock()
	e.stats = stats
	e.mu.Unlock()
}

func (e *Engine) render() {
	if e.onRender == nil {
		return
	}
	records, stats := e.Display()
	e.onRender(records, stats)
}

// TopMovers returns the n instruments with the largest absolute change,
// strongest first.
func TopMovers(records []models.Instrument, n int) []models.Instrument {
	out := append([]models.Instrument(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].ChangePercent, out[j].ChangePercent
		if ai < 0 {
			ai = -ai
		}
		if aj < 0 {
			aj = -aj
		}
		return ai > aj
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
