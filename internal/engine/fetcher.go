package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stockdeck/internal/api"
	"stockdeck/internal/cache"
	"stockdeck/internal/logging"
	"stockdeck/internal/models"
)

// SnapshotSource is the pull surface the fetcher depends on.
type SnapshotSource interface {
	GetInstruments(ctx context.Context, req api.InstrumentsRequest) ([]models.Instrument, error)
}

// Fetcher pulls the authoritative instrument snapshot for the active view
// and writes it through to the view cache. It never runs two fetches
// concurrently for the same view.
type Fetcher struct {
	source SnapshotSource
	cache  *cache.ViewCache
	logger zerolog.Logger

	mu       sync.Mutex
	inFlight bool

	lastSuccess time.Time
	failures    int
}

// NewFetcher creates a snapshot fetcher. cache may be nil when the
// persistent view cache is disabled.
func NewFetcher(source SnapshotSource, viewCache *cache.ViewCache, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		cache:  viewCache,
		logger: logger,
	}
}

// FetchStatus describes the fetcher's recent history, surfaced as the
// non-blocking connectivity indicator.
type FetchStatus struct {
	LastSuccess         time.Time
	ConsecutiveFailures int
	InFlight            bool
}

// Status returns the current fetch status.
func (f *Fetcher) Status() FetchStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FetchStatus{
		LastSuccess:         f.lastSuccess,
		ConsecutiveFailures: f.failures,
		InFlight:            f.inFlight,
	}
}

// Fetch pulls the snapshot for a view. A fetch already in flight suppresses
// this one (ok=false, no error). On failure the previous baseline stays
// untouched: callers keep displaying what they have.
func (f *Fetcher) Fetch(ctx context.Context, view models.ViewState) (records []models.Instrument, ok bool, err error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, false, nil
	}
	f.inFlight = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
	}()

	started := time.Now()
	records, err = f.source.GetInstruments(ctx, api.InstrumentsRequest{
		Sector: view.SectorFilter,
		Limit:  view.Limit,
	})
	logging.LogFetch(f.logger, len(records), time.Since(started), err)

	if err != nil {
		f.mu.Lock()
		f.failures++
		f.mu.Unlock()
		return nil, false, err
	}

	f.mu.Lock()
	f.failures = 0
	f.lastSuccess = time.Now()
	f.mu.Unlock()

	if f.cache != nil {
		if cerr := f.cache.Save(ctx, view, records); cerr != nil {
			// Cache writes are best-effort; a failure never blocks display.
			f.logger.Debug().Err(cerr).Msg("View cache write failed")
		}
	}

	return records, true, nil
}

// Rehydrate reads the cached records for a view for an instant first paint.
// Absent or corrupt entries are a miss, never an error.
func (f *Fetcher) Rehydrate(ctx context.Context, view models.ViewState) ([]models.Instrument, bool) {
	if f.cache == nil {
		return nil, false
	}

	records, ok, err := f.cache.Load(ctx, view)
	if err != nil {
		f.logger.Debug().Err(err).Msg("View cache read failed, ignoring entry")
		return nil, false
	}
	return records, ok
}
