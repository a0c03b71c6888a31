package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stockdeck/internal/api"
	"stockdeck/internal/cache"
	"stockdeck/internal/config"
	errs "stockdeck/internal/errors"
	"stockdeck/internal/models"
	"stockdeck/internal/query"
)

type fakeSearcher struct {
	resp *api.SearchResponse
	err  error
}

func (f *fakeSearcher) Search(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error) {
	return f.resp, f.err
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{DefaultLimit: 50}
}

func TestEngine_SetViewShowAll(t *testing.T) {
	source := &fakeSource{records: []models.Instrument{
		{Symbol: "AAPL", Price: 150},
		{Symbol: "TSLA", Price: 250},
	}}

	var rendered []models.Instrument
	var stats models.SearchStats

	eng := New(Options{
		Config:   testEngineConfig(),
		Fetcher:  NewFetcher(source, nil, zerolog.Nop()),
		Resolver: query.NewResolver(&fakeSearcher{}, zerolog.Nop(), nil),
		Logger:   zerolog.Nop(),
		OnRender: func(records []models.Instrument, s models.SearchStats) {
			rendered = records
			stats = s
		},
	})

	if err := eng.SetView(context.Background(), models.ViewState{}); err != nil {
		t.Fatalf("SetView: %v", err)
	}

	if len(rendered) != 2 {
		t.Fatalf("rendered %d records, want 2", len(rendered))
	}
	if stats.Label != "All instruments" || stats.ElapsedSeconds != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEngine_SetViewPaintsFromCacheFirst(t *testing.T) {
	viewCache := cache.NewViewCache(cache.NewMemoryStore())
	view := models.ViewState{Limit: 50}
	if err := viewCache.Save(context.Background(), view, []models.Instrument{{Symbol: "OLD", Price: 1}}); err != nil {
		t.Fatal(err)
	}

	source := &fakeSource{records: []models.Instrument{{Symbol: "NEW", Price: 2}}}

	var frames [][]models.Instrument
	eng := New(Options{
		Config:   testEngineConfig(),
		Fetcher:  NewFetcher(source, viewCache, zerolog.Nop()),
		Resolver: query.NewResolver(&fakeSearcher{}, zerolog.Nop(), nil),
		Logger:   zerolog.Nop(),
		OnRender: func(records []models.Instrument, _ models.SearchStats) {
			frames = append(frames, records)
		},
	})

	if err := eng.SetView(context.Background(), view); err != nil {
		t.Fatalf("SetView: %v", err)
	}

	if len(frames) < 2 {
		t.Fatalf("frames = %d, want cached paint plus live frame", len(frames))
	}
	if frames[0][0].Symbol != "OLD" {
		t.Errorf("first frame = %v, want cached records", frames[0])
	}
	if last := frames[len(frames)-1]; last[0].Symbol != "NEW" {
		t.Errorf("final frame = %v, want live records", last)
	}
}

func TestEngine_FetchFailureKeepsLastDisplay(t *testing.T) {
	source := &fakeSource{records: []models.Instrument{{Symbol: "AAPL", Price: 150}}}

	eng := New(Options{
		Config:   testEngineConfig(),
		Fetcher:  NewFetcher(source, nil, zerolog.Nop()),
		Resolver: query.NewResolver(&fakeSearcher{}, zerolog.Nop(), nil),
		Logger:   zerolog.Nop(),
	})

	if err := eng.SetView(context.Background(), models.ViewState{}); err != nil {
		t.Fatalf("SetView: %v", err)
	}

	source.err = errs.NewFetchError("/api/stocks", 0, errs.ErrConnectionFailed)
	if err := eng.refresh(context.Background(), eng.View()); err == nil {
		t.Fatal("expected refresh error")
	}

	records, _ := eng.Display()
	if len(records) != 1 || records[0].Symbol != "AAPL" {
		t.Errorf("display after failure = %v, want last good records", records)
	}
	if eng.Status().Fetch.ConsecutiveFailures != 1 {
		t.Errorf("failures = %d, want 1", eng.Status().Fetch.ConsecutiveFailures)
	}
}

func TestEngine_SessionExpiredLogsOutOnce(t *testing.T) {
	source := &fakeSource{err: errs.NewFetchError("/api/stocks", 401, errs.ErrSessionExpired)}

	logouts := 0
	eng := New(Options{
		Config:   testEngineConfig(),
		Fetcher:  NewFetcher(source, nil, zerolog.Nop()),
		Resolver: query.NewResolver(&fakeSearcher{}, zerolog.Nop(), nil),
		Logger:   zerolog.Nop(),
		OnLogout: func() { logouts++ },
	})

	if err := eng.SetView(context.Background(), models.ViewState{}); !errs.Is(err, errs.ErrSessionExpired) {
		t.Fatalf("err = %v, want session expired", err)
	}

	// Further refreshes are refused without touching the backend again.
	calls := source.calls
	if err := eng.refresh(context.Background(), eng.View()); !errs.Is(err, errs.ErrSessionExpired) {
		t.Fatalf("err = %v, want session expired", err)
	}
	if source.calls != calls {
		t.Errorf("backend called after logout: %d > %d", source.calls, calls)
	}
	if logouts != 1 {
		t.Errorf("logout hook ran %d times, want 1", logouts)
	}
	if eng.Status().LoggedIn {
		t.Error("status still reports logged in")
	}
}

// countingSource is safe for use from the engine's fetch loop goroutine.
type countingSource struct {
	mu      sync.Mutex
	calls   int
	records []models.Instrument
}

func (c *countingSource) GetInstruments(ctx context.Context, req api.InstrumentsRequest) ([]models.Instrument, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.records, nil
}

func (c *countingSource) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestEngine_RefreshNowTriggersImmediateFetch(t *testing.T) {
	source := &countingSource{records: []models.Instrument{{Symbol: "AAPL", Price: 150}}}

	// Intervals are far beyond the test horizon so the only way a second
	// fetch happens is through the out-of-cadence refresh signal.
	eng := New(Options{
		Config: config.EngineConfig{
			FetchInterval:    time.Hour,
			SimulateInterval: time.Hour,
			DefaultLimit:     50,
		},
		Fetcher:  NewFetcher(source, nil, zerolog.Nop()),
		Resolver: query.NewResolver(&fakeSearcher{}, zerolog.Nop(), nil),
		Logger:   zerolog.Nop(),
	})

	eng.Start(context.Background())
	defer eng.Stop()

	if err := eng.SetView(context.Background(), models.ViewState{}); err != nil {
		t.Fatalf("SetView: %v", err)
	}
	if got := source.count(); got != 1 {
		t.Fatalf("calls after SetView = %d, want 1", got)
	}

	eng.RefreshNow()

	deadline := time.Now().Add(2 * time.Second)
	for source.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("refresh signal never reached the fetch loop")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEngine_RefreshNowCoalescesWhilePending(t *testing.T) {
	eng := New(Options{
		Config:   testEngineConfig(),
		Fetcher:  NewFetcher(&fakeSource{}, nil, zerolog.Nop()),
		Resolver: query.NewResolver(&fakeSearcher{}, zerolog.Nop(), nil),
		Logger:   zerolog.Nop(),
	})

	// Without a running loop draining the channel, repeated signals must
	// coalesce instead of blocking the caller.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			eng.RefreshNow()
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RefreshNow blocked with a pending signal")
	}
}

func TestEngine_DefaultLimitApplied(t *testing.T) {
	source := &fakeSource{records: []models.Instrument{{Symbol: "AAPL"}}}

	eng := New(Options{
		Config:   config.EngineConfig{DefaultLimit: 7},
		Fetcher:  NewFetcher(source, nil, zerolog.Nop()),
		Resolver: query.NewResolver(&fakeSearcher{}, zerolog.Nop(), nil),
		Logger:   zerolog.Nop(),
	})

	if err := eng.SetView(context.Background(), models.ViewState{}); err != nil {
		t.Fatal(err)
	}
	if eng.View().Limit != 7 {
		t.Errorf("view limit = %d, want config default 7", eng.View().Limit)
	}
}
