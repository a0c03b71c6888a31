// Package query classifies user queries and resolves them against the local
// snapshot or the remote search backend.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockdeck/internal/api"
	errs "stockdeck/internal/errors"
	"stockdeck/internal/models"
)

// Route identifies how a query is satisfied.
type Route string

const (
	// RouteShowAll resolves locally to the full snapshot.
	RouteShowAll Route = "show_all"
	// RouteSectorFilter resolves locally by sector match over the snapshot.
	RouteSectorFilter Route = "sector_filter"
	// RouteTrendFilter resolves locally on live change direction.
	RouteTrendFilter Route = "trend_filter"
	// RouteRemoteSearch requires a backend search call.
	RouteRemoteSearch Route = "remote_search"
)

// Resolution is the classification of a view before execution.
type Resolution struct {
	Route  Route
	Sector string // canonical sector for local filters, hint for remote
	Trend  string // "up" or "down" for trend filters
}

// Classify decides how a view should be resolved. Sector browsing and
// "show everything" phrasings never leave the process; sector hints inside
// the query text override all-synonyms so "all tech stocks" filters rather
// than listing everything.
func Classify(view models.ViewState) Resolution {
	text := view.QueryText

	if text == "" {
		if view.SectorFilter != "" {
			return Resolution{Route: RouteSectorFilter, Sector: view.SectorFilter}
		}
		return Resolution{Route: RouteShowAll}
	}

	sector, hasSector := detectSector(text)
	trend, hasTrend := detectTrend(text)

	if isShowAll(text) && !hasSector && view.SectorFilter == "" {
		return Resolution{Route: RouteShowAll}
	}

	if !hasSearchTerms(text) {
		// Nothing left to search for once hints are stripped; resolve locally.
		switch {
		case hasSector:
			return Resolution{Route: RouteSectorFilter, Sector: sector, Trend: trend}
		case view.SectorFilter != "":
			return Resolution{Route: RouteSectorFilter, Sector: view.SectorFilter, Trend: trend}
		case hasTrend:
			return Resolution{Route: RouteTrendFilter, Trend: trend}
		default:
			return Resolution{Route: RouteShowAll}
		}
	}

	effectiveSector := view.SectorFilter
	if hasSector {
		effectiveSector = sector
	}
	return Resolution{Route: RouteRemoteSearch, Sector: effectiveSector, Trend: trend}
}

// Result is a resolved query: the records to display plus display stats.
type Result struct {
	Records []models.Instrument
	Stats   models.SearchStats
	Route   Route
}

// Searcher is the remote search surface the resolver depends on.
type Searcher interface {
	Search(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error)
}

// Resolver executes classified queries.
type Resolver struct {
	client   Searcher
	logger   zerolog.Logger
	onLogout func()
}

// NewResolver creates a resolver. onLogout is invoked exactly once per
// session-expired response and may be nil.
func NewResolver(client Searcher, logger zerolog.Logger, onLogout func()) *Resolver {
	return &Resolver{
		client:   client,
		logger:   logger,
		onLogout: onLogout,
	}
}

// Resolve satisfies a view either from the given snapshot or via remote
// search. snapshot is the latest full authoritative list; local routes never
// cost a network round trip when a snapshot is present.
func (r *Resolver) Resolve(ctx context.Context, view models.ViewState, snapshot []models.Instrument) (*Result, error) {
	res := Classify(view)

	switch res.Route {
	case RouteShowAll:
		records := capLimit(snapshot, view.Limit)
		return &Result{
			Records: records,
			Stats:   localStats(len(records), "All instruments"),
			Route:   res.Route,
		}, nil

	case RouteSectorFilter:
		records := FilterBySector(snapshot, res.Sector)
		if res.Trend != "" {
			records = FilterByTrend(records, res.Trend)
		}
		records = capLimit(records, view.Limit)
		return &Result{
			Records: records,
			Stats:   localStats(len(records), fmt.Sprintf("%s sector", res.Sector)),
			Route:   res.Route,
		}, nil

	case RouteTrendFilter:
		records := capLimit(FilterByTrend(snapshot, res.Trend), view.Limit)
		label := "Gainers"
		if res.Trend == "down" {
			label = "Losers"
		}
		return &Result{
			Records: records,
			Stats:   localStats(len(records), label),
			Route:   res.Route,
		}, nil

	default:
		return r.remoteSearch(ctx, view, res, snapshot)
	}
}

func (r *Resolver) remoteSearch(ctx context.Context, view models.ViewState, res Resolution, snapshot []models.Instrument) (*Result, error) {
	started := time.Now()

	resp, err := r.client.Search(ctx, api.SearchRequest{
		Query:  view.QueryText,
		Limit:  view.Limit,
		Sector: res.Sector,
	})
	if err != nil {
		if errs.Is(err, errs.ErrSessionExpired) {
			r.logger.Warn().Str("query", view.QueryText).Msg("Session expired during search, logging out")
			if r.onLogout != nil {
				r.onLogout()
			}
			return nil, err
		}
		r.logger.Warn().Err(err).Str("query", view.QueryText).Msg("Remote search failed, trying local fallback")
		return r.localFallback(view, res, snapshot)
	}

	if len(resp.Results) == 0 {
		return r.localFallback(view, res, snapshot)
	}

	label := resp.Summary
	if label == "" {
		label = fmt.Sprintf("Results for %q", view.QueryText)
	}

	return &Result{
		Records: resp.Results,
		Stats: models.SearchStats{
			Total:          resp.Total,
			ElapsedSeconds: time.Since(started).Seconds(),
			Label:          label,
		},
		Route: RouteRemoteSearch,
	}, nil
}

// localFallback runs a substring match over the cached snapshot, honoring
// any sector constraint. "No results" is reported only here, once both the
// remote and local paths came up empty. Locally resolved results always
// report zero elapsed time.
func (r *Resolver) localFallback(view models.ViewState, res Resolution, snapshot []models.Instrument) (*Result, error) {
	candidates := snapshot
	if res.Sector != "" {
		candidates = FilterBySector(candidates, res.Sector)
	}

	matched := FilterByText(candidates, view.QueryText)
	matched = capLimit(matched, view.Limit)

	label := fmt.Sprintf("Results for %q", view.QueryText)
	if len(matched) == 0 {
		label = "No results"
	}

	return &Result{
		Records: matched,
		Stats: models.SearchStats{
			Total:          len(matched),
			ElapsedSeconds: 0,
			Label:          label,
		},
		Route: RouteRemoteSearch,
	}, nil
}

// FilterBySector keeps instruments whose sector (or symbol) matches the
// filter, case-insensitive, exact or substring.
func FilterBySector(records []models.Instrument, sector string) []models.Instrument {
	if sector == "" {
		return records
	}
	needle := strings.ToLower(strings.TrimSpace(sector))

	var out []models.Instrument
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Sector), needle) ||
			strings.Contains(strings.ToLower(rec.Symbol), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// FilterByTrend keeps instruments whose live change matches the direction.
func FilterByTrend(records []models.Instrument, trend string) []models.Instrument {
	var out []models.Instrument
	for _, rec := range records {
		switch trend {
		case "up":
			if rec.ChangePercent > 0 {
				out = append(out, rec)
			}
		case "down":
			if rec.ChangePercent < 0 {
				out = append(out, rec)
			}
		default:
			out = append(out, rec)
		}
	}
	return out
}

// FilterByText keeps instruments whose company name or symbol contains any
// query term.
func FilterByText(records []models.Instrument, text string) []models.Instrument {
	terms := strings.Fields(normalize(text))
	if len(terms) == 0 {
		return nil
	}

	var out []models.Instrument
	for _, rec := range records {
		name := strings.ToLower(rec.CompanyName)
		sym := strings.ToLower(rec.Symbol)
		for _, term := range terms {
			if strings.Contains(name, term) || strings.Contains(sym, term) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func capLimit(records []models.Instrument, limit int) []models.Instrument {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func localStats(total int, label string) models.SearchStats {
	return models.SearchStats{
		Total:          total,
		ElapsedSeconds: 0,
		Label:          label,
	}
}
