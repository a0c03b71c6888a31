// Package engine contains the live instrument synchronization engine: the
// display reconciler, the price simulator, the snapshot fetcher, and the
// scheduler that ties them to the push channel.
package engine

import (
	"sync"
	"time"

	"stockdeck/internal/models"
)

// Reconciler is the single owner of the currently displayed instrument
// list. Every other component produces proposed updates that the reconciler
// applies; nothing else mutates displayed records.
//
// Authoritative updates (snapshot fetch, push channel) merge
// latest-timestamp-wins and always outrank simulation, which only ever
// touches the displayed price.
type Reconciler struct {
	mu    sync.RWMutex
	order []string
	rows  map[string]*models.Instrument
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		rows: make(map[string]*models.Instrument),
	}
}

// ApplySnapshot applies an authoritative snapshot. When replace is true the
// snapshot defines the displayed membership and order; when false it only
// refreshes symbols already displayed (search result views keep their
// membership while prices stay live).
//
// Change direction is recomputed from the previous authoritative price,
// never from the simulated displayed price. The simulation baseline resets
// with the new price, so a mid-flight simulation tick cannot overwrite a
// just-received real value with a stale extrapolation.
func (r *Reconciler) ApplySnapshot(records []models.Instrument, replace bool, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if replace {
		newOrder := make([]string, 0, len(records))
		newRows := make(map[string]*models.Instrument, len(records))

		for _, rec := range records {
			if rec.Symbol == "" {
				continue
			}
			row := rec
			row.LastUpdated = pickTime(rec.LastUpdated, now)

			if prev, ok := r.rows[rec.Symbol]; ok {
				row.Direction = models.DirectionBetween(prev.Price, rec.Price)
			} else {
				row.Direction = models.DirectionNone
			}
			// Authoritative values win outright; the displayed price snaps
			// to the real one, never a blend.
			row.DisplayPrice = rec.Price

			newOrder = append(newOrder, rec.Symbol)
			newRows[rec.Symbol] = &row
		}

		r.order = newOrder
		r.rows = newRows
		return
	}

	for _, rec := range records {
		row, ok := r.rows[rec.Symbol]
		if !ok {
			continue
		}
		ts := pickTime(rec.LastUpdated, now)
		if ts.Before(row.LastUpdated) {
			continue
		}
		row.Direction = models.DirectionBetween(row.Price, rec.Price)
		row.Price = rec.Price
		row.DisplayPrice = rec.Price
		row.Volume = rec.Volume
		row.ChangePercent = rec.ChangePercent
		if rec.CompanyName != "" {
			row.CompanyName = rec.CompanyName
		}
		if rec.Sector != "" {
			row.Sector = rec.Sector
		}
		row.LastUpdated = ts
	}
}

// ApplyUpdates merges partial push updates. Updates are authoritative at
// the same trust level as a snapshot fetch: latest timestamp wins, omitted
// fields are left untouched, and out-of-order updates are dropped.
func (r *Reconciler) ApplyUpdates(updates []models.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range updates {
		row, ok := r.rows[u.Symbol]
		if !ok {
			continue
		}

		ts := pickTime(u.Timestamp, time.Now())
		if ts.Before(row.LastUpdated) {
			continue
		}

		if u.HasPrice {
			row.Direction = models.DirectionBetween(row.Price, u.Price)
			row.Price = u.Price
			row.DisplayPrice = u.Price
		}
		if u.HasVolume {
			row.Volume = u.Volume
		}
		if u.HasChange {
			row.ChangePercent = u.ChangePercent
		}
		row.LastUpdated = ts
	}
}

// SimulateTick applies one cosmetic interpolation pass. step receives the
// last authoritative price and the currently displayed price and returns
// the next displayed price. Only the displayed price is written; the
// authoritative fields stay intact, so stopping the simulator at any point
// leaves correct state behind.
func (r *Reconciler) SimulateTick(step func(real, shown float64) float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sym := range r.order {
		row := r.rows[sym]
		row.DisplayPrice = step(row.Price, row.DisplayPrice)
	}
}

// Snapshot returns a copy of the displayed list in display order.
func (r *Reconciler) Snapshot() []models.Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Instrument, 0, len(r.order))
	for _, sym := range r.order {
		out = append(out, *r.rows[sym])
	}
	return out
}

// Symbols returns the visible symbol set in display order. This set drives
// push channel (re)subscription.
func (r *Reconciler) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of displayed instruments.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func pickTime(ts, fallback time.Time) time.Time {
	if ts.IsZero() {
		return fallback
	}
	return ts
}

// SameSymbols reports whether two symbol sets have identical membership,
// ignoring order.
func SameSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}
