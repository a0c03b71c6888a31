// Package models provides domain models for the live dashboard engine.
package models

import (
	"time"
)

// ChangeDirection indicates how the latest authoritative price moved
// relative to the previous authoritative price for the same symbol.
type ChangeDirection string

const (
	DirectionUp   ChangeDirection = "up"
	DirectionDown ChangeDirection = "down"
	DirectionNone ChangeDirection = "none"
)

// DirectionBetween computes the change direction between two consecutive
// authoritative prices.
func DirectionBetween(prev, next float64) ChangeDirection {
	switch {
	case next > prev:
		return DirectionUp
	case next < prev:
		return DirectionDown
	default:
		return DirectionNone
	}
}

// Instrument represents one tradable entity at a point in time.
//
// Price is the last authoritative value received from a snapshot fetch or a
// push update. DisplayPrice is what the UI renders and may transiently
// diverge from Price while the simulator interpolates between real updates.
type Instrument struct {
	Symbol        string          `json:"symbol"`
	CompanyName   string          `json:"company_name"`
	Sector        string          `json:"sector"`
	Price         float64         `json:"price"`
	DisplayPrice  float64         `json:"display_price,omitempty"`
	Volume        int64           `json:"volume"`
	ChangePercent float64         `json:"change_percent"`
	LastUpdated   time.Time       `json:"last_updated,omitempty"`
	Direction     ChangeDirection `json:"direction,omitempty"`
}

// Update is a partial per-symbol update delivered by the push channel.
// The Has* flags record which fields the message actually carried; the
// reconciler must not overwrite fields the update omits.
type Update struct {
	Symbol        string
	Price         float64
	HasPrice      bool
	Volume        int64
	HasVolume     bool
	ChangePercent float64
	HasChange     bool
	Timestamp     time.Time
}

// ViewState describes the currently active query. At most one of QueryText
// and SectorFilter is semantically primary; both empty means "show all",
// optionally capped by Limit.
type ViewState struct {
	QueryText    string
	SectorFilter string
	Limit        int
}

// IsShowAll reports whether the view carries no filter at all.
func (v ViewState) IsShowAll() bool {
	return v.QueryText == "" && v.SectorFilter == ""
}

// SearchStats describes how a result set was produced, for display next to
// the result list. ElapsedSeconds is zero for locally resolved results.
type SearchStats struct {
	Total          int
	ElapsedSeconds float64
	Label          string
}

// ChartPoint is one point of an instrument's price history.
type ChartPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// InstrumentDetail is the expanded view of a single instrument, consumed by
// the detail view rather than the sync engine itself.
type InstrumentDetail struct {
	Instrument Instrument   `json:"details"`
	Chart      []ChartPoint `json:"chart"`
}
