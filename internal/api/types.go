package api

import (
	"encoding/json"

	"stockdeck/internal/models"
)

// InstrumentsRequest holds the query parameters for the instrument list
// endpoint. Encoded with go-querystring.
type InstrumentsRequest struct {
	Sector string `url:"sector,omitempty"`
	Limit  int    `url:"limit,omitempty"`
}

// SearchRequest is the body of a remote search call.
type SearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Sector string `json:"sector,omitempty"`
}

// searchMetrics is the nested metrics block of a scored search result.
type searchMetrics struct {
	Price         float64 `json:"price"`
	Volume        int64   `json:"volume"`
	ChangePercent float64 `json:"change_percent"`
}

// searchResult is one entry of a search response. Plain results carry the
// instrument fields inline; scored results nest them under "metrics".
type searchResult struct {
	Symbol        string         `json:"symbol"`
	CompanyName   string         `json:"company_name"`
	Sector        string         `json:"sector"`
	Price         float64        `json:"price"`
	Volume        int64          `json:"volume"`
	ChangePercent float64        `json:"change_percent"`
	Score         float64        `json:"_score"`
	Metrics       *searchMetrics `json:"metrics"`
}

// flatten normalizes a search result to the instrument shape, hoisting the
// nested metrics block when present.
func (r searchResult) flatten() models.Instrument {
	inst := models.Instrument{
		Symbol:        r.Symbol,
		CompanyName:   r.CompanyName,
		Sector:        r.Sector,
		Price:         r.Price,
		Volume:        r.Volume,
		ChangePercent: r.ChangePercent,
	}
	if r.Metrics != nil {
		inst.Price = r.Metrics.Price
		inst.Volume = r.Metrics.Volume
		inst.ChangePercent = r.Metrics.ChangePercent
	}
	return inst
}

// SearchResponse is the decoded body of a search call.
type SearchResponse struct {
	Results []models.Instrument
	Total   int
	Elapsed float64
	Summary string
}

// searchResponseWire matches the backend's JSON shape before flattening.
type searchResponseWire struct {
	Results      []searchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	Time         float64        `json:"time"`
	Summary      string         `json:"summary"`
}

func decodeSearchResponse(data []byte) (*SearchResponse, error) {
	var wire searchResponseWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Total:   wire.TotalResults,
		Elapsed: wire.Time,
		Summary: wire.Summary,
	}
	for _, r := range wire.Results {
		resp.Results = append(resp.Results, r.flatten())
	}
	if resp.Total == 0 {
		resp.Total = len(resp.Results)
	}
	return resp, nil
}
