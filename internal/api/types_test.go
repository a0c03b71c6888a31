package api

import "testing"

func TestDecodeSearchResponse_FlattensScoredResults(t *testing.T) {
	body := []byte(`{
		"results": [
			{"symbol": "AAPL", "company_name": "Apple Inc", "sector": "Technology",
			 "_score": 9.1,
			 "metrics": {"price": 150.25, "volume": 50000, "change_percent": 1.4}}
		],
		"total_results": 1,
		"time": 0.021,
		"summary": "1 match for apple"
	}`)

	resp, err := decodeSearchResponse(body)
	if err != nil {
		t.Fatal(err)
	}

	rec := resp.Results[0]
	if rec.Price != 150.25 || rec.Volume != 50000 || rec.ChangePercent != 1.4 {
		t.Errorf("metrics not hoisted: %+v", rec)
	}
	if rec.Symbol != "AAPL" || rec.CompanyName != "Apple Inc" {
		t.Errorf("identity fields lost: %+v", rec)
	}
	if resp.Summary != "1 match for apple" {
		t.Errorf("summary = %q", resp.Summary)
	}
}

func TestDecodeSearchResponse_PlainResults(t *testing.T) {
	body := []byte(`{"results":[{"symbol":"XOM","price":110.5,"volume":900,"change_percent":-0.8}]}`)

	resp, err := decodeSearchResponse(body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results[0].Price != 110.5 {
		t.Errorf("inline price lost: %+v", resp.Results[0])
	}
	if resp.Total != 1 {
		t.Errorf("total not derived from results: %d", resp.Total)
	}
}

func TestDecodeSearchResponse_Malformed(t *testing.T) {
	if _, err := decodeSearchResponse([]byte(`{"results": "nope"}`)); err == nil {
		t.Error("malformed body decoded without error")
	}
}
