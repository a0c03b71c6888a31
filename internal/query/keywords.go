package query

import (
	"strings"
)

// sectorKeywords maps query tokens to canonical sector names. First match
// wins; one sector per query.
var sectorKeywords = []struct {
	keyword string
	sector  string
}{
	{"tech", "Technology"},
	{"technology", "Technology"},
	{"software", "Technology"},
	{"it", "Technology"},

	{"finance", "Financial"},
	{"financial", "Financial"},
	{"bank", "Financial"},
	{"banking", "Financial"},

	{"energy", "Energy"},
	{"oil", "Energy"},
	{"gas", "Energy"},

	{"healthcare", "Healthcare"},
	{"health", "Healthcare"},
	{"pharma", "Healthcare"},
	{"pharmaceutical", "Healthcare"},

	{"automotive", "Automotive"},
	{"auto", "Automotive"},
	{"car", "Automotive"},
	{"ev", "Automotive"},

	{"retail", "Consumer Cyclical"},
	{"consumer", "Consumer Cyclical"},

	{"industrial", "Industrials"},
	{"manufacturing", "Industrials"},
}

// allSynonyms are phrases that mean "show everything". Matched against the
// whole normalized query, not individual tokens, so that "all tech stocks"
// is not mistaken for a bare "all".
var allSynonyms = map[string]bool{
	"all":             true,
	"every":           true,
	"everything":      true,
	"show all":        true,
	"list all":        true,
	"show everything": true,
	"all stocks":      true,
	"every stock":     true,
	"list all stocks": true,
	"show all stocks": true,
}

// trendKeywords map tokens to a live-data trend filter direction.
var trendKeywords = map[string]string{
	"gainers": "up",
	"rising":  "up",
	"up":      "up",
	"green":   "up",
	"losers":  "down",
	"falling": "down",
	"down":    "down",
	"red":     "down",
}

// fillerTokens are ignored when deciding whether anything searchable
// remains in a query after hint extraction.
var fillerTokens = map[string]bool{
	"stock": true, "stocks": true, "show": true, "list": true,
	"me": true, "the": true, "all": true, "every": true, "everything": true,
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}

// detectSector returns the canonical sector hinted at by the query text,
// matching whole tokens only ("momentum" must not match "tech").
func detectSector(text string) (string, bool) {
	tokens := tokenSet(text)
	for _, kw := range sectorKeywords {
		if tokens[kw.keyword] {
			return kw.sector, true
		}
	}
	return "", false
}

// detectTrend returns the trend direction hinted at by the query text.
func detectTrend(text string) (string, bool) {
	for token := range tokenSet(text) {
		if dir, ok := trendKeywords[token]; ok {
			return dir, true
		}
	}
	return "", false
}

// isShowAll reports whether the normalized query is an "everything" phrase.
func isShowAll(text string) bool {
	return allSynonyms[normalize(text)]
}

// hasSearchTerms reports whether any token remains once sector hints, trend
// hints, and filler words are stripped. If nothing remains, the query can be
// resolved locally.
func hasSearchTerms(text string) bool {
	sectorTokens := make(map[string]bool, len(sectorKeywords))
	for _, kw := range sectorKeywords {
		sectorTokens[kw.keyword] = true
	}

	for token := range tokenSet(text) {
		if fillerTokens[token] || sectorTokens[token] {
			continue
		}
		if _, ok := trendKeywords[token]; ok {
			continue
		}
		return true
	}
	return false
}

// Sector pairs a canonical sector name with the query keywords that map
// to it.
type Sector struct {
	Name     string
	Keywords []string
}

// Sectors returns the known sectors with their keywords, in keyword
// precedence order.
func Sectors() []Sector {
	var out []Sector
	index := make(map[string]int)
	for _, kw := range sectorKeywords {
		i, ok := index[kw.sector]
		if !ok {
			index[kw.sector] = len(out)
			out = append(out, Sector{Name: kw.sector})
			i = len(out) - 1
		}
		out[i].Keywords = append(out[i].Keywords, kw.keyword)
	}
	return out
}

func tokenSet(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, token := range strings.Fields(normalize(text)) {
		tokens[token] = true
	}
	return tokens
}
