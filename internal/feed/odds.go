package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/models"
)

// Market keys in the order a total line is looked for: full game, then alternates.
var totalMarkets = []string{"18_3", "18_9", "18_6"}

const spreadMarket = "18_2"

type oddsEndpoint struct {
	name  string
	path  string
	extra url.Values
}

var oddsEndpoints = []oddsEndpoint{
	{name: "odds_v1", path: "/v1/event/odds"},
	{name: "odds_v2_market3", path: "/v2/event/odds", extra: url.Values{"odds_market": {"3"}}},
	{name: "odds_v2", path: "/v2/event/odds"},
	{name: "odds_v2_summary", path: "/v2/event/odds/summary"},
}

type oddsResponse struct {
	Success flexString      `json:"success"`
	Results json.RawMessage `json:"results"`
}

type quote struct {
	Total     flexString `json:"total"`
	Handicap  flexString `json:"handicap"`
	OverOD    flexString `json:"over_od"`
	OverOdds  flexString `json:"over_odds"`
	UnderOD   flexString `json:"under_od"`
	UnderOdds flexString `json:"under_odds"`
}

// LineFor walks the odds endpoints until one yields a total line. It returns nil, nil when
// none has a line, and an error only when every endpoint failed.
func (c *Client) LineFor(ctx context.Context, gameID string) (*models.Odds, error) {
	var lastErr error
	failed := 0
	for _, ep := range oddsEndpoints {
		q := url.Values{}
		q.Set("token", c.opts.OddsToken)
		q.Set("event_id", gameID)
		for k, v := range ep.extra {
			q[k] = v
		}

		body, err := c.get(ctx, c.odds, ep.name, c.opts.OddsBaseURL+ep.path, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("Odds %s failed for game %s: %v", ep.name, gameID, err)
			lastErr = err
			failed++
			continue
		}

		var resp oddsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			lastErr = fmt.Errorf("failed to decode %s: %w", ep.name, err)
			failed++
			continue
		}
		if resp.Success != "1" || len(resp.Results) == 0 {
			continue
		}
		if odds := normalizeOdds(resp.Results); odds != nil {
			logger.Debug("Odds for game %s from %s/%s: total %.1f spread %.1f",
				gameID, ep.name, odds.SourceMarket, odds.TotalLine, odds.Spread)
			return odds, nil
		}
	}
	if failed == len(oddsEndpoints) {
		return nil, fmt.Errorf("failed to fetch odds for game %s: %w", gameID, lastErr)
	}
	return nil, nil
}

// normalizeOdds picks the total line and spread out of an odds payload. Payload shapes differ
// between endpoints, so every nested object is searched; object keys are visited in sorted
// order, which puts "end" (closing odds) before "kickoff" and "start" in summaries.
func normalizeOdds(raw json.RawMessage) *models.Odds {
	entries := collectObjects(raw, 5)

	var odds *models.Odds
	for _, entry := range entries {
		for _, key := range totalMarkets {
			q, ok := firstQuote(entry[key])
			if !ok {
				continue
			}
			line, ok := q.Total.Float()
			if !ok {
				line, ok = q.Handicap.Float()
			}
			if !ok {
				continue
			}
			odds = &models.Odds{
				TotalLine:    line,
				OverOdds:     string(firstNonEmpty(q.OverOD, q.OverOdds)),
				UnderOdds:    string(firstNonEmpty(q.UnderOD, q.UnderOdds)),
				SourceMarket: key,
			}
			break
		}
		if odds != nil {
			break
		}
	}
	if odds == nil {
		return nil
	}

	for _, entry := range entries {
		q, ok := firstQuote(entry[spreadMarket])
		if !ok {
			continue
		}
		spread, ok := q.Handicap.Float()
		if !ok {
			spread, ok = q.Total.Float()
		}
		if ok {
			odds.Spread = spread
			break
		}
	}
	return odds
}

func collectObjects(raw json.RawMessage, depth int) []map[string]json.RawMessage {
	if depth == 0 || len(raw) == 0 {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		var out []map[string]json.RawMessage
		for _, el := range arr {
			out = append(out, collectObjects(el, depth-1)...)
		}
		return out
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}

	out := []map[string]json.RawMessage{obj}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, collectObjects(obj[k], depth-1)...)
	}
	return out
}

func firstQuote(raw json.RawMessage) (quote, bool) {
	if len(raw) == 0 {
		return quote{}, false
	}
	var quotes []quote
	if err := json.Unmarshal(raw, &quotes); err != nil || len(quotes) == 0 {
		return quote{}, false
	}
	return quotes[0], true
}

func firstNonEmpty(vals ...flexString) flexString {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
