package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOdds(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantNil    bool
		wantTotal  float64
		wantSpread float64
		wantMarket string
		wantOver   string
	}{
		{
			name:       "total and spread as strings",
			payload:    `{"18_3":[{"total":"215.5","over_od":"1.90","under_od":"1.90"}],"18_2":[{"handicap":"-4.5"}]}`,
			wantTotal:  215.5,
			wantSpread: -4.5,
			wantMarket: "18_3",
			wantOver:   "1.90",
		},
		{
			name:       "numbers and handicap fallback",
			payload:    `{"18_9":[{"handicap":210,"over_odds":1.85}],"18_2":[{"total":3.5}]}`,
			wantTotal:  210,
			wantSpread: 3.5,
			wantMarket: "18_9",
			wantOver:   "1.85",
		},
		{
			name:       "priority prefers 18_3",
			payload:    `{"18_6":[{"total":"100.5"}],"18_3":[{"total":"220"}]}`,
			wantTotal:  220,
			wantMarket: "18_3",
		},
		{
			name:       "skips market without a numeric line",
			payload:    `{"18_3":[{"total":""}],"18_6":[{"total":"99.5"}]}`,
			wantTotal:  99.5,
			wantMarket: "18_6",
		},
		{
			name:       "array of entries and missing spread",
			payload:    `[{"18_1":[{"home_od":"1.5"}]},{"18_3":[{"total":"201"}]}]`,
			wantTotal:  201,
			wantMarket: "18_3",
		},
		{
			name:       "nested odds object",
			payload:    `{"stats":{"matching_dir":1},"odds":{"18_3":[{"total":"211.5"}],"18_2":[{"handicap":"2.5"}]}}`,
			wantTotal:  211.5,
			wantSpread: 2.5,
			wantMarket: "18_3",
		},
		{
			name:       "summary prefers closing odds",
			payload:    `{"Bet365":{"odds":{"end":{"18_3":[{"total":"212"}]},"start":{"18_3":[{"total":"205"}]}}}}`,
			wantTotal:  212,
			wantMarket: "18_3",
		},
		{
			name:    "no total market",
			payload: `{"18_2":[{"handicap":"-3"}]}`,
			wantNil: true,
		},
		{
			name:    "empty market list",
			payload: `{"18_3":[]}`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeOdds(json.RawMessage(tt.payload))
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantTotal, got.TotalLine)
			assert.Equal(t, tt.wantSpread, got.Spread)
			assert.Equal(t, tt.wantMarket, got.SourceMarket)
			if tt.wantOver != "" {
				assert.Equal(t, tt.wantOver, got.OverOdds)
			}
		})
	}
}

func TestLineFor_FallbackChain(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9001", r.URL.Query().Get("event_id"))
		key := r.URL.Path
		if m := r.URL.Query().Get("odds_market"); m != "" {
			key += "?odds_market=" + m
		}
		seen = append(seen, key)

		switch key {
		case "/v1/event/odds":
			_, _ = w.Write([]byte(`{"success":0}`))
		case "/v2/event/odds?odds_market=3":
			_, _ = w.Write([]byte(`{"success":1,"results":{"odds":{"18_1":[{"home_od":"1.4"}]}}}`))
		case "/v2/event/odds":
			_, _ = w.Write([]byte(`{"success":1,"results":{"odds":{"18_3":[{"total":"208.5"}],"18_2":[{"handicap":"-6"}]}}}`))
		default:
			t.Errorf("unexpected request %s", key)
		}
	}))
	defer srv.Close()

	odds, err := testClient(srv.URL).LineFor(context.Background(), "9001")
	require.NoError(t, err)
	require.NotNil(t, odds)
	assert.Equal(t, 208.5, odds.TotalLine)
	assert.Equal(t, -6.0, odds.Spread)
	assert.Equal(t, []string{"/v1/event/odds", "/v2/event/odds?odds_market=3", "/v2/event/odds"}, seen)
}

func TestLineFor_UnsupportedEndpointsKeepBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/event/odds" && r.URL.Query().Get("odds_market") == "" {
			_, _ = w.Write([]byte(`{"success":1,"results":{"18_3":[{"total":"201.5"}]}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:           srv.URL,
		Token:             "tok",
		RequestsPerMinute: 6000,
		MaxRetries:        1,
		Backoff:           time.Millisecond,
		BreakerFailures:   2,
		BreakerCooldown:   time.Minute,
	})

	for i := 0; i < 3; i++ {
		odds, err := c.LineFor(context.Background(), "9001")
		require.NoError(t, err)
		require.NotNil(t, odds)
		assert.Equal(t, 201.5, odds.TotalLine)
	}
}

func TestLineFor_NoLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":1,"results":[]}`))
	}))
	defer srv.Close()

	odds, err := testClient(srv.URL).LineFor(context.Background(), "9001")
	assert.NoError(t, err)
	assert.Nil(t, odds)
}

func TestLineFor_AllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.opts.MaxRetries = 1
	odds, err := c.LineFor(context.Background(), "9001")
	assert.Error(t, err)
	assert.Nil(t, odds)
}

func TestLineFor_SeparateOddsHost(t *testing.T) {
	oddsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "odds-tok", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`{"success":1,"results":{"18_3":[{"total":"199.5"}]}}`))
	}))
	defer oddsSrv.Close()

	c := NewClient(Options{
		BaseURL:           "http://127.0.0.1:1",
		Token:             "tok",
		OddsBaseURL:       oddsSrv.URL,
		OddsToken:         "odds-tok",
		RequestsPerMinute: 6000,
	})
	odds, err := c.LineFor(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, odds)
	assert.Equal(t, 199.5, odds.TotalLine)
}
