package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SignalBot/internal/domain/models"
	"SignalBot/pkg/cache"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func chartBody(start int64, step int64, closes []*float64) map[string]interface{} {
	ts := make([]int64, len(closes))
	var open, high, low, vol []*float64
	for i, c := range closes {
		ts[i] = start + int64(i)*step
		if c == nil {
			open, high, low, vol = append(open, nil), append(high, nil), append(low, nil), append(vol, nil)
			continue
		}
		open = append(open, f(*c))
		high = append(high, f(*c+1))
		low = append(low, f(*c-1))
		vol = append(vol, f(10))
	}
	return map[string]interface{}{
		"chart": map[string]interface{}{
			"result": []interface{}{map[string]interface{}{
				"timestamp": ts,
				"indicators": map[string]interface{}{
					"quote": []interface{}{map[string]interface{}{
						"open": open, "high": high, "low": low, "close": closes, "volume": vol,
					}},
				},
			}},
			"error": nil,
		},
	}
}

type chartServer struct {
	*httptest.Server
	hits   int32
	status int32
	last   atomic.Value
}

func newChartServer(t *testing.T, body interface{}) *chartServer {
	cs := &chartServer{status: http.StatusOK}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&cs.hits, 1)
		cs.last.Store(r.URL.String())
		if code := int(atomic.LoadInt32(&cs.status)); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func TestFetchOHLC_ParsesAndSkipsNullRows(t *testing.T) {
	srv := newChartServer(t, chartBody(1700000000, 60, []*float64{f(100), nil, f(102), f(103)}))
	y := NewYahoo(WithBaseURL(srv.URL))

	bars, err := y.FetchOHLC(context.Background(), "EURUSD=X", "1m", "5d")
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 101.0, bars[0].High)
	assert.Equal(t, 10.0, bars[0].Volume)
	assert.Equal(t, time.Unix(1700000120, 0).UTC(), bars[1].Time)
	assert.Equal(t, "/EURUSD=X?interval=1m&range=5d", srv.last.Load().(string))
}

func TestFetchOHLC_ResamplesDerivedInterval(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC).Unix()
	srv := newChartServer(t, chartBody(start, 60, []*float64{f(1), f(2), f(3), f(4), f(5), f(6), f(7)}))
	y := NewYahoo(WithBaseURL(srv.URL))

	bars, err := y.FetchOHLC(context.Background(), "BTC-USD", "3m", "5d")
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Contains(t, srv.last.Load().(string), "interval=1m")

	assert.Equal(t, models.OHLCBar{Time: time.Unix(start, 0).UTC(), Open: 1, High: 4, Low: 0, Close: 3, Volume: 30}, bars[0])
	assert.Equal(t, 6.0, bars[1].Close)
	assert.Equal(t, 7.0, bars[2].Close)
	assert.Equal(t, 10.0, bars[2].Volume)
}

func TestFetchOHLC_UsesBarCache(t *testing.T) {
	srv := newChartServer(t, chartBody(1700000000, 60, []*float64{f(1), f(2)}))
	mc := cache.NewMemoryCache()
	defer mc.Close()
	y := NewYahoo(WithBaseURL(srv.URL), WithCache(mc, time.Minute))

	first, err := y.FetchOHLC(context.Background(), "AAPL", "1m", "5d")
	require.NoError(t, err)
	second, err := y.FetchOHLC(context.Background(), "AAPL", "1m", "5d")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&srv.hits))
}

func TestFetchOHLC_BreakerOpensOnServerErrors(t *testing.T) {
	srv := newChartServer(t, nil)
	atomic.StoreInt32(&srv.status, http.StatusBadGateway)
	y := NewYahoo(WithBaseURL(srv.URL), WithBreaker(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := y.FetchOHLC(ctx, "AAPL", "1m", "5d")
		require.Error(t, err)
	}
	_, err := y.FetchOHLC(ctx, "AAPL", "1m", "5d")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, atomic.LoadInt32(&srv.hits))
}

func TestFetchOHLC_ClientErrorsDoNotTrip(t *testing.T) {
	srv := newChartServer(t, nil)
	atomic.StoreInt32(&srv.status, http.StatusNotFound)
	y := NewYahoo(WithBaseURL(srv.URL), WithBreaker(2, time.Minute))

	for i := 0; i < 4; i++ {
		_, err := y.FetchOHLC(context.Background(), "NOPE", "1m", "5d")
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.EqualValues(t, 4, atomic.LoadInt32(&srv.hits))
}

func TestFetchOHLC_EmptyAndUnsupported(t *testing.T) {
	srv := newChartServer(t, chartBody(1700000000, 60, []*float64{nil, nil}))
	y := NewYahoo(WithBaseURL(srv.URL))

	_, err := y.FetchOHLC(context.Background(), "AAPL", "1m", "5d")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = y.FetchOHLC(context.Background(), "AAPL", "7m", "5d")
	assert.ErrorIs(t, err, ErrUnsupportedRange)
}

func TestResample_FourHours(t *testing.T) {
	start := time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)
	var bars []models.OHLCBar
	for i := 0; i < 6; i++ {
		c := float64(10 + i)
		bars = append(bars, models.OHLCBar{Time: start.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c, Volume: 1})
	}
	out := Resample(bars, 4, time.Hour)
	require.Len(t, out, 2)
	// 02:00 and 03:00 fall in the 00:00 bucket
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), out[0].Time)
	assert.Equal(t, 11.0, out[0].Close)
	assert.Equal(t, 2.0, out[0].Volume)
	assert.Equal(t, 12.0, out[1].Open)
	assert.Equal(t, 15.0, out[1].Close)
	assert.Equal(t, 4.0, out[1].Volume)
}
