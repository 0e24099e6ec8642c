package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"SignalBot/internal/domain/models"
)

func barsFromCloses(closes []float64, spread float64) []models.OHLCBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.OHLCBar, len(closes))
	for i, c := range closes {
		out[i] = models.OHLCBar{
			Time:  start.Add(time.Duration(i) * time.Minute),
			Open:  c,
			High:  c + spread,
			Low:   c - spread,
			Close: c,
		}
	}
	return out
}

func rising(from, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(from + i)
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func TestCompute_InsufficientData(t *testing.T) {
	_, err := Compute(barsFromCloses(rising(100, MinBars-1), 0.5))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCompute_InvalidBar(t *testing.T) {
	bars := barsFromCloses(rising(100, 30), 0.5)
	bars[10].Close = math.NaN()
	if _, err := Compute(bars); !errors.Is(err, ErrInvalidBar) {
		t.Fatalf("expected ErrInvalidBar, got %v", err)
	}
}

func TestCompute_EMAConstantSeries(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 42.5
	}
	rows, err := Compute(barsFromCloses(closes, 0.1))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i, r := range rows {
		for _, v := range []float64{r.EMA20, r.EMA50, r.EMA100} {
			if math.Abs(v-42.5) > 1e-9 {
				t.Fatalf("row %d: ema drifted: %v %v %v", i, r.EMA20, r.EMA50, r.EMA100)
			}
		}
	}
}

func TestCompute_RSIBounds(t *testing.T) {
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/3) + float64(i%7)*0.3
	}
	rows, err := Compute(barsFromCloses(closes, 0.5))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i, r := range rows {
		if r.RSI < 0 || r.RSI > 100 || math.IsNaN(r.RSI) {
			t.Fatalf("row %d: rsi out of range: %v", i, r.RSI)
		}
	}
	if !rows[len(rows)-1].RSIUsable {
		t.Fatalf("expected usable rsi for mixed series")
	}
}

func TestCompute_RisingSeries(t *testing.T) {
	rows, err := Compute(barsFromCloses(rising(100, 30), 0.5))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	last := rows[len(rows)-1]
	if !(last.EMA20 > last.EMA50) {
		t.Fatalf("expected ema20 > ema50, got %v <= %v", last.EMA20, last.EMA50)
	}
	assertClose(t, "rsi", last.RSI, 100, 1e-9)
	if last.RSIUsable {
		t.Fatalf("rsi with zero losses must not be usable")
	}
	if !(last.MACD > last.MACDSignal) {
		t.Fatalf("expected macd > signal, got %v <= %v", last.MACD, last.MACDSignal)
	}
	// 13 points of range below close plus the half-point spread on each side
	assertClose(t, "stoch k", last.StochK, 100*13.5/14, 1e-9)
	assertClose(t, "resistance", last.Resistance, 129.5, 1e-9)
	assertClose(t, "support", last.Support, 119.5, 1e-9)
}

func TestCompute_WarmupFilled(t *testing.T) {
	rows, err := Compute(barsFromCloses(rising(100, 25), 0.5))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i, r := range rows {
		for name, v := range map[string]float64{
			"rsi": r.RSI, "k": r.StochK, "d": r.StochD, "res": r.Resistance, "sup": r.Support,
		} {
			if math.IsNaN(v) {
				t.Fatalf("row %d: %s not filled", i, name)
			}
		}
	}
	// first row takes the first computed value
	if rows[0].Resistance != rows[9].Resistance {
		t.Fatalf("expected backward fill, got %v vs %v", rows[0].Resistance, rows[9].Resistance)
	}
}

func TestCompute_FlatRangeStochastic(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 10
	}
	rows, err := Compute(barsFromCloses(closes, 0))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	last := rows[len(rows)-1]
	if last.StochUsable {
		t.Fatalf("flat range must not be usable")
	}
	if last.RSIUsable {
		t.Fatalf("flat series must not yield usable rsi")
	}
	if last.StochK != 50 || last.RSI != 50 {
		t.Fatalf("expected neutral values, got k=%v rsi=%v", last.StochK, last.RSI)
	}
}

func TestFill(t *testing.T) {
	xs := []float64{nan, nan, 1, nan, 2, nan}
	fill(xs)
	want := []float64{1, 1, 1, 2, 2, 2}
	for i := range want {
		if xs[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, xs[i], want[i])
		}
	}
}

func TestRollingWindows(t *testing.T) {
	xs := []float64{1, 3, 2, 5, 4}
	mean := rollingMean(xs, 3)
	hi := rollingMax(xs, 3)
	lo := rollingMin(xs, 3)
	for i := 0; i < 2; i++ {
		if !math.IsNaN(mean[i]) || !math.IsNaN(hi[i]) || !math.IsNaN(lo[i]) {
			t.Fatalf("index %d: warm-up must be NaN, got mean=%v max=%v min=%v", i, mean[i], hi[i], lo[i])
		}
	}
	wantMean := []float64{2, 10.0 / 3, 11.0 / 3}
	wantMax := []float64{3, 5, 5}
	wantMin := []float64{1, 2, 2}
	for i := 2; i < len(xs); i++ {
		assertClose(t, "mean", mean[i], wantMean[i-2], 1e-12)
		assertClose(t, "max", hi[i], wantMax[i-2], 0)
		assertClose(t, "min", lo[i], wantMin[i-2], 0)
	}

	if got := rollingMean(xs[:2], 3); !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("short input must be all NaN, got %v", got)
	}
}

func TestRollingMean_NaNOnlyMasksItsWindows(t *testing.T) {
	got := rollingMean([]float64{1, nan, 3, 5, 7, 9}, 2)
	for i, want := range []float64{nan, nan, nan, 4, 6, 8} {
		if math.IsNaN(want) {
			if !math.IsNaN(got[i]) {
				t.Fatalf("index %d: want NaN, got %v", i, got[i])
			}
			continue
		}
		assertClose(t, "mean", got[i], want, 1e-12)
	}
}

func TestRollingMean_ZeroWindowIsExact(t *testing.T) {
	xs := []float64{0.1, 0.7, 0.3, 0, 0, 0}
	got := rollingMean(xs, 3)
	if got[5] != 0 {
		t.Fatalf("window of zeros must average to exactly 0, got %v", got[5])
	}
}

func TestEWM(t *testing.T) {
	got := ewm([]float64{1, 2, 3}, 3)
	// alpha = 0.5
	want := []float64{1, 1.5, 2.25}
	for i := range want {
		assertClose(t, "ewm", got[i], want[i], 1e-12)
	}
}

func TestVolatility(t *testing.T) {
	if v := Volatility(barsFromCloses([]float64{5, 5, 5, 5}, 0)); v != 0 {
		t.Fatalf("constant series volatility = %v", v)
	}
	// returns: +10%, -10% -> mean 0, sample std = sqrt(0.02) = 0.141421
	v := Volatility(barsFromCloses([]float64{100, 110, 99}, 0))
	assertClose(t, "volatility", v, math.Sqrt(0.02)*100, 1e-9)
}

func TestVolumeProfile(t *testing.T) {
	bars := barsFromCloses(rising(1, 25), 0)
	for i := range bars {
		bars[i].Volume = 100
	}
	bars[24].Volume = 290
	cur, avg := VolumeProfile(bars, 20)
	assertClose(t, "current", cur, 290, 0)
	assertClose(t, "avg", avg, (19*100+290)/20.0, 1e-9)

	_, avg = VolumeProfile(bars[:5], 20)
	if avg != 0 {
		t.Fatalf("expected zero average for short window, got %v", avg)
	}
}
