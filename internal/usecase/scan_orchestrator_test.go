package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	"SignalBot/internal/service/scorer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog map[string][]models.Instrument

func (c stubCatalog) Group(name string) ([]models.Instrument, error) {
	g, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("unknown group %s", name)
	}
	return g, nil
}

// stubScorer returns a fixed confidence per symbol; symbols listed in panics
// blow up and unknown symbols produce a fallback record.
type stubScorer struct {
	mu     sync.Mutex
	conf   map[string]float64
	panics map[string]bool
	calls  int32
}

func (s *stubScorer) Score(_ context.Context, symbol string, tf domrepo.Timeframe) *models.SignalRecord {
	atomic.AddInt32(&s.calls, 1)
	if s.panics[symbol] {
		panic("provider exploded")
	}
	s.mu.Lock()
	c, ok := s.conf[symbol]
	s.mu.Unlock()
	if !ok {
		return s.Fallback(symbol, tf)
	}
	return &models.SignalRecord{ID: symbol + string(tf), Symbol: symbol, Timeframe: string(tf), Direction: models.DirectionCall, Confidence: c, Score: 3}
}

func (s *stubScorer) Fallback(symbol string, tf domrepo.Timeframe) *models.SignalRecord {
	return &models.SignalRecord{Symbol: symbol, Timeframe: string(tf), Direction: models.DirectionPut, Confidence: 84, Score: 2, Fallback: true}
}

// stallingMarket serves a rising series except for symbols in hang, which
// block until the caller's context ends.
type stallingMarket struct {
	hang map[string]bool
}

func (m stallingMarket) FetchOHLC(ctx context.Context, symbol, interval, lookback string) ([]models.OHLCBar, error) {
	if m.hang[symbol] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.OHLCBar, 30)
	for i := range bars {
		c := float64(100 + i)
		bars[i] = models.OHLCBar{Time: start.Add(time.Duration(i) * time.Minute), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000}
	}
	return bars, nil
}

type fixedRandom struct{ n int }

func (r fixedRandom) Float64() float64 { return 0 }
func (r fixedRandom) Intn(n int) int   { return r.n % n }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testCatalog() stubCatalog {
	return stubCatalog{
		"otc": {
			{Name: "A OTC", Symbol: "A", Class: models.InstrumentOTC, Payout: 92},
			{Name: "B OTC", Symbol: "B", Class: models.InstrumentOTC, Payout: 92},
		},
		"regular": {
			{Name: "C", Symbol: "C", Class: models.InstrumentRegular, Payout: 85},
			{Name: "D", Symbol: "D", Class: models.InstrumentRegular, Payout: 85},
		},
	}
}

func testPlan() ScanPlan {
	return ScanPlan{
		models.ClassShort: {
			Timeframes:     []domrepo.Timeframe{domrepo.TF1M},
			Groups:         []GroupGate{{Group: "otc", MinConfidence: 80}, {Group: "regular", MinConfidence: 75}},
			FallbackGroups: []string{"otc"},
		},
		models.ClassLong: {
			Timeframes:     []domrepo.Timeframe{domrepo.TF1H, domrepo.TF4H},
			Groups:         []GroupGate{{Group: "otc", MinConfidence: 80}, {Group: "regular", MinConfidence: 75}},
			FallbackGroups: []string{"otc", "regular"},
		},
	}
}

func TestScanPlan_Validate(t *testing.T) {
	require.NoError(t, testPlan().Validate(testCatalog()))

	bad := testPlan()
	cp := bad[models.ClassLong]
	cp.FallbackGroups = []string{"bonds"}
	bad[models.ClassLong] = cp
	assert.Error(t, bad.Validate(testCatalog()))

	delete(bad, models.ClassShort)
	assert.Error(t, bad.Validate(testCatalog()))
}

func TestScan_RanksWithPayoutBonusAndGates(t *testing.T) {
	sc := &stubScorer{conf: map[string]float64{"A": 81, "B": 79, "C": 90, "D": 74}}
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil)

	res, err := o.Scan(context.Background(), models.ClassShort, false)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	// A: 81+25 beats C: 90; B and D miss their gates
	assert.Equal(t, "A OTC", res.Candidates[0].Instrument.Name)
	assert.Equal(t, "C", res.Candidates[1].Instrument.Name)
	assert.Equal(t, "1M", res.Candidates[0].Timeframe)
	assert.False(t, res.Synthetic)

	cached, ok := o.Cache().Get(models.ClassShort)
	require.True(t, ok)
	assert.Equal(t, res.Candidates, cached.Candidates)
}

func TestScan_KeepsTopThreeStable(t *testing.T) {
	sc := &stubScorer{conf: map[string]float64{"A": 85, "B": 85, "C": 85, "D": 85}}
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil)

	res, err := o.Scan(context.Background(), models.ClassShort, false)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)
	names := []string{res.Candidates[0].Instrument.Name, res.Candidates[1].Instrument.Name, res.Candidates[2].Instrument.Name}
	assert.Equal(t, []string{"A OTC", "B OTC", "C"}, names)
}

func TestScan_PartialFailureIsolation(t *testing.T) {
	sc := &stubScorer{
		conf:   map[string]float64{"A": 88, "C": 80, "D": 78},
		panics: map[string]bool{"B": true},
	}
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil)

	res, err := o.Scan(context.Background(), models.ClassShort, false)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)
	for _, c := range res.Candidates {
		assert.NotEqual(t, "B OTC", c.Instrument.Name)
	}
}

func TestScan_HangingInstrumentDoesNotBlockOthers(t *testing.T) {
	sc := scorer.New(stallingMarket{hang: map[string]bool{"B": true}},
		scorer.WithFetchTimeout(50*time.Millisecond),
		scorer.WithRetry(1, 0),
		scorer.WithRandom(fixedRandom{}))
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil)

	start := time.Now()
	res, err := o.Scan(context.Background(), models.ClassShort, false)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 2*time.Second)
	require.Len(t, res.Candidates, 3)
	assert.False(t, res.Synthetic)
	// B falls back at 70 and misses the OTC gate
	names := []string{res.Candidates[0].Instrument.Name, res.Candidates[1].Instrument.Name, res.Candidates[2].Instrument.Name}
	assert.Equal(t, []string{"A OTC", "C", "D"}, names)
	for _, c := range res.Candidates {
		assert.False(t, c.Signal.Fallback)
	}
}

func TestScan_GatedFallbackRecordsAreRanked(t *testing.T) {
	sc := &stubScorer{conf: map[string]float64{"C": 76}}
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil)

	res, err := o.Scan(context.Background(), models.ClassShort, false)
	require.NoError(t, err)
	// A, B and D fall back at 84; OTC ones clear 80 and take the payout bonus
	require.Len(t, res.Candidates, 3)
	assert.False(t, res.Synthetic)
	names := []string{res.Candidates[0].Instrument.Name, res.Candidates[1].Instrument.Name, res.Candidates[2].Instrument.Name}
	assert.Equal(t, []string{"A OTC", "B OTC", "D"}, names)
	assert.True(t, res.Candidates[0].Signal.Fallback)

	cfg := DefaultOrchestratorConfig()
	cfg.RankFallbacks = false
	o = NewScanOrchestrator(sc, testCatalog(), testPlan(), cfg, nil)
	res, err = o.Scan(context.Background(), models.ClassShort, false)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "C", res.Candidates[0].Instrument.Name)
}

func TestScan_LongCacheTTL(t *testing.T) {
	clk := newFakeClock()
	sc := &stubScorer{conf: map[string]float64{"A": 90, "B": 85, "C": 80, "D": 80}}
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil, WithOrchestratorClock(clk.Now))
	ctx := context.Background()

	first, err := o.Scan(ctx, models.ClassLong, false)
	require.NoError(t, err)
	calls := atomic.LoadInt32(&sc.calls)
	assert.EqualValues(t, 8, calls)

	clk.Advance(179 * time.Second)
	second, err := o.Scan(ctx, models.ClassLong, false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ScannedAt, second.ScannedAt)
	assert.Equal(t, first.Candidates, second.Candidates)
	assert.Equal(t, calls, atomic.LoadInt32(&sc.calls))

	clk.Advance(2 * time.Second)
	third, err := o.Scan(ctx, models.ClassLong, false)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2*calls, atomic.LoadInt32(&sc.calls))
}

func TestScan_ForceAndShortBypassCache(t *testing.T) {
	sc := &stubScorer{conf: map[string]float64{"A": 90}}
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil)
	ctx := context.Background()

	_, err := o.Scan(ctx, models.ClassLong, false)
	require.NoError(t, err)
	res, err := o.Scan(ctx, models.ClassLong, true)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.EqualValues(t, 16, atomic.LoadInt32(&sc.calls))

	_, err = o.Scan(ctx, models.ClassShort, false)
	require.NoError(t, err)
	_, err = o.Scan(ctx, models.ClassShort, false)
	require.NoError(t, err)
	assert.EqualValues(t, 24, atomic.LoadInt32(&sc.calls))
}

func TestScan_EmptyResultYieldsFallbackCandidate(t *testing.T) {
	sc := &stubScorer{conf: map[string]float64{"A": 70, "B": 70, "C": 70, "D": 70}}
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil,
		WithOrchestratorRandom(fixedRandom{n: 1}))

	res, err := o.Scan(context.Background(), models.ClassLong, false)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.True(t, res.Synthetic)
	c := res.Candidates[0]
	assert.True(t, c.Instrument.IsOTC())
	assert.Equal(t, "B OTC", c.Instrument.Name)
	assert.Equal(t, "4H", c.Timeframe)
	assert.True(t, c.Signal.Fallback)

	// a synthetic result is never served from cache
	before := atomic.LoadInt32(&sc.calls)
	_, err = o.Scan(context.Background(), models.ClassLong, false)
	require.NoError(t, err)
	assert.Greater(t, atomic.LoadInt32(&sc.calls), before)
}

func TestScan_UnknownClass(t *testing.T) {
	o := NewScanOrchestrator(&stubScorer{}, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil)
	_, err := o.Scan(context.Background(), "weekly", false)
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestScan_ConcurrentSameClass(t *testing.T) {
	sc := &stubScorer{conf: map[string]float64{"A": 90, "C": 80}}
	o := NewScanOrchestrator(sc, testCatalog(), testPlan(), DefaultOrchestratorConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Scan(context.Background(), models.ClassLong, false)
			assert.NoError(t, err)
			assert.NotEmpty(t, res.Candidates)
		}()
	}
	wg.Wait()
	// serialized per class: only the first scan hits the scorer
	assert.EqualValues(t, 8, atomic.LoadInt32(&sc.calls))
}
