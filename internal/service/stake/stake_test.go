package stake

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestMartingale(t *testing.T) {
	s, err := NewRegistry(Config{}).Get("martingale")
	require.NoError(t, err)
	assertDec(t, "300", s.NextStake(d("100"), d("100"), false))
	assertDec(t, "100", s.NextStake(d("900"), d("100"), true))
	assertDec(t, "10", s.Initial(d("3640")))
}

func TestPercentageAndConservative(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	p, err := r.Get("Percentage")
	require.NoError(t, err)
	assertDec(t, "250", p.Initial(d("10000")))
	assertDec(t, "250", p.NextStake(d("250"), d("250"), false))

	c, err := r.Get("conservative")
	require.NoError(t, err)
	assertDec(t, "100", c.Initial(d("10000")))
	assertDec(t, "100", c.NextStake(d("500"), d("100"), true))
}

func TestDAlembert(t *testing.T) {
	s, err := NewRegistry(DefaultConfig()).Get("dalembert")
	require.NoError(t, err)
	assertDec(t, "200", s.Initial(d("10000")))
	assertDec(t, "210", s.NextStake(d("200"), d("200"), false))
	assertDec(t, "200", s.NextStake(d("205"), d("200"), true))
	assertDec(t, "220", s.NextStake(d("230"), d("200"), true))
}

func TestUnknownFallsBackToMartingale(t *testing.T) {
	s, err := NewRegistry(DefaultConfig()).Get("fibonacci")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	require.NotNil(t, s)
	assert.Equal(t, Martingale, s.Name())
}

func TestNext(t *testing.T) {
	s, _ := NewRegistry(DefaultConfig()).Get("martingale")
	lost := false
	assertDec(t, "10", Next(s, Step{Balance: d("3640")}))
	assertDec(t, "30", Next(s, Step{Balance: d("3640"), Current: d("10"), Won: &lost}))
	assertDec(t, "150", Next(s, Step{Current: d("50"), Base: d("25"), Won: &lost}))
}
