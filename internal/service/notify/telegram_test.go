package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"SignalBot/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDelivery() *models.Delivery {
	return &models.Delivery{
		Candidate: models.Candidate{
			Instrument: models.Instrument{Name: "EUR/USD OTC", Symbol: "EURUSD=X", Payout: 92},
			Signal: &models.SignalRecord{
				ID:         "sig-1",
				Direction:  models.DirectionCall,
				Confidence: 87.5,
			},
			Timeframe: "5M",
		},
		Class:           models.ClassShort,
		BrokerName:      "EUR/USD OTC",
		ExpirationLabel: "5 minutes",
	}
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `EUR/USD \(OTC\) 1\.5\!`, escapeMarkdown("EUR/USD (OTC) 1.5!"))
	assert.Equal(t, `a\_b\*c`, escapeMarkdown("a_b*c"))
	assert.Equal(t, "плохо", escapeMarkdown("плохо"))
}

func TestFormat(t *testing.T) {
	d := sampleDelivery()
	text := Format(d, "https://po.example/ref?a=1")
	assert.Contains(t, text, "🟢 *SHORT SIGNAL*")
	assert.Contains(t, text, `87\.5%`)
	assert.Contains(t, text, "5 minutes")
	assert.Contains(t, text, "(https://po.example/ref?a=1)")
	assert.NotContains(t, text, "not based on live indicators")

	d.Signal.Fallback = true
	d.Signal.Direction = models.DirectionPut
	text = Format(d, "")
	assert.Contains(t, text, "🔴")
	assert.Contains(t, text, `not based on live indicators\.`)
}

func TestTelegram_Notify(t *testing.T) {
	var got sendMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{BotToken: "TOKEN", BaseURL: srv.URL}, nil)
	require.NoError(t, tg.Notify(context.Background(), "42", sampleDelivery()))
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "MarkdownV2", got.ParseMode)
	require.NotNil(t, got.ReplyMarkup)
	assert.Equal(t, "result_win_sig-1", got.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestTelegram_Errors(t *testing.T) {
	err := NewTelegram(TelegramConfig{}, nil).Notify(context.Background(), "1", sampleDelivery())
	assert.ErrorIs(t, err, ErrNoToken)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()
	err = NewTelegram(TelegramConfig{BotToken: "T", BaseURL: srv.URL}, nil).Notify(context.Background(), "1", sampleDelivery())
	assert.ErrorContains(t, err, "chat not found")
}

type recordingNotifier struct {
	chatID string
	d      *models.Delivery
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, chatID string, d *models.Delivery) error {
	r.chatID, r.d = chatID, d
	return r.err
}

type loopbackQueue struct{ job *Job }

func (q loopbackQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	// round-trip through JSON the way the redis queue does
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	raw, _ := json.Marshal(m)
	return q.job.Handle(ctx, json.RawMessage(raw))
}

func TestQueuedNotifier_RoundTrip(t *testing.T) {
	rec := &recordingNotifier{}
	n := NewQueued(loopbackQueue{job: NewJob(rec, nil)})

	require.NoError(t, n.Notify(context.Background(), "99", sampleDelivery()))
	assert.Equal(t, "99", rec.chatID)
	require.NotNil(t, rec.d)
	assert.Equal(t, "sig-1", rec.d.Signal.ID)
	assert.Equal(t, "EUR/USD OTC", rec.d.Instrument.Name)

	rec.err = errors.New("boom")
	assert.Error(t, n.Notify(context.Background(), "99", sampleDelivery()))
}

func TestJob_DropsMalformed(t *testing.T) {
	rec := &recordingNotifier{}
	job := NewJob(rec, nil)
	assert.NoError(t, job.Handle(context.Background(), Payload{ChatID: "1"}))
	assert.Empty(t, rec.chatID)
	assert.Equal(t, JobTypeSignal, job.Type())
}
