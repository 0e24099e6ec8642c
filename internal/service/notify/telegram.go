package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SignalBot/internal/domain/models"
	xhttp "SignalBot/pkg/http"
	"SignalBot/pkg/logger"
)

var ErrNoToken = errors.New("telegram: bot token not configured")

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	BotToken string
	BaseURL  string
	RefLink  string
	Timeout  time.Duration
}

// Telegram sends deliveries through the Telegram Bot API using MarkdownV2.
type Telegram struct {
	cfg    TelegramConfig
	client *xhttp.Client
	log    *logger.Logger
}

func NewTelegram(cfg TelegramConfig, lgr *logger.Logger) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Telegram{
		cfg:    cfg,
		client: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		log:    lgr,
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type sendMessage struct {
	ChatID      string `json:"chat_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode"`
	ReplyMarkup *struct {
		InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
	} `json:"reply_markup,omitempty"`
	DisableWebPagePreview bool `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends d to chatID.
func (t *Telegram) Notify(ctx context.Context, chatID string, d *models.Delivery) error {
	if t.cfg.BotToken == "" {
		return ErrNoToken
	}
	msg := sendMessage{
		ChatID:                chatID,
		Text:                  Format(d, t.cfg.RefLink),
		ParseMode:             "MarkdownV2",
		DisableWebPagePreview: true,
	}
	if d.Signal != nil && d.Signal.ID != "" {
		msg.ReplyMarkup = &struct {
			InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
		}{InlineKeyboard: [][]inlineButton{{
			{Text: "✅ WIN", CallbackData: "result_win_" + d.Signal.ID},
			{Text: "❌ LOSS", CallbackData: "result_loss_" + d.Signal.ID},
		}}}
	}

	var resp apiResponse
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken),
		Body:   msg,
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram: rejected: %s", resp.Description)
	}
	t.log.Debug("telegram message sent",
		logger.String("chat_id", chatID),
		logger.String("instrument", d.Instrument.Name))
	return nil
}

// Format renders a delivery as a MarkdownV2 message.
func Format(d *models.Delivery, refLink string) string {
	s := d.Signal
	var b strings.Builder

	marker := "🔴"
	if s.Direction == models.DirectionCall {
		marker = "🟢"
	}
	fmt.Fprintf(&b, "%s *%s*\n\n", marker, escapeMarkdown(strings.ToUpper(string(d.Class))+" SIGNAL"))
	fmt.Fprintf(&b, "📊 *Asset:* %s\n", escapeMarkdown(d.BrokerName))
	fmt.Fprintf(&b, "%s *Direction:* %s\n", s.Direction.Arrow(), escapeMarkdown(string(s.Direction)))
	fmt.Fprintf(&b, "⏱ *Expiration:* %s\n", escapeMarkdown(d.ExpirationLabel))
	fmt.Fprintf(&b, "💰 *Confidence:* %s\n", escapeMarkdown(fmt.Sprintf("%.1f%%", s.Confidence)))
	if d.Instrument.Payout > 0 {
		fmt.Fprintf(&b, "💵 *Payout:* %s\n", escapeMarkdown(fmt.Sprintf("%d%%", d.Instrument.Payout)))
	}
	if s.WhaleDetected {
		b.WriteString("\n🐋 Large volume detected\n")
	}
	if s.Fallback {
		b.WriteString("\n⚠️ " + escapeMarkdown("Market data was unavailable. This signal is not based on live indicators.") + "\n")
	}
	if c := d.Commentary; c != nil && c.Reasoning != "" {
		fmt.Fprintf(&b, "\n🧠 %s\n", escapeMarkdown(c.Reasoning))
		if c.RiskLevel != "" {
			fmt.Fprintf(&b, "⚖️ *Risk:* %s\n", escapeMarkdown(c.RiskLevel))
		}
	}
	if refLink != "" {
		fmt.Fprintf(&b, "\n[Pocket Option](%s)", escapeLink(refLink))
	}
	return b.String()
}

const markdownSpecials = "_*[]()~`>#+-=|{}.!\\"

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeLink escapes the characters MarkdownV2 reserves inside link targets.
func escapeLink(s string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(s)
}
