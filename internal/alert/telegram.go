package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"suapreport/internal/components/telemetry"
	libtelemetry "suapreport/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

const report_telegram_alert = "telegram.alert"

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	ChatID  string `json:"chat_id"`
	Token   string `json:"bot_token"`
	// BaseURL defaults to the public bot api.
	BaseURL string `json:"base_url"`
}

type Telegram struct {
	config TelegramConfig
	client *resty.Client
	tel    telemetry.API
}

func NewTelegram(config TelegramConfig, tel telemetry.API) Telegram {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.telegram.org"
	}
	tel = telemetry.NewScopedAPI("alert", tel)

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(10 * time.Second)
	telemetry.InstrumentResty(client, tel)
	libtelemetry.TraceResty(client, "suapreport/internal/alert")

	return Telegram{config: config, client: client, tel: tel}
}

// telegram MarkdownV2 rejects a bare "."
func escapeMarkdown(text string) string {
	return strings.ReplaceAll(text, ".", "\\.")
}

// render returns the text to send and whether it is MarkdownV2. Fields
// are shown as "key: *value*", one per line.
func (t Telegram) render(msg Message) (string, bool) {
	lines := []string{}
	if msg.Subject != "" {
		lines = append(lines, msg.Subject)
	}
	lines = append(lines, msg.Lines...)

	markdown := len(msg.Fields) > 0
	for _, f := range msg.Fields {
		lines = append(lines, fmt.Sprintf("%s: *%s*", f.Key, f.Value))
	}

	text := strings.Join(lines, "\r\n")
	if markdown {
		text = escapeMarkdown(text)
	}
	return text, markdown
}

func (t Telegram) Alert(ctx context.Context, msg Message) error {
	if !t.config.Enabled {
		return nil
	}

	text, markdown := t.render(msg)
	params := map[string]string{
		"chat_id": t.config.ChatID,
		"text":    text,
	}
	if markdown {
		params["parse_mode"] = "MarkdownV2"
	}

	res, err := t.client.R().
		SetContext(ctx).
		SetPathParam("token", t.config.Token).
		SetQueryParams(params).
		Get("/bot{token}/sendMessage")
	if err != nil {
		// the request url holds the bot token
		err = telemetry.RedactURL(err)
		t.tel.ReportWarning(report_telegram_alert, err)
		return err
	}
	if res.IsError() {
		err = fmt.Errorf("telegram: %s", res.Status())
		t.tel.ReportWarning(report_telegram_alert, err, res.String())
		return err
	}
	return nil
}
