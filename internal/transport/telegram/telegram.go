// Package telegram sends messages through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "orderbot/internal/transport"
	logx "orderbot/pkg/logx"
)

const defaultTimeout = 20 * time.Second

type Config struct {
	Token   string
	BaseURL string // default: https://api.telegram.org
	Timeout time.Duration
}

// Sender implements transport.Sender on top of telebot's sendMessage.
// The bot is created offline: no getMe round trip and no update polling.
type Sender struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		Token:   cfg.Token,
		Offline: true,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: statusCheck{next: http.DefaultTransport},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Sender{bot: b, log: log}, nil
}

// chatRecipient lets "@channel" usernames pass through unchanged.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// SendText sends text as one message, or as consecutive messages when it
// exceeds Telegram's size limit. The ref of the first message is returned.
func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if strings.TrimSpace(to.ChatID) == "" {
		return kit.MessageRef{}, errors.New("telegram chat id is empty")
	}

	chat := chatRecipient(strings.TrimSpace(to.ChatID))
	var first kit.MessageRef
	for i, chunk := range splitTelegramText(text, telegramTextLimit) {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return first, err
			}
		}
		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		msg, err := s.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			return first, err
		}
		if i == 0 && msg != nil {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	s.log.Debug("message sent", logx.String("chat_id", to.ChatID), logx.Int("message_id", first.MessageID))
	return first, nil
}

// statusCheck turns non-2xx Bot API responses into transport errors.
// telebot only inspects the JSON "ok" flag, which proxies and gateways
// returning HTML error pages do not carry.
type statusCheck struct{ next http.RoundTripper }

func (t statusCheck) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return nil, fmt.Errorf("telegram: http=%d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
