package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Russian month names in genitive, as shown in slot dates.
var monthGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// SlotOption is a selectable slot offered alongside a notification.
type SlotOption struct {
	Label      string
	ResourceID int64
	SlotKey    string
}

// Notifier delivers user-facing messages. Implementations must be safe
// for concurrent use by the scheduler and the API handlers.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
	SendWithOptions(ctx context.Context, chatID int64, text string, options []SlotOption) error
}

// NopNotifier drops every message. Used when notifications are disabled.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, int64, string) error { return nil }
func (NopNotifier) SendWithOptions(context.Context, int64, string, []SlotOption) error {
	return nil
}

// TelegramNotifierConfig configures the Telegram delivery channel.
type TelegramNotifierConfig struct {
	BotToken string
	APIBase  string
	Timeout  time.Duration
}

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	http    *http.Client
	apiBase string
	token   string
	logger  *zap.Logger
}

// NewTelegramNotifier constructs the notifier.
func NewTelegramNotifier(cfg TelegramNotifierConfig, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		http:    &http.Client{Timeout: cfg.Timeout},
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		token:   cfg.BotToken,
		logger:  logger,
	}
}

type telegramButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type telegramMessage struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode"`
	ReplyMarkup *struct {
		InlineKeyboard [][]telegramButton `json:"inline_keyboard"`
	} `json:"reply_markup,omitempty"`
}

// Send delivers a plain HTML message.
func (n *TelegramNotifier) Send(ctx context.Context, chatID int64, text string) error {
	return n.SendWithOptions(ctx, chatID, text, nil)
}

// SendWithOptions delivers a message with selectable slot buttons, three
// per row, capped at 30 options.
func (n *TelegramNotifier) SendWithOptions(ctx context.Context, chatID int64, text string, options []SlotOption) error {
	msg := telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"}
	if len(options) > 0 {
		if len(options) > 30 {
			options = options[:30]
		}
		keyboard := struct {
			InlineKeyboard [][]telegramButton `json:"inline_keyboard"`
		}{}
		var row []telegramButton
		for _, option := range options {
			row = append(row, telegramButton{
				Text:         option.Label,
				CallbackData: fmt.Sprintf("book_slot:%d:%s", option.ResourceID, option.SlotKey),
			})
			if len(row) == 3 {
				keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, row)
				row = nil
			}
		}
		if len(row) > 0 {
			keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, row)
		}
		msg.ReplyMarkup = &keyboard
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		n.logger.Warn("telegram send failed",
			zap.Int("status", resp.StatusCode),
			zap.Int64("chat_id", chatID),
			zap.ByteString("body", payload))
		return fmt.Errorf("telegram send: status %d", resp.StatusCode)
	}
	return nil
}

// GroupSlotsByDate renders slot keys grouped per day:
//
//	25 марта:
//	• 15:48
//	• 16:00
func GroupSlotsByDate(keys []string) string {
	type dayGroup struct {
		date  string
		times []string
	}
	index := map[string]*dayGroup{}
	var order []*dayGroup

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	for _, key := range sorted {
		parts := strings.SplitN(key, " ", 2)
		if len(parts) != 2 {
			continue
		}
		group, ok := index[parts[0]]
		if !ok {
			group = &dayGroup{date: humanDate(parts[0])}
			index[parts[0]] = group
			order = append(order, group)
		}
		group.times = append(group.times, parts[1])
	}

	var b strings.Builder
	for i, group := range order {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(group.date)
		b.WriteByte(':')
		for _, t := range group.times {
			b.WriteString("\n• ")
			b.WriteString(t)
		}
	}
	return b.String()
}

// humanDate renders "2025-03-25" as "25 марта". Unparseable input is
// returned as is.
func humanDate(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return isoDate
	}
	return fmt.Sprintf("%d %s", t.Day(), monthGenitive[t.Month()-1])
}

// SlotOptions converts slot keys into selectable options labelled by
// their time of day, sorted.
func SlotOptions(resourceID int64, keys []string) []SlotOption {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	options := make([]SlotOption, 0, len(sorted))
	for _, key := range sorted {
		label := key
		if idx := strings.IndexByte(key, ' '); idx >= 0 {
			label = key[idx+1:]
		}
		options = append(options, SlotOption{Label: label, ResourceID: resourceID, SlotKey: key})
	}
	return options
}
