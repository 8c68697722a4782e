// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/paceoracle/internal/models"
	"github.com/rewired-gh/paceoracle/internal/projection"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Name identifies the channel in logs and metrics.
func (c *Client) Name() string {
	return "telegram"
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// status renders the reply to /status. It returns immediately; the goroutine stops when ctx
// is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, status func() string) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, status)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, status func() string) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "status":
		if status == nil {
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, status())
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Monitoring error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(ctx, text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, failureCount int) error {
	text := fmt.Sprintf("✅ *Monitoring recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(ctx, text)
}

// Send sends a notification for one alert.
func (c *Client) Send(ctx context.Context, alert models.Alert) error {
	return c.sendMarkdownV2(ctx, formatMessage(alert))
}

var kindEmoji = map[models.AlertKind]string{
	models.AlertDecisionWindow: "🎯",
	models.AlertPeriodic:       "📊",
	models.AlertStall:          "⚠️",
	models.AlertFinal:          "🏁",
	models.AlertReserved:       "🟢",
	models.AlertOverLocked:     "✅",
}

// formatMessage renders a compact MarkdownV2 summary of an alert.
func formatMessage(a models.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s *%s*\n", kindEmoji[a.Kind], escapeMarkdownV2(a.Title))
	clock := fmt.Sprintf("%s %d:%02d | %d-%d (Total: %d)",
		projection.PeriodLabel(a.Quarter), a.Minute, a.Second, a.HomeScore, a.AwayScore, a.TotalScore())
	fmt.Fprintf(&b, "⏱️ %s\n", escapeMarkdownV2(clock))

	if p := a.Projections; p != nil && a.Kind == models.AlertPeriodic {
		line := "N/A"
		if a.Odds != nil {
			line = fmt.Sprintf("%.1f", a.Odds.TotalLine)
		}
		proj := fmt.Sprintf("Projected: %s %.1f | %s %.1f | Total %.1f (line %s)",
			a.HomeName, p.Home.Avg, a.AwayName, p.Away.Avg, p.Total.Avg, line)
		fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(proj))
	}

	if d := a.Decision; d != nil && a.Kind == models.AlertDecisionWindow {
		fmt.Fprintf(&b, "*%s*\n", escapeMarkdownV2(callLine("Total", d.Total)))
		fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(callLine(a.HomeName, d.Home)))
		fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(callLine(a.AwayName, d.Away)))
	}

	if d := a.Decision; d != nil && a.Kind == models.AlertFinal {
		if result := d.Total.Grade(float64(a.TotalScore())); result != models.ResultNone {
			fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(fmt.Sprintf("Total call %s: %s", d.Total.Recommendation, result)))
		}
	}

	return b.String()
}

func callLine(label string, call models.SideCall) string {
	if call.Line == nil {
		return fmt.Sprintf("%s: %.1f vs N/A, NO BET", label, call.Projection)
	}
	return fmt.Sprintf("%s: %.1f vs %.1f, %s", label, call.Projection, *call.Line, call.Recommendation)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
