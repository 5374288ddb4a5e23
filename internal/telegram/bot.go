// Package telegram is the bot transport: it long-polls for updates,
// feeds messages to the ingestion pipeline, and answers commands. All
// filtering and parsing lives in the pipeline, not here.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spendbot/internal/core"
	"spendbot/internal/pipeline"
	"spendbot/internal/report"
)

const pollTimeoutSeconds = 30

// Client wraps the Bot API connection for sending messages.
type Client struct {
	api *tgbotapi.BotAPI
}

// NewClient authenticates against the Bot API.
func NewClient(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Client{api: api}, nil
}

// Username returns the authenticated bot's username.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Send posts plain text to a chat.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	// The Bot API client has no context support; honor cancellation
	// at least before the call.
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

// SendReport implements report.Sink.
func (c *Client) SendReport(ctx context.Context, chatID int64, text string) error {
	return c.Send(ctx, chatID, text)
}

// Sender posts text to a chat. Satisfied by Client.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// ReportRunner delivers day summaries on demand. Satisfied by
// report.Reporter.
type ReportRunner interface {
	Today() core.Day
	Run(ctx context.Context, day core.Day, trigger string) error
}

// Bot dispatches incoming updates: commands to the reporter, everything
// else to the ingestion pipeline.
type Bot struct {
	client   *Client
	sender   Sender
	pipeline *pipeline.Service
	reporter ReportRunner
	reportAt string
}

func NewBot(client *Client, pipe *pipeline.Service, reporter ReportRunner, reportAt string) *Bot {
	return &Bot{
		client:   client,
		sender:   client,
		pipeline: pipe,
		reporter: reporter,
		reportAt: reportAt,
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds

	updates := b.client.api.GetUpdatesChan(u)
	slog.InfoContext(ctx, "Telegram bot started", "username", b.client.Username())

	for {
		select {
		case <-ctx.Done():
			b.client.api.StopReceivingUpdates()
			slog.InfoContext(ctx, "Telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.ingest(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(ctx, msg.Chat.ID, startText(b.reportAt))
	case "today", "summarize":
		b.runReport(ctx, b.reporter.Today())
	case "yesterday":
		b.runReport(ctx, b.reporter.Today().Prev())
	default:
		// Unknown commands flow into ingestion like any other text.
		b.ingest(ctx, msg)
	}
}

func (b *Bot) ingest(ctx context.Context, msg *tgbotapi.Message) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	_, err := b.pipeline.Process(ctx, pipeline.Message{
		ChatID:    msg.Chat.ID,
		MessageID: int64(msg.MessageID),
		Text:      text,
		SentAt:    time.Now(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to process message",
			"chat_id", msg.Chat.ID,
			"message_id", msg.MessageID,
			"error", err)
	}
}

func (b *Bot) runReport(ctx context.Context, day core.Day) {
	if err := b.reporter.Run(ctx, day, report.TriggerCommand); err != nil {
		slog.ErrorContext(ctx, "On-demand report failed", "day", day, "error", err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.sender.Send(ctx, chatID, text); err != nil {
		slog.ErrorContext(ctx, "Failed to send reply", "chat_id", chatID, "error", err)
	}
}

func startText(reportAt string) string {
	return fmt.Sprintf("Бот запущен. Слушаю чат и шлю сводку в %s. Команды: /today /yesterday /summarize", reportAt)
}
